// Package inference is the boundary to external pre-trained-model serving.
// Everything behind it is opaque: a Backend validates and opens model
// identifiers, and a Pipeline runs one call against an opened model.
//
//   - backend.go: Kind, ModelRef, Backend, Pipeline and call payloads.
//   - errors.go: error types and helpers (IsUnknownModel, IsMissingDependency).
//   - hf.go: Hugging Face style Inference HTTP API. Supports every Kind.
//   - openai.go: OpenAI-compatible chat completions (text kinds only).
//   - gemini.go: Google Gemini, including image classification via JSON output.
//   - prompt.go: prompt framing shared by the chat-style backends.
//   - factory.go: Config and New, selecting a backend by name.
//
// Build tags and runtimes:
//
//   - In-process llama: uses go-llama.cpp. Enabled with `-tags=llama`.
//     Files: llama.go, llama_cgo.go. Without the tag llama_stub.go is compiled
//     and every model fails validation with a dependency-unavailable error.
package inference
