package inference

import "context"

// Kind names the shape of work a backing model performs.
type Kind string

const (
	KindTextGeneration      Kind = "text-generation"
	KindSummarization       Kind = "summarization"
	KindTranslation         Kind = "translation"
	KindImageClassification Kind = "image-classification"
)

// IsText reports whether the kind consumes text input.
func (k Kind) IsText() bool { return k != KindImageClassification }

// ModelRef identifies a backing model and the optional dependencies it needs
// (for example "sentencepiece" for opus-mt translation models).
type ModelRef struct {
	ID       string
	Kind     Kind
	Requires []string
	// Language is the target language for translation models.
	Language string
}

// Backend abstracts the external inference provider.
type Backend interface {
	// Name is a short identifier such as "hf" or "openai".
	Name() string
	// Validate checks that the reference can be served. Errors are fatal to
	// the adapter being constructed.
	Validate(ref ModelRef) error
	// Open builds a pipeline for the reference. It may be slow.
	Open(ref ModelRef) (Pipeline, error)
}

// KindSupporter is implemented by backends that serve only some kinds.
type KindSupporter interface {
	SupportsKind(k Kind) bool
}

// Supports reports whether b can serve kind k. Backends that do not implement
// KindSupporter serve every kind.
func Supports(b Backend, k Kind) bool {
	if ks, ok := b.(KindSupporter); ok {
		return ks.SupportsKind(k)
	}
	return true
}

// Pipeline is a handle to one opened backing model. Implementations are not
// required to be safe for concurrent use.
type Pipeline interface {
	Call(ctx context.Context, in Input) (Output, error)
	Close() error
}

// Params captures generation parameters. Zero values mean "provider default".
type Params struct {
	MaxLength   int
	MinLength   int
	Temperature float32
	TopP        float32
	// Sample enables stochastic decoding.
	Sample bool
}

// Input is a single call payload. Text kinds use Text; image
// classification uses Image and ImageMIME.
type Input struct {
	Text      string
	Image     []byte
	ImageMIME string
	Params    Params
}

// Label is one classification prediction.
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Output is the structured result of a call. Text kinds fill Text; image
// classification fills Labels ranked by descending score.
type Output struct {
	Text   string
	Labels []Label
}
