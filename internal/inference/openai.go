package inference

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIBackend serves text kinds with one chat model through any
// OpenAI-compatible endpoint. Backing identifiers from the task catalog are
// accepted as-is; the configured chat model does the work for all of them.
type openAIBackend struct {
	client     openai.Client
	model      string
	reqTimeout time.Duration
}

// NewOpenAIBackend constructs a chat-completions backend.
func NewOpenAIBackend(baseURL, apiKey, model string, reqTimeout time.Duration) Backend {
	opts := []option.RequestOption{option.WithMaxRetries(1)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &openAIBackend{client: openai.NewClient(opts...), model: model, reqTimeout: reqTimeout}
}

func (b *openAIBackend) Name() string { return "openai" }

// chatProvides lists the optional dependencies a hosted chat model covers:
// tokenization happens server side.
var chatProvides = []string{"sentencepiece", "tokenizers"}

func (b *openAIBackend) SupportsKind(k Kind) bool { return k.IsText() }

func (b *openAIBackend) Validate(ref ModelRef) error {
	if !b.SupportsKind(ref.Kind) {
		return ErrUnsupportedKind(b.Name(), ref.Kind)
	}
	if strings.TrimSpace(ref.ID) == "" {
		return ErrUnknownModel(b.Name(), ref.ID)
	}
	return checkRequires(ref, chatProvides...)
}

func (b *openAIBackend) Open(ref ModelRef) (Pipeline, error) {
	if err := b.Validate(ref); err != nil {
		return nil, err
	}
	return &openAIPipeline{backend: b, ref: ref}, nil
}

type openAIPipeline struct {
	backend *openAIBackend
	ref     ModelRef
}

func (p *openAIPipeline) Call(ctx context.Context, in Input) (Output, error) {
	if p.backend.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.backend.reqTimeout)
		defer cancel()
	}
	system, user := framePrompt(p.ref, in)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.backend.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if in.Params.MaxLength > 0 {
		params.MaxTokens = openai.Int(int64(in.Params.MaxLength))
	}
	if in.Params.Sample {
		if in.Params.Temperature > 0 {
			params.Temperature = openai.Float(float64(in.Params.Temperature))
		}
		if in.Params.TopP > 0 {
			params.TopP = openai.Float(float64(in.Params.TopP))
		}
	} else {
		params.Temperature = openai.Float(0)
	}
	completion, err := p.backend.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		return Output{}, err
	}
	if len(completion.Choices) == 0 {
		return Output{}, errors.New("openai: empty response")
	}
	return Output{Text: strings.TrimSpace(completion.Choices[0].Message.Content)}, nil
}

func (p *openAIPipeline) Close() error { return nil }
