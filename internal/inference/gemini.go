package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	genai "google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// geminiBackend serves every Kind with one Gemini model. Classification is
// done by asking for a JSON label list.
type geminiBackend struct {
	cli        *genai.Client
	model      string
	reqTimeout time.Duration
}

// NewGeminiBackend constructs a Gemini backend. An empty apiKey lets the
// client read GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGeminiBackend(ctx context.Context, apiKey, model string, reqTimeout time.Duration) (Backend, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, ErrDependencyUnavailable("gemini client: " + err.Error())
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiBackend{cli: cli, model: model, reqTimeout: reqTimeout}, nil
}

func (b *geminiBackend) Name() string { return "gemini" }

// geminiProvides adds image decoding to what every chat model covers.
var geminiProvides = append([]string{"pillow"}, chatProvides...)

func (b *geminiBackend) Validate(ref ModelRef) error {
	if strings.TrimSpace(ref.ID) == "" {
		return ErrUnknownModel(b.Name(), ref.ID)
	}
	return checkRequires(ref, geminiProvides...)
}

func (b *geminiBackend) Open(ref ModelRef) (Pipeline, error) {
	if err := b.Validate(ref); err != nil {
		return nil, err
	}
	return &geminiPipeline{backend: b, ref: ref}, nil
}

type geminiPipeline struct {
	backend *geminiBackend
	ref     ModelRef
}

func (p *geminiPipeline) Call(ctx context.Context, in Input) (Output, error) {
	if p.backend.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.backend.reqTimeout)
		defer cancel()
	}
	system, user := framePrompt(p.ref, in)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if in.Params.MaxLength > 0 {
		cfg.MaxOutputTokens = int32(in.Params.MaxLength)
	}
	if in.Params.Sample {
		if in.Params.Temperature > 0 {
			cfg.Temperature = genai.Ptr(in.Params.Temperature)
		}
		if in.Params.TopP > 0 {
			cfg.TopP = genai.Ptr(in.Params.TopP)
		}
	}
	var parts []*genai.Part
	if p.ref.Kind == KindImageClassification {
		if len(in.Image) == 0 {
			return Output{}, errors.New("gemini: empty image payload")
		}
		mime := in.ImageMIME
		if mime == "" {
			mime = http.DetectContentType(in.Image)
		}
		cfg.ResponseMIMEType = "application/json"
		parts = append(parts, genai.NewPartFromBytes(in.Image, mime))
		user = "Classify this image."
	}
	parts = append(parts, genai.NewPartFromText(user))
	resp, err := p.backend.cli.Models.GenerateContent(ctx, p.backend.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		return Output{}, err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Output{}, errors.New("gemini: empty response")
	}
	if p.ref.Kind == KindImageClassification {
		labels, err := parseLabels(text)
		if err != nil {
			return Output{}, err
		}
		return Output{Labels: labels}, nil
	}
	return Output{Text: text}, nil
}

func (p *geminiPipeline) Close() error { return nil }

// parseLabels decodes a model-produced JSON label list, repairing common
// syntax slips first, and ranks it by descending score.
func parseLabels(text string) ([]Label, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	var labels []Label
	if err := json.Unmarshal([]byte(text), &labels); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(text)
		if rerr != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &labels); err != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Score > labels[j].Score })
	return labels, nil
}
