package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DefaultHFBaseURL is the public serverless inference endpoint.
const DefaultHFBaseURL = "https://api-inference.huggingface.co"

// hfProvides lists the optional dependencies a hosted pipeline satisfies.
var hfProvides = []string{"sentencepiece", "tokenizers", "pillow"}

var hfModelID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)?$`)

// hfBackend implements Backend by talking to a Hugging Face style inference
// API over HTTP.
type hfBackend struct {
	baseURL    string
	token      string
	reqTimeout time.Duration
	provides   []string
	httpClient *http.Client
}

// NewHFBackend constructs an HTTP-backed backend. provides overrides the
// optional dependencies the server is assumed to have; nil keeps the default.
func NewHFBackend(baseURL, token string, reqTimeout, connectTimeout time.Duration, provides []string) Backend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultHFBaseURL
	}
	if provides == nil {
		provides = hfProvides
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: every request carries a context deadline instead.
	return &hfBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		reqTimeout: reqTimeout,
		provides:   provides,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
	}
}

func (b *hfBackend) Name() string { return "hf" }

func (b *hfBackend) Validate(ref ModelRef) error {
	if !hfModelID.MatchString(ref.ID) {
		return ErrUnknownModel(b.Name(), ref.ID)
	}
	return checkRequires(ref, b.provides...)
}

func (b *hfBackend) Open(ref ModelRef) (Pipeline, error) {
	if err := b.Validate(ref); err != nil {
		return nil, err
	}
	return &hfPipeline{backend: b, ref: ref}, nil
}

type hfPipeline struct {
	backend *hfBackend
	ref     ModelRef
}

// hfTextRequest is the JSON payload for text kinds.
type hfTextRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

// hfTextResult covers every text-kind response field; only one is set.
type hfTextResult struct {
	GeneratedText   string `json:"generated_text"`
	SummaryText     string `json:"summary_text"`
	TranslationText string `json:"translation_text"`
}

type hfErrorBody struct {
	Error string `json:"error"`
}

func (p *hfPipeline) Call(ctx context.Context, in Input) (Output, error) {
	if p.backend.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.backend.reqTimeout)
		defer cancel()
	}
	var (
		body        []byte
		contentType string
	)
	if p.ref.Kind == KindImageClassification {
		if len(in.Image) == 0 {
			return Output{}, errors.New("hf: empty image payload")
		}
		body = in.Image
		contentType = in.ImageMIME
		if contentType == "" {
			contentType = http.DetectContentType(in.Image)
		}
	} else {
		payload := hfTextRequest{
			Inputs:     in.Text,
			Parameters: hfParameters(p.ref.Kind, in.Params),
			Options:    map[string]any{"wait_for_model": true},
		}
		body, _ = json.Marshal(payload)
		contentType = "application/json"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.backend.baseURL+"/models/"+p.ref.ID, bytes.NewReader(body))
	if err != nil {
		return Output{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if p.backend.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.backend.token)
	}
	resp, err := p.backend.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		return Output{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Output{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb hfErrorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			return Output{}, fmt.Errorf("hf http error: %s: %s", resp.Status, eb.Error)
		}
		return Output{}, fmt.Errorf("hf http error: %s: %s", resp.Status, clip(string(raw), 512))
	}
	if p.ref.Kind == KindImageClassification {
		var labels []Label
		if err := json.Unmarshal(raw, &labels); err != nil {
			return Output{}, fmt.Errorf("hf: decode labels: %w", err)
		}
		sort.SliceStable(labels, func(i, j int) bool { return labels[i].Score > labels[j].Score })
		return Output{Labels: labels}, nil
	}
	var results []hfTextResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return Output{}, fmt.Errorf("hf: decode response: %w", err)
	}
	if len(results) == 0 {
		return Output{}, errors.New("hf: empty response")
	}
	r := results[0]
	switch p.ref.Kind {
	case KindSummarization:
		return Output{Text: r.SummaryText}, nil
	case KindTranslation:
		return Output{Text: r.TranslationText}, nil
	default:
		return Output{Text: r.GeneratedText}, nil
	}
}

func (p *hfPipeline) Close() error { return nil }

// hfParameters maps Params onto the pipeline parameter names for a Kind.
func hfParameters(kind Kind, prm Params) map[string]any {
	out := map[string]any{}
	if prm.MaxLength > 0 {
		out["max_length"] = prm.MaxLength
	}
	switch kind {
	case KindTextGeneration:
		if prm.Temperature > 0 {
			out["temperature"] = prm.Temperature
		}
		if prm.TopP > 0 {
			out["top_p"] = prm.TopP
		}
		out["do_sample"] = prm.Sample
	case KindSummarization:
		if prm.MinLength > 0 {
			out["min_length"] = prm.MinLength
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
