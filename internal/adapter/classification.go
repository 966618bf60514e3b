package adapter

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"taskd/internal/inference"
)

// DefaultClassificationModel backs the image classification task.
const DefaultClassificationModel = "google/vit-base-patch16-224"

// topLabels is how many predictions Postprocess keeps.
const topLabels = 3

// Classification labels an image file.
type Classification struct {
	task string
	name string
	pipe lazyPipeline
}

// NewClassification validates model against backend and returns an adapter
// whose pipeline opens on first Run.
func NewClassification(task, model, displayName string, backend inference.Backend) (*Classification, error) {
	if model == "" {
		model = DefaultClassificationModel
	}
	ref := inference.ModelRef{ID: model, Kind: inference.KindImageClassification}
	if err := validate(task, backend, ref); err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = model
	}
	return &Classification{task: task, name: displayName, pipe: lazyPipeline{backend: backend, ref: ref}}, nil
}

func (c *Classification) Task() string        { return c.task }
func (c *Classification) DisplayName() string { return c.name }
func (c *Classification) Model() string       { return c.pipe.ref.ID }

func (c *Classification) Run(ctx context.Context, req Request) (string, error) {
	path := strings.TrimSpace(req.ImagePath)
	if path == "" {
		return "", ErrInvalidInput("%s: no image selected", c.task)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ErrInvalidInput("%s: read image: %v", c.task, err)
	}
	if len(data) == 0 {
		return "", ErrInvalidInput("%s: image %s is empty", c.task, path)
	}
	out, err := c.pipe.call(ctx, inference.Input{Image: data, ImageMIME: imageMIME(path, data)})
	if err != nil {
		return "", err
	}
	return Postprocess(out.Labels), nil
}

func (c *Classification) Close() error { return c.pipe.close() }

// Postprocess renders ranked predictions for display: the first three, one
// per line, as "label (0.87)". Callers rely on this format verbatim.
func Postprocess(labels []inference.Label) string {
	if len(labels) > topLabels {
		labels = labels[:topLabels]
	}
	lines := make([]string, 0, len(labels))
	for _, l := range labels {
		lines = append(lines, fmt.Sprintf("%s (%.2f)", l.Label, l.Score))
	}
	return strings.Join(lines, "\n")
}

func imageMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(t, "image/") {
		return t
	}
	return http.DetectContentType(data)
}
