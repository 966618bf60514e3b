package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"taskd/internal/common/fsutil"
	"taskd/internal/inference"
)

// LoadDir scans a directory for *.gguf files to serve through the llama
// backend. ID is the file name without extension; Path is absolute.
func LoadDir(dir string) ([]inference.LocalModel, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []inference.LocalModel
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		id := name[:len(name)-len(".gguf")]
		models = append(models, inference.LocalModel{ID: id, Path: filepath.Join(abs, name)})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}
