package orchestrator

import (
	"path/filepath"
	"strings"

	"taskd/internal/adapter"
	"taskd/internal/common/fsutil"
	"taskd/internal/inference"
)

// SaveOutput appends result as one line to destination.
func (o *Orchestrator) SaveOutput(result, destination string) error {
	if strings.TrimSpace(destination) == "" {
		return adapter.ErrInvalidInput("no destination")
	}
	return fsutil.AppendLine(destination, result)
}

// DefaultDestination is the per-task output file under the outputs dir.
func (o *Orchestrator) DefaultDestination(task, language string) string {
	return DefaultDestination(o.outputs, task, o.kinds[task], language)
}

// DefaultDestination names the output file for a task of the given kind:
// translation_<lang>.txt for translations, image_output.txt for image
// classification, and <task>_output.txt otherwise.
func DefaultDestination(dir, task string, kind inference.Kind, language string) string {
	var name string
	switch {
	case kind == inference.KindTranslation && language != "":
		name = "translation_" + slug(language) + ".txt"
	case kind == inference.KindImageClassification:
		name = "image_output.txt"
	default:
		name = slug(task) + "_output.txt"
	}
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}
