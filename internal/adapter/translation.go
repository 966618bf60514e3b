package adapter

import (
	"context"
	"fmt"
	"strings"

	"taskd/internal/inference"
)

// DefaultLanguage is the translation target used when none is selected.
const DefaultLanguage = "French"

// translationMaxLength caps translated output.
const translationMaxLength = 200

// Language is a supported translation target and its backing model.
type Language struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

var languages = []Language{
	{"French", "Helsinki-NLP/opus-mt-en-fr"},
	{"German", "Helsinki-NLP/opus-mt-en-de"},
	{"Spanish", "Helsinki-NLP/opus-mt-en-es"},
	{"Italian", "Helsinki-NLP/opus-mt-en-it"},
	{"Russian", "Helsinki-NLP/opus-mt-en-ru"},
	{"Chinese", "Helsinki-NLP/opus-mt-en-zh"},
	{"Japanese", "Helsinki-NLP/opus-mt-en-jap"},
	{"Arabic", "Helsinki-NLP/opus-mt-en-ar"},
	{"Nepali", "Helsinki-NLP/opus-mt-en-ne"},
	{"Hindi", "Helsinki-NLP/opus-mt-en-hi"},
}

// Languages returns the supported targets in display order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// LookupLanguage finds a target by case-insensitive name.
func LookupLanguage(name string) (Language, bool) {
	for _, l := range languages {
		if strings.EqualFold(l.Name, strings.TrimSpace(name)) {
			return l, true
		}
	}
	return Language{}, false
}

// Translation translates English text into one target language. The target
// is bound at construction; a different language needs a new adapter.
type Translation struct {
	task string
	lang Language
	pipe lazyPipeline
}

// NewTranslation builds an adapter for the named target language.
func NewTranslation(task, language string, backend inference.Backend) (*Translation, error) {
	if language == "" {
		language = DefaultLanguage
	}
	lang, ok := LookupLanguage(language)
	if !ok {
		return nil, constructionError{task: task, err: fmt.Errorf("unsupported target language %q", language)}
	}
	ref := inference.ModelRef{
		ID:       lang.Model,
		Kind:     inference.KindTranslation,
		Requires: []string{"sentencepiece"},
		Language: lang.Name,
	}
	if err := validate(task, backend, ref); err != nil {
		return nil, err
	}
	return &Translation{task: task, lang: lang, pipe: lazyPipeline{backend: backend, ref: ref}}, nil
}

func (t *Translation) Task() string        { return t.task }
func (t *Translation) DisplayName() string { return "EN→" + t.lang.Name + " Translator" }
func (t *Translation) Model() string       { return t.lang.Model }

// Language is the bound target language name.
func (t *Translation) Language() string { return t.lang.Name }

func (t *Translation) Run(ctx context.Context, req Request) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", ErrInvalidInput("%s: input text is required", t.task)
	}
	out, err := t.pipe.call(ctx, inference.Input{
		Text:   text,
		Params: inference.Params{MaxLength: translationMaxLength},
	})
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

func (t *Translation) Close() error { return t.pipe.close() }
