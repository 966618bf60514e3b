package inference

import (
	"fmt"
	"strings"
)

// framePrompt turns a text-kind call into a single instruction for
// chat-style backends that have no dedicated pipelines.
func framePrompt(ref ModelRef, in Input) (system, user string) {
	switch ref.Kind {
	case KindSummarization:
		system = "You summarize text. Reply with the summary only, preserving the salient facts."
		if in.Params.MinLength > 0 || in.Params.MaxLength > 0 {
			system += fmt.Sprintf(" Aim for between %d and %d tokens.", in.Params.MinLength, in.Params.MaxLength)
		}
	case KindTranslation:
		lang := ref.Language
		if lang == "" {
			lang = "French"
		}
		system = fmt.Sprintf("You translate English text into %s. Reply with the translation only.", lang)
	case KindImageClassification:
		system = "Classify the image. Reply with a JSON array of objects with fields \"label\" (string) " +
			"and \"score\" (number between 0 and 1), ranked by descending score, at most 5 entries."
	default:
		system = "Continue the user's text. Reply with the continuation only."
	}
	return system, strings.TrimSpace(in.Text)
}
