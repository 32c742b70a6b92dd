package translator

import (
	"context"

	"github.com/valpere/treatydesk/internal/completion"
	"github.com/valpere/treatydesk/internal/postprocess"
)

// GenerateRequest describes one drafting call. Previous carries the best
// candidate so far; when set the model is told it was wrong and must be fixed.
type GenerateRequest struct {
	Source    string
	ContextEN string
	ContextJA string
	Glossary  Glossary
	Previous  string
}

// Generator drafts one translation candidate through the completion gateway.
type Generator struct {
	llm completion.Completer
}

func NewGenerator(llm completion.Completer) *Generator {
	return &Generator{llm: llm}
}

// Generate returns the cleaned model output. Gateway failures are returned as
// errors; an empty answer yields NoTranslationText.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	out, err := g.llm.Complete(ctx, completion.Request{
		System:      translatorSystemPrompt,
		User:        buildTranslationPrompt(req),
		Temperature: 0,
		Stop:        []string{answerStop},
	})
	if err != nil {
		return "", err
	}

	text := postprocess.Clean(out)
	if text == "" {
		return NoTranslationText, nil
	}
	return text, nil
}
