package translator

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/valpere/treatydesk/internal/completion"
)

// scoreMaxTokens bounds the grading reply. The prompt prefills "Score:", so a
// well-behaved answer is a bare number of a few tokens.
const scoreMaxTokens = 10

var scoreRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?|\.[0-9]+`)

// Scorer grades a candidate translation against its source in [0, 1].
type Scorer struct {
	llm    completion.Completer
	logger *slog.Logger
}

func NewScorer(llm completion.Completer, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{llm: llm, logger: logger}
}

// Score never fails: a gateway error or an unreadable reply scores 0.0.
func (s *Scorer) Score(ctx context.Context, source, candidate string) float64 {
	out, err := s.llm.Complete(ctx, completion.Request{
		System:      scorerSystemPrompt,
		User:        buildScorePrompt(source, candidate),
		Temperature: 0,
		MaxTokens:   scoreMaxTokens,
	})
	if err != nil {
		s.logger.Error("translation scoring failed", "error", err)
		return 0
	}

	score, ok := ParseScore(out)
	if !ok {
		s.logger.Warn("could not parse translation score", "response", out)
		return 0
	}
	return score
}

// ParseScore extracts the first number in resp and clamps it to [0, 1].
func ParseScore(resp string) (float64, bool) {
	m := scoreRe.FindString(resp)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	return v, true
}
