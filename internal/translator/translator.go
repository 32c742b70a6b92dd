package translator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valpere/treatydesk/internal/completion"
)

// CandidateGenerator drafts one candidate; *Generator is the production value.
type CandidateGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// QualityScorer grades one candidate; *Scorer is the production value.
type QualityScorer interface {
	Score(ctx context.Context, source, candidate string) float64
}

// Config tunes the retry loop. Zero values fall back to MaxRetries and
// ScoreThreshold.
type Config struct {
	MaxRetries     int
	ScoreThreshold float64
	// OnAttempt, when set, receives every scored attempt as it happens.
	OnAttempt func(Attempt)
	Logger    *slog.Logger
}

// Translator runs the generate → score → retry loop.
type Translator struct {
	model  string
	gen    CandidateGenerator
	scorer QualityScorer
	config Config
}

// New builds a Translator whose generator and scorer share llm. A nil llm or
// one without a model makes every Translate call a configuration error.
func New(llm completion.Completer, config Config) *Translator {
	config = withDefaults(config)
	t := &Translator{config: config}
	if llm != nil {
		t.model = llm.Model()
		t.gen = NewGenerator(llm)
		t.scorer = NewScorer(llm, config.Logger)
	}
	return t
}

// NewWith builds a Translator from explicit parts.
func NewWith(model string, gen CandidateGenerator, scorer QualityScorer, config Config) *Translator {
	return &Translator{
		model:  model,
		gen:    gen,
		scorer: scorer,
		config: withDefaults(config),
	}
}

func withDefaults(c Config) Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = MaxRetries
	}
	if c.ScoreThreshold <= 0 {
		c.ScoreThreshold = ScoreThreshold
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// state of one Translate call.
type state int

const (
	stateGenerating state = iota
	stateScoring
	stateAccepted
	stateExhausted
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateGenerating:
		return "generating"
	case stateScoring:
		return "scoring"
	case stateAccepted:
		return "accepted"
	case stateExhausted:
		return "exhausted"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// run holds the per-call state; nothing outlives a Translate call.
type run struct {
	in        Input
	attempt   int
	candidate string
	best      Attempt
	attempts  []Attempt
	err       error
}

// Translate drafts and grades up to MaxRetries candidates and returns the best.
//
// A missing model returns NotConfiguredText with ErrModelNotConfigured. A
// generation failure ends the loop at once and returns the visible error text,
// score 0, and a *GenerationError. Otherwise the error is nil and Result holds
// the best-scoring attempt whether or not the threshold was met.
func (t *Translator) Translate(ctx context.Context, in Input) (Result, error) {
	if t.model == "" || t.gen == nil || t.scorer == nil {
		return Result{Text: NotConfiguredText, Score: 0}, ErrModelNotConfigured
	}
	if strings.TrimSpace(in.Source) == "" {
		return Result{Text: emptySourceText, Score: 0}, ErrEmptySource
	}

	r := &run{in: in, attempt: 1, best: Attempt{Score: initialBestScore}}
	st := stateGenerating
	for {
		t.config.Logger.Debug("translation step", "state", st.String(), "attempt", r.attempt)
		switch st {
		case stateGenerating:
			st = t.generate(ctx, r)
		case stateScoring:
			st = t.score(ctx, r)
		case stateAccepted, stateExhausted:
			return Result{
				Text:     r.best.Text,
				Score:    r.best.Score,
				Accepted: st == stateAccepted,
				Attempts: r.attempts,
			}, nil
		case stateFailed:
			return Result{
				Text:     fmt.Sprintf("%s: %v", GenerationFailedText, r.err),
				Score:    0,
				Attempts: r.attempts,
			}, &GenerationError{Attempt: r.attempt, Err: r.err}
		}
	}
}

func (t *Translator) generate(ctx context.Context, r *run) state {
	req := GenerateRequest{
		Source:    r.in.Source,
		ContextEN: r.in.ContextEN,
		ContextJA: r.in.ContextJA,
		Glossary:  r.in.Glossary,
	}
	if r.attempt > 1 {
		req.Previous = r.best.Text
	}

	candidate, err := t.gen.Generate(ctx, req)
	if err != nil {
		r.err = err
		return stateFailed
	}
	r.candidate = candidate
	return stateScoring
}

func (t *Translator) score(ctx context.Context, r *run) state {
	a := Attempt{
		Index: r.attempt,
		Text:  r.candidate,
		Score: t.scorer.Score(ctx, r.in.Source, r.candidate),
	}
	r.attempts = append(r.attempts, a)
	if t.config.OnAttempt != nil {
		t.config.OnAttempt(a)
	}

	if a.Score > r.best.Score {
		r.best = a
	}

	switch {
	case r.best.Score >= t.config.ScoreThreshold:
		return stateAccepted
	case r.attempt >= t.config.MaxRetries:
		return stateExhausted
	}
	r.attempt++
	return stateGenerating
}
