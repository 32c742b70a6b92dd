package translator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/treatydesk/internal/completion"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptedGenerator returns candidates in order and records every request.
type scriptedGenerator struct {
	outputs  []string
	failAt   int // 1-based attempt that fails; 0 never fails
	err      error
	requests []GenerateRequest
}

func (g *scriptedGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	g.requests = append(g.requests, req)
	n := len(g.requests)
	if g.failAt == n {
		return "", g.err
	}
	return g.outputs[n-1], nil
}

// scriptedScorer returns scores in order.
type scriptedScorer struct {
	scores []float64
	calls  []string
}

func (s *scriptedScorer) Score(_ context.Context, _, candidate string) float64 {
	s.calls = append(s.calls, candidate)
	return s.scores[len(s.calls)-1]
}

// stubCompleter answers with a fixed reply and records requests.
type stubCompleter struct {
	model    string
	reply    string
	err      error
	requests []completion.Request
}

func (c *stubCompleter) Complete(_ context.Context, req completion.Request) (string, error) {
	c.requests = append(c.requests, req)
	return c.reply, c.err
}

func (c *stubCompleter) Model() string { return c.model }

func newTestTranslator(gen CandidateGenerator, sc QualityScorer) *Translator {
	return NewWith("gpt-test", gen, sc, Config{Logger: quietLogger})
}

func TestTranslateAcceptsFirstAttempt(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"A"}}
	sc := &scriptedScorer{scores: []float64{0.95}}

	res, err := newTestTranslator(gen, sc).Translate(context.Background(), Input{Source: "Hello."})
	require.NoError(t, err)

	assert.Equal(t, "A", res.Text)
	assert.Equal(t, 0.95, res.Score)
	assert.True(t, res.Accepted)
	assert.Len(t, gen.requests, 1)
	assert.Len(t, sc.calls, 1)
	assert.Empty(t, gen.requests[0].Previous)
}

func TestTranslateStopsAtThreshold(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"A", "B", "C"}}
	sc := &scriptedScorer{scores: []float64{0.3, 0.6, 0.95}}

	res, err := newTestTranslator(gen, sc).Translate(context.Background(), Input{Source: "x"})
	require.NoError(t, err)

	assert.Equal(t, "C", res.Text)
	assert.Equal(t, 0.95, res.Score)
	assert.True(t, res.Accepted)
	require.Len(t, gen.requests, 3)
	assert.Equal(t, "A", gen.requests[1].Previous)
	assert.Equal(t, "B", gen.requests[2].Previous)
}

func TestTranslateExhaustsRetries(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"A", "B", "C"}}
	sc := &scriptedScorer{scores: []float64{0.3, 0.4, 0.5}}

	res, err := newTestTranslator(gen, sc).Translate(context.Background(), Input{Source: "x"})
	require.NoError(t, err)

	assert.Equal(t, "C", res.Text)
	assert.Equal(t, 0.5, res.Score)
	assert.False(t, res.Accepted)
	assert.Len(t, res.Attempts, MaxRetries)
	assert.Len(t, gen.requests, MaxRetries)
}

func TestTranslateKeepsBestNotLast(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"A", "B", "C"}}
	sc := &scriptedScorer{scores: []float64{0.3, 0.7, 0.5}}

	res, err := newTestTranslator(gen, sc).Translate(context.Background(), Input{Source: "x"})
	require.NoError(t, err)

	assert.Equal(t, "B", res.Text)
	assert.Equal(t, 0.7, res.Score)
	assert.False(t, res.Accepted)
	// The third attempt is corrected against the best, not the latest.
	assert.Equal(t, "B", gen.requests[2].Previous)
}

func TestTranslateTieKeepsEarlier(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"A", "B", "C"}}
	sc := &scriptedScorer{scores: []float64{0.5, 0.5, 0.5}}

	res, err := newTestTranslator(gen, sc).Translate(context.Background(), Input{Source: "x"})
	require.NoError(t, err)
	assert.Equal(t, "A", res.Text)
}

func TestTranslateGenerationFailureIsTerminal(t *testing.T) {
	boom := errors.New("connection reset")
	gen := &scriptedGenerator{outputs: []string{"A", "B", "C"}, failAt: 2, err: boom}
	sc := &scriptedScorer{scores: []float64{0.3, 0.9, 0.9}}

	res, err := newTestTranslator(gen, sc).Translate(context.Background(), Input{Source: "x"})
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 2, genErr.Attempt)
	assert.ErrorIs(t, err, boom)

	assert.True(t, strings.HasPrefix(res.Text, GenerationFailedText))
	assert.Contains(t, res.Text, "connection reset")
	assert.Equal(t, 0.0, res.Score)
	assert.False(t, res.Accepted)
	// No scoring happens for the failed attempt.
	assert.Len(t, sc.calls, 1)
	assert.Len(t, gen.requests, 2)
}

func TestTranslateNotConfigured(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"A"}}
	sc := &scriptedScorer{scores: []float64{1}}

	res, err := NewWith("", gen, sc, Config{Logger: quietLogger}).Translate(context.Background(), Input{Source: "x"})
	assert.ErrorIs(t, err, ErrModelNotConfigured)
	assert.Equal(t, NotConfiguredText, res.Text)
	assert.Equal(t, 0.0, res.Score)
	assert.Empty(t, gen.requests)

	res, err = New(nil, Config{Logger: quietLogger}).Translate(context.Background(), Input{Source: "x"})
	assert.ErrorIs(t, err, ErrModelNotConfigured)
	assert.Equal(t, NotConfiguredText, res.Text)
}

func TestTranslateEmptySource(t *testing.T) {
	gen := &scriptedGenerator{}
	_, err := newTestTranslator(gen, &scriptedScorer{}).Translate(context.Background(), Input{Source: "  \n"})
	assert.ErrorIs(t, err, ErrEmptySource)
	assert.Empty(t, gen.requests)
}

func TestTranslateReportsAttempts(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"A", "B"}}
	sc := &scriptedScorer{scores: []float64{0.2, 0.92}}

	var seen []Attempt
	tr := NewWith("m", gen, sc, Config{Logger: quietLogger, OnAttempt: func(a Attempt) { seen = append(seen, a) }})
	res, err := tr.Translate(context.Background(), Input{Source: "x"})
	require.NoError(t, err)

	assert.Equal(t, []Attempt{{Index: 1, Text: "A", Score: 0.2}, {Index: 2, Text: "B", Score: 0.92}}, seen)
	assert.Equal(t, seen, res.Attempts)
}

func TestTranslateCustomLimits(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"A", "B", "C", "D", "E"}}
	sc := &scriptedScorer{scores: []float64{0.1, 0.2, 0.3, 0.4, 0.5}}

	tr := NewWith("m", gen, sc, Config{MaxRetries: 5, ScoreThreshold: 0.45, Logger: quietLogger})
	res, err := tr.Translate(context.Background(), Input{Source: "x"})
	require.NoError(t, err)
	assert.Equal(t, "E", res.Text)
	assert.True(t, res.Accepted)
}

func TestTranslateEndToEndWithCompleter(t *testing.T) {
	llm := &stubCompleter{model: "gpt-test", reply: "<answer>Score: 0.97"}
	// The same stub answers both roles; the generator's cleanup removes the
	// tag and leaves the score text as the candidate.
	res, err := New(llm, Config{Logger: quietLogger}).Translate(context.Background(), Input{Source: "x"})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.InDelta(t, 0.97, res.Score, 1e-9)
	require.Len(t, llm.requests, 2)
	assert.Equal(t, scoreMaxTokens, llm.requests[1].MaxTokens)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"0.85", 0.85, true},
		{"Score: 0.85", 0.85, true},
		{"Score: 0.87 (final)", 0.87, true},
		{" 1", 1, true},
		{"1.5", 1, true},
		{".5", 0.5, true},
		{"no idea", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseScore(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestScorerFallsBackToZero(t *testing.T) {
	sc := NewScorer(&stubCompleter{model: "m", reply: "excellent"}, quietLogger)
	assert.Equal(t, 0.0, sc.Score(context.Background(), "a", "b"))

	sc = NewScorer(&stubCompleter{model: "m", err: errors.New("timeout")}, quietLogger)
	assert.Equal(t, 0.0, sc.Score(context.Background(), "a", "b"))
}

func TestScorerPrompt(t *testing.T) {
	llm := &stubCompleter{model: "m", reply: "0.8"}
	got := NewScorer(llm, quietLogger).Score(context.Background(), "The Parties agree.", "締約国は、合意する。")
	assert.Equal(t, 0.8, got)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, 0.0, req.Temperature)
	assert.Equal(t, scoreMaxTokens, req.MaxTokens)
	assert.Contains(t, req.User, "<original_en>The Parties agree.</original_en>")
	assert.Contains(t, req.User, "<translation_jp>締約国は、合意する。</translation_jp>")
	assert.True(t, strings.HasSuffix(req.User, "Score:\n"))
}

func TestGeneratorPrompt(t *testing.T) {
	llm := &stubCompleter{model: "m", reply: "翻訳結果: 「締約国は、合意する。」"}
	out, err := NewGenerator(llm).Generate(context.Background(), GenerateRequest{
		Source:    "The Parties agree.",
		ContextEN: "Article 1",
		ContextJA: "第一条",
		Glossary:  Glossary{"Parties": "締約国", "Agreement": "協定"},
	})
	require.NoError(t, err)
	assert.Equal(t, "締約国は、合意する。", out)

	req := llm.requests[0]
	assert.Equal(t, []string{answerStop}, req.Stop)
	assert.Contains(t, req.User, "<translate_this>The Parties agree.</translate_this>")
	assert.Contains(t, req.User, "<context_en>Article 1</context_en>")
	assert.Contains(t, req.User, "<context_jp>第一条</context_jp>")
	assert.Contains(t, req.User, "## 用語集（最優先）")
	assert.Less(t, strings.Index(req.User, "`Agreement` -> `協定`"), strings.Index(req.User, "`Parties` -> `締約国`"))
	assert.NotContains(t, req.User, "<previous_bad_translation>")
	assert.Contains(t, req.User, syntaxAnswerJP)
	assert.Contains(t, req.User, formatAnswerJP)
}

func TestGeneratorCorrectionHint(t *testing.T) {
	llm := &stubCompleter{model: "m", reply: "改訂訳"}
	_, err := NewGenerator(llm).Generate(context.Background(), GenerateRequest{
		Source:   "x",
		Previous: "誤訳",
	})
	require.NoError(t, err)
	user := llm.requests[0].User
	assert.Contains(t, user, "以前の翻訳には誤りがありました。")
	assert.Contains(t, user, "<previous_bad_translation>誤訳</previous_bad_translation>")
	assert.NotContains(t, user, "用語集")
}

func TestGeneratorEmptyAnswer(t *testing.T) {
	out, err := NewGenerator(&stubCompleter{model: "m", reply: "<answer></answer>"}).Generate(context.Background(), GenerateRequest{Source: "x"})
	require.NoError(t, err)
	assert.Equal(t, NoTranslationText, out)
}

func TestGeneratorPropagatesError(t *testing.T) {
	boom := &completion.Error{Provider: "azure-openai", StatusCode: 500, Message: "down"}
	_, err := NewGenerator(&stubCompleter{model: "m", err: boom}).Generate(context.Background(), GenerateRequest{Source: "x"})
	var ce *completion.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 500, ce.StatusCode)
}
