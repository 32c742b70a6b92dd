// Package translator implements the self-correcting treaty translator: a
// generator that drafts a Japanese rendering of one English sentence, a scorer
// that grades it, and a bounded retry loop that keeps the best draft.
package translator

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// MaxRetries is the number of generate/score rounds per call.
	MaxRetries = 3
	// ScoreThreshold stops the loop early once the best score reaches it.
	ScoreThreshold = 0.9
)

// Texts returned in Result.Text when no usable translation exists. They are
// shown to the user as-is.
const (
	NotConfiguredText    = "翻訳機能に必要なGPTモデルのデプロイ名が設定されていません。"
	GenerationFailedText = "翻訳中にエラーが発生しました"
	NoTranslationText    = "翻訳結果を取得できませんでした。"
	emptySourceText      = "翻訳対象の英文が空です。"
	initialBestScore     = -1.0
)

var (
	// ErrModelNotConfigured is a configuration error: no model or deployment
	// name is set. It is detected before any network call and never retried.
	ErrModelNotConfigured = errors.New("translation model is not configured")
	// ErrEmptySource is returned when there is nothing to translate.
	ErrEmptySource = errors.New("source text is empty")
)

// GenerationError reports a gateway failure while drafting a candidate. It
// ends the whole Translate call.
type GenerationError struct {
	Attempt int
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Glossary maps English source terms to the Japanese terms that must be used.
type Glossary map[string]string

// TermPair is one glossary entry.
type TermPair struct {
	Source string
	Target string
}

// Pairs returns the entries sorted by source term so prompts are stable.
func (g Glossary) Pairs() []TermPair {
	pairs := make([]TermPair, 0, len(g))
	for src, tgt := range g {
		pairs = append(pairs, TermPair{Source: src, Target: tgt})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Source < pairs[j].Source })
	return pairs
}

// Input is everything one translation needs.
type Input struct {
	Source    string
	ContextEN string
	ContextJA string
	Glossary  Glossary
}

// Attempt is one scored candidate. Index starts at 1.
type Attempt struct {
	Index int
	Text  string
	Score float64
}

// Result is the best candidate of a Translate call. Accepted is true when the
// score reached ScoreThreshold; callers must check it (or Score) rather than
// the presence of Text.
type Result struct {
	Text     string
	Score    float64
	Accepted bool
	Attempts []Attempt
}
