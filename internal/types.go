package internal

import "time"

// TranslationRun records one translate invocation and every scored attempt.
type TranslationRun struct {
	ID         string       `json:"id"`
	SourceText string       `json:"source_text"`
	ContextEN  string       `json:"context_en,omitempty"`
	ContextJA  string       `json:"context_ja,omitempty"`
	Model      string       `json:"model"`
	FinalText  string       `json:"final_text"`
	Score      float64      `json:"score"`
	Accepted   bool         `json:"accepted"`
	Error      string       `json:"error,omitempty"`
	Attempts   []RunAttempt `json:"attempts,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// RunAttempt is one candidate of a TranslationRun.
type RunAttempt struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// ReviewRun records one review pipeline invocation.
type ReviewRun struct {
	ID         string    `json:"id"`
	Document   string    `json:"document"`
	RuleSets   []string  `json:"rule_sets"`
	Mechanical string    `json:"mechanical"`
	FinalText  string    `json:"final_text"`
	Timestamp  time.Time `json:"timestamp"`
}
