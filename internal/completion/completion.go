// Package completion is the gateway to the text-completion models used by the
// translator and the document reviewers. Backends share the Completer
// interface so the core loops never depend on a concrete provider.
package completion

import (
	"context"
	"errors"
	"fmt"
)

// Request is a single chat-style completion call.
type Request struct {
	System      string
	User        string
	Temperature float64
	// MaxTokens <= 0 leaves the bound to the provider.
	MaxTokens int
	Stop      []string
}

// Completer generates text for a prompt. Model returns the configured model or
// deployment name; an empty string means the gateway is not configured.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

var (
	// ErrEmptyResponse is returned when the provider answered without any choices.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrMissingCredentials is returned by constructors when an API key is required.
	ErrMissingCredentials = errors.New("API key required")
)

// Error is a transport, auth or rate-limit failure reported by a provider.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	base := e.Provider + " request failed"
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.Err != nil && e.Message == "" {
		base += ": " + e.Err.Error()
	}
	return base
}

func (e *Error) Unwrap() error { return e.Err }

// RateLimited reports whether the provider rejected the call with HTTP 429.
func (e *Error) RateLimited() bool { return e.StatusCode == 429 }
