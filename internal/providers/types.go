package providers

import (
	"context"
	"errors"
	"fmt"

	"matscigpt/backend/internal/models"
)

// ErrorKind classifies an upstream provider failure. Adapters map HTTP
// status codes to a kind so callers never have to match on message text.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnavailable  ErrorKind = "unavailable"
	KindUnknown      ErrorKind = "unknown"
)

// Error is a typed upstream provider error.
type Error struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
}

// KindOf extracts the error kind, or KindUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsRateLimited reports whether err is a rate-limit error.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// IsUnauthorized reports whether err is an API-key rejection.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// kindFromStatus maps an HTTP status code to an error kind.
func kindFromStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindUnauthorized
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// Request carries everything an adapter needs for one completion call.
type Request struct {
	System      string
	Turns       []models.ChatTurn
	Attachments []models.AttachmentPayload
	Temperature float64
	MaxTokens   int
}

// Completion is a successful provider response.
type Completion struct {
	Text  string
	Usage map[string]any
}

// Provider is an upstream large-language-model API. Every call is one-shot:
// no retries, no backoff. The caller decides fallback.
type Provider interface {
	Name() string
	Available() bool
	Complete(ctx context.Context, req Request) (*Completion, error)
}
