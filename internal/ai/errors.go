package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

var (
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrAuthInvalid         = errors.New("invalid api key")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrStreamRead          = errors.New("stream read failure")
	ErrTimeout             = errors.New("upstream timed out")
	ErrMalformedOutput     = errors.New("malformed model output")
	ErrEmptyResponse       = errors.New("empty response from model")
)

// MaxRawPrefix bounds the raw model text carried by a MalformedOutputError.
const MaxRawPrefix = 1000

// UpstreamError is a non-2xx answer from the provider.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
}

// Unwrap maps well-known statuses onto the sentinel errors.
func (e *UpstreamError) Unwrap() error {
	switch e.Status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusUnauthorized:
		return ErrAuthInvalid
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return ErrUpstreamUnavailable
	}
	return nil
}

// MalformedOutputError is raised once the repair pass could not make the
// model output parse.
type MalformedOutputError struct {
	Truncated bool
	RawPrefix string
	Err       error
}

func NewMalformedOutput(raw string, truncated bool, err error) *MalformedOutputError {
	return &MalformedOutputError{Truncated: truncated, RawPrefix: prefix(raw, MaxRawPrefix), Err: err}
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%v (truncated=%t): %v", ErrMalformedOutput, e.Truncated, e.Err)
}

func (e *MalformedOutputError) Unwrap() []error {
	return []error{ErrMalformedOutput, e.Err}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

const (
	CodeRateLimited         = "rate_limited"
	CodeAuthInvalid         = "auth_invalid"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUpstreamError       = "upstream_error"
	CodeStreamRead          = "stream_read"
	CodeMalformedOutput     = "malformed_output"
	CodeTimeout             = "timeout"
	CodeCanceled            = "canceled"
	CodeInternal            = "internal"
)

// Classify maps an error onto a stable code for logs and API responses.
func Classify(err error) string {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrAuthInvalid):
		return CodeAuthInvalid
	case errors.Is(err, ErrUpstreamUnavailable):
		return CodeUpstreamUnavailable
	case errors.Is(err, ErrMalformedOutput):
		return CodeMalformedOutput
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrStreamRead):
		return CodeStreamRead
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.As(err, &upstream):
		return CodeUpstreamError
	}
	return CodeInternal
}

// FromCode rebuilds a sentinel error from a code received over the wire.
func FromCode(code, message string) error {
	var base error
	switch code {
	case CodeRateLimited:
		base = ErrRateLimited
	case CodeAuthInvalid:
		base = ErrAuthInvalid
	case CodeUpstreamUnavailable:
		base = ErrUpstreamUnavailable
	case CodeMalformedOutput:
		base = ErrMalformedOutput
	case CodeTimeout:
		base = ErrTimeout
	case CodeCanceled:
		base = context.Canceled
	default:
		base = ErrStreamRead
	}
	if message == "" || message == base.Error() {
		return base
	}
	return fmt.Errorf("%w: %s", base, message)
}

// UserMessage is the human readable failure reason shown to travellers.
func UserMessage(err error) string {
	switch Classify(err) {
	case CodeRateLimited:
		return "Rate limit exceeded. Please try again in a few minutes."
	case CodeAuthInvalid:
		return "Invalid OpenAI API key. Please check your API key configuration."
	case CodeUpstreamUnavailable:
		return "OpenAI service is temporarily unavailable. Please try again later."
	case CodeMalformedOutput:
		return "The AI returned an incomplete itinerary. Please try again."
	case CodeTimeout:
		return "The AI travel planner took too long to respond. Please try again."
	case CodeStreamRead:
		return "Connection to the AI travel planner was lost."
	case CodeCanceled:
		return "Itinerary generation was cancelled."
	}
	return "Failed to generate itinerary. Please try again."
}
