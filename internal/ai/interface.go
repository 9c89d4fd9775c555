package ai

import (
	"context"
)

// Provider issues itinerary completions to an LLM in buffered or streaming mode.
// Implementations classify failures with the error taxonomy in errors.go.
type Provider interface {
	// Name identifies the provider in logs and rate limit keys.
	Name() string

	// Complete performs one buffered request, retrying only on rate limiting.
	Complete(ctx context.Context, p Prompt) (*Completion, error)

	// Stream opens a single streaming request. It is never retried internally.
	Stream(ctx context.Context, p Prompt) (Stream, error)
}

// Stream is a live completion feed owned by one session.
type Stream interface {
	// Recv returns the next raw frame payload, or io.EOF once the provider is done.
	Recv() ([]byte, error)

	// Decode extracts the text delta carried by one frame.
	Decode(frame []byte) (Delta, error)

	// Close releases the underlying connection.
	Close() error
}

// Limiter gates upstream requests against a shared budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
