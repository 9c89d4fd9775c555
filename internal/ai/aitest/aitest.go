// Package aitest provides scripted providers and streams for tests.
package aitest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"itinera/internal/ai"
)

// Stream replays text chunks, then ends with Err (or io.EOF when Err is nil).
// With Hang set it blocks after the last chunk until its context ends.
type Stream struct {
	Chunks []string
	Err    error
	Hang   bool

	ctx    context.Context
	mu     sync.Mutex
	pos    int
	closed atomic.Bool
}

func NewStream(chunks []string, err error) *Stream {
	return &Stream{Chunks: chunks, Err: err}
}

func (s *Stream) Recv() ([]byte, error) {
	s.mu.Lock()
	if s.pos < len(s.Chunks) {
		c := s.Chunks[s.pos]
		s.pos++
		s.mu.Unlock()
		return []byte(c), nil
	}
	s.mu.Unlock()
	if s.Hang && s.ctx != nil {
		<-s.ctx.Done()
		if errors.Is(s.ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("aitest: %w", ai.ErrTimeout)
		}
		return nil, s.ctx.Err()
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return nil, io.EOF
}

func (s *Stream) Decode(frame []byte) (ai.Delta, error) {
	return ai.Delta{Text: string(frame)}, nil
}

func (s *Stream) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Stream) Closed() bool { return s.closed.Load() }

// Chunk splits text into n pieces of roughly equal size.
func Chunk(text string, n int) []string {
	if n <= 1 || len(text) <= n {
		out := make([]string, 0, len(text))
		if n <= 1 {
			return append(out, text)
		}
		for i := 0; i < len(text); i++ {
			out = append(out, text[i:i+1])
		}
		return out
	}
	size := len(text) / n
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(text)
		}
		out = append(out, text[start:end])
	}
	return out
}

// Provider answers each call with the scripted function for that call
// number (starting at 1).
type Provider struct {
	StreamFn   func(call int) (ai.Stream, error)
	CompleteFn func(call int) (*ai.Completion, error)

	streamCalls   atomic.Int32
	completeCalls atomic.Int32
	mu            sync.Mutex
	Prompts       []ai.Prompt
}

func (p *Provider) Name() string { return "scripted" }

func (p *Provider) Stream(ctx context.Context, prompt ai.Prompt) (ai.Stream, error) {
	n := int(p.streamCalls.Add(1))
	p.record(prompt)
	if p.StreamFn == nil {
		return nil, errors.New("aitest: no stream script")
	}
	s, err := p.StreamFn(n)
	if err != nil {
		return nil, err
	}
	if fake, ok := s.(*Stream); ok && fake.ctx == nil {
		fake.ctx = ctx
	}
	return s, nil
}

func (p *Provider) Complete(ctx context.Context, prompt ai.Prompt) (*ai.Completion, error) {
	n := int(p.completeCalls.Add(1))
	p.record(prompt)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.CompleteFn == nil {
		return nil, errors.New("aitest: no completion script")
	}
	return p.CompleteFn(n)
}

func (p *Provider) record(prompt ai.Prompt) {
	p.mu.Lock()
	p.Prompts = append(p.Prompts, prompt)
	p.mu.Unlock()
}

func (p *Provider) StreamCalls() int   { return int(p.streamCalls.Load()) }
func (p *Provider) CompleteCalls() int { return int(p.completeCalls.Load()) }

// Itinerary renders a well-formed document with n days in generation order:
// summary, destination, days, packing list.
func Itinerary(destination string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "{\n  \"summary\": %s,\n", quote(fmt.Sprintf("%d \"relaxed\" days in %s", n, destination)))
	fmt.Fprintf(&b, "  \"destination\": %s,\n  \"duration\": \"%d days\",\n  \"totalBudget\": \"$%d\",\n  \"days\": [\n", quote(destination), n, n*150)
	for d := 1; d <= n; d++ {
		fmt.Fprintf(&b, `    {"day": %d, "date": "Day %d", "theme": "Theme {%d}", `+
			`"activities": [{"name": "Walk %d", "time": "09:00", "duration": "2h", "description": "Path \\ with \"quotes\"", "cost": "$%d", "location": "Centre"}], `+
			`"meals": [{"meal": "Lunch", "restaurant": "Cafe %d", "cuisine": "Local", "cost": "$20", "description": "Good"}], `+
			`"transportation": "Walk", "estimatedCost": "$%d"}`, d, d, d, d, d*10, d, d*150)
		if d < n {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  ],\n  \"packingList\": [\"Shoes\", \"Adapter\"],\n  \"localTips\": [\"Tip\"],\n")
	b.WriteString("  \"budgetBreakdown\": {\"accommodation\": \"$300\", \"food\": \"$100\", \"activities\": \"$50\", \"transportation\": \"$20\"}\n}")
	return b.String()
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
