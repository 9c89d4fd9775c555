// README: Event multiplexer: provider stream -> extractor -> ordered section events.
package stream

import (
	"context"
	"errors"
	"io"

	"itinera/internal/ai"
	"itinera/internal/extract"
	"itinera/internal/itinerary"
	"itinera/internal/logger"
)

// Multiplexer feeds one provider stream through an Extractor. It never
// retries; the caller decides what to do after an Error event.
type Multiplexer struct {
	src    ai.Stream
	x      *extract.Extractor
	finish string
}

func NewMultiplexer(src ai.Stream) *Multiplexer {
	return &Multiplexer{src: src, x: extract.New()}
}

// Pipe starts a Multiplexer on its own goroutine and returns its events.
func Pipe(ctx context.Context, src ai.Stream) <-chan itinerary.Event {
	out := make(chan itinerary.Event, 16)
	go func() { _ = NewMultiplexer(src).Run(ctx, out) }()
	return out
}

// Run reads frames until the provider is done and sends every newly completed
// section to out, followed by Complete. A read failure sends Error instead.
// out is closed when Run returns. If ctx is cancelled nothing further is sent.
func (m *Multiplexer) Run(ctx context.Context, out chan<- itinerary.Event) error {
	defer close(out)
	defer m.src.Close()

	send := func(ev itinerary.Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		frame, err := m.src.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return m.fail(ctx, out, err)
		}
		delta, err := m.src.Decode(frame)
		if err != nil {
			return m.fail(ctx, out, err)
		}
		if delta.FinishReason != "" {
			m.finish = delta.FinishReason
		}
		if delta.Text != "" {
			m.x.AddChunk(delta.Text)
			for _, ev := range m.x.Poll() {
				if !send(ev) {
					return ctx.Err()
				}
			}
		}
		if delta.Done {
			break
		}
	}

	if m.finish == "length" {
		logger.Warn("stream stopped at the output token limit", "bytes", m.x.Len())
	}
	logger.Debug("stream complete", "bytes", m.x.Len(), "finish", m.finish)
	if !send(itinerary.CompleteEvent()) {
		return ctx.Err()
	}
	return nil
}

func (m *Multiplexer) fail(ctx context.Context, out chan<- itinerary.Event, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	ev := itinerary.ErrorEvent(err, ai.Classify(err))
	if ctx.Err() != nil {
		// deadline passed: report it if there is room, never block
		select {
		case out <- ev:
		default:
		}
		return err
	}
	logger.Warn("stream read failed", "code", ev.Code, "bytes", m.x.Len(), "err", err)
	select {
	case out <- ev:
	case <-ctx.Done():
	}
	return err
}
