// README: Multiplexer, generator and SSE frame tests driven by scripted streams.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"itinera/internal/ai"
	"itinera/internal/ai/aitest"
	"itinera/internal/itinerary"
)

func collect(t *testing.T, ch <-chan itinerary.Event) []itinerary.Event {
	t.Helper()
	var out []itinerary.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("multiplexer did not close its output")
		}
	}
}

func TestPipeEmitsSectionsThenComplete(t *testing.T) {
	doc := aitest.Itinerary("Porto", 3)
	src := aitest.NewStream(aitest.Chunk(doc, 50), nil)
	events := collect(t, Pipe(context.Background(), src))

	var keys []string
	for _, ev := range events {
		if ev.Key() != "" {
			keys = append(keys, ev.Key())
		} else {
			keys = append(keys, string(ev.Kind))
		}
	}
	want := "[summary destination day:1 day:2 day:3 complete]"
	if fmt.Sprint(keys) != want {
		t.Fatalf("events = %v, want %s", keys, want)
	}
	if !src.Closed() {
		t.Fatalf("upstream stream was not closed")
	}
}

func TestPipeReadErrorEmitsError(t *testing.T) {
	doc := aitest.Itinerary("Porto", 3)
	cut := bytes.Index([]byte(doc), []byte(`{"day": 3`))
	readErr := fmt.Errorf("reset: %w", ai.ErrStreamRead)
	src := aitest.NewStream(aitest.Chunk(doc[:cut], 20), readErr)

	events := collect(t, Pipe(context.Background(), src))
	last := events[len(events)-1]
	if last.Kind != itinerary.KindError || last.Code != ai.CodeStreamRead || !errors.Is(last.Err, ai.ErrStreamRead) {
		t.Fatalf("expected a stream_read error event, got %+v", last)
	}
	days := 0
	for _, ev := range events {
		if ev.Kind == itinerary.KindDay {
			days++
		}
		if ev.Kind == itinerary.KindComplete {
			t.Fatalf("complete must not follow a read error")
		}
	}
	if days != 2 {
		t.Fatalf("expected the 2 finished days before the error, got %d", days)
	}
}

// doneStream ends with the provider's terminator frame and never returns EOF.
type doneStream struct{ frames [][]byte }

func (s *doneStream) Recv() ([]byte, error) {
	if len(s.frames) == 0 {
		return nil, errors.New("read past terminator")
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}
func (s *doneStream) Decode(frame []byte) (ai.Delta, error) { return ai.DecodeOpenAIDelta(frame) }
func (s *doneStream) Close() error                         { return nil }

func TestPipeStopsAtTerminatorFrame(t *testing.T) {
	src := &doneStream{frames: [][]byte{
		[]byte(`{"choices":[{"delta":{"content":"{\"summary\": \"Short\""}}]}`),
		[]byte(`{"choices":[{"delta":{},"finish_reason":"stop"}]}`),
		[]byte("[DONE]"),
	}}
	events := collect(t, Pipe(context.Background(), src))
	if len(events) != 2 || events[0].Text != "Short" || events[1].Kind != itinerary.KindComplete {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestPipeCancelledSendsNothingMore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := aitest.NewStream([]string{`{"summary": "S", `}, nil)
	src.Hang = true
	p := &aitest.Provider{StreamFn: func(int) (ai.Stream, error) { return src, nil }}
	s, err := p.Stream(ctx, ai.Prompt{})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	ch := Pipe(ctx, s)
	first := <-ch
	if first.Kind != itinerary.KindSummary {
		t.Fatalf("expected summary first, got %+v", first)
	}
	cancel()
	for ev := range ch {
		t.Fatalf("no events after cancellation, got %+v", ev)
	}
	if !src.Closed() {
		t.Fatalf("stream not released after cancellation")
	}
}

func TestGeneratorUsesModes(t *testing.T) {
	doc := aitest.Itinerary("Faro", 2)
	p := &aitest.Provider{
		StreamFn: func(int) (ai.Stream, error) { return aitest.NewStream(aitest.Chunk(doc, 7), nil), nil },
		CompleteFn: func(int) (*ai.Completion, error) {
			return &ai.Completion{Text: "```json\n" + doc + "\n```"}, nil
		},
	}
	prefs := itinerary.TripPreferences{Destination: "Faro", StartDate: itinerary.NewDate(2026, time.June, 1), EndDate: itinerary.NewDate(2026, time.June, 2)}
	g := NewGenerator(p, prefs)

	ch, err := g.OpenStream(context.Background())
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if n := len(collect(t, ch)); n != 5 {
		t.Fatalf("expected summary, destination, 2 days and complete, got %d events", n)
	}
	gen, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.Document.Destination != "Faro" || len(gen.Document.Days) != 2 {
		t.Fatalf("unexpected document: %+v", gen.Document)
	}
	if p.Prompts[0].Mode != ai.ModeStreaming || p.Prompts[1].Mode != ai.ModeBuffered {
		t.Fatalf("prompt modes: %s, %s", p.Prompts[0].Mode, p.Prompts[1].Mode)
	}
}

func TestEventReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sent := []itinerary.Event{
		itinerary.SummaryEvent("A <b> & c"),
		itinerary.DayEvent(1, []byte(`{"day":1,"theme":"x"}`)),
		itinerary.ErrorEvent(ai.ErrTimeout, ai.CodeTimeout),
		itinerary.CompleteEvent(),
	}
	for _, ev := range sent {
		if err := WriteEvent(&buf, ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	// a hand written frame with the spaced prefix and a comment line
	buf.WriteString(": ping\ndata: {\"type\":\"destination\",\"data\":\"Faro\"}\n\n")

	r := NewEventReader(&buf)
	var got []itinerary.Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, ev)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 events, got %d", len(got))
	}
	if got[0].Text != "A <b> & c" || got[1].DayNumber != 1 || got[2].Code != ai.CodeTimeout || got[4].Text != "Faro" {
		t.Fatalf("unexpected events: %+v", got)
	}
}
