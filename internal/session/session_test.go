package session_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"itinera/internal/ai"
	"itinera/internal/ai/aitest"
	"itinera/internal/itinerary"
	"itinera/internal/session"
	"itinera/internal/stream"
)

func prefs() itinerary.TripPreferences {
	return itinerary.TripPreferences{
		Destination:   "Lisbon",
		StartDate:     itinerary.NewDate(2026, time.May, 1),
		EndDate:       itinerary.NewDate(2026, time.May, 3),
		GroupSize:     itinerary.GroupCouple,
		Budget:        itinerary.BudgetMid,
		Interests:     []string{"Food & Dining"},
		Pace:          itinerary.PaceModerate,
		Accommodation: itinerary.StayHotel,
	}
}

// cutAfterDay2 is a document that stops after day 2 closes, before day 3 begins.
func cutAfterDay2() string {
	doc := aitest.Itinerary("Lisbon", 3)
	return doc[:strings.Index(doc, `{"day": 3`)]
}

func lostStream(text string) *aitest.Stream {
	return aitest.NewStream(aitest.Chunk(text, 10), fmt.Errorf("connection reset: %w", ai.ErrStreamRead))
}

type recorder struct {
	mu      sync.Mutex
	updates []session.Update
}

func (r *recorder) observe(u session.Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) states() []session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []session.State
	for _, u := range r.updates {
		if len(out) == 0 || out[len(out)-1] != u.State {
			out = append(out, u.State)
		}
	}
	return out
}

func (r *recorder) progress() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, u := range r.updates {
		out = append(out, u.Progress)
	}
	return out
}

func dayNumbers(days []itinerary.Day) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		out = append(out, d.Day)
	}
	return out
}

func fastOptions(rec *recorder) session.Options {
	opts := session.Options{RetryDelay: time.Millisecond}
	if rec != nil {
		opts.Observer = rec.observe
	}
	return opts
}

func TestStreamedSessionCompletes(t *testing.T) {
	p := &aitest.Provider{StreamFn: func(int) (ai.Stream, error) {
		return aitest.NewStream(aitest.Chunk(aitest.Itinerary("Lisbon", 3), 50), nil), nil
	}}
	rec := &recorder{}
	s := session.New(stream.NewGenerator(p, prefs()), fastOptions(rec))

	doc, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.State() != session.StateComplete {
		t.Fatalf("state = %s", s.State())
	}
	if got := fmt.Sprint(dayNumbers(doc.Days)); got != "[1 2 3]" {
		t.Fatalf("days = %s", got)
	}
	d := s.Snapshot()
	if d.Summary == nil || d.Destination == nil || *d.Destination != "Lisbon" || !d.Complete {
		t.Fatalf("incomplete draft: %+v", d)
	}
	if p.CompleteCalls() != 0 || s.Retries() != 0 {
		t.Fatalf("unexpected fallback or retry: complete=%d retries=%d", p.CompleteCalls(), s.Retries())
	}
	want := "[connecting streaming complete]"
	if got := fmt.Sprint(rec.states()); got != want {
		t.Fatalf("states = %s, want %s", got, want)
	}
	progress := strings.Join(rec.progress(), "|")
	for _, msg := range []string{"Creating trip overview...", "Exploring Lisbon...", "Day 2 planned! Creating day 3...", "Your itinerary is complete!"} {
		if !strings.Contains(progress, msg) {
			t.Fatalf("missing progress %q in %s", msg, progress)
		}
	}
}

func TestStreamedDaysWithStructuredLabelsAreKept(t *testing.T) {
	doc := aitest.Itinerary("Lisbon", 3)
	doc = strings.Replace(doc, `"location": "Centre"}`, `"location": "Centre", "tips": ["go early", "bring water"]}`, 1)
	doc = strings.Replace(doc, `"estimatedCost": "$300"`, `"estimatedCost": {"amount": 20}`, 1)
	p := &aitest.Provider{StreamFn: func(int) (ai.Stream, error) {
		return aitest.NewStream(aitest.Chunk(doc, 50), nil), nil
	}}
	s := session.New(stream.NewGenerator(p, prefs()), fastOptions(nil))

	got, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if days := fmt.Sprint(dayNumbers(got.Days)); days != "[1 2 3]" {
		t.Fatalf("days = %s", days)
	}
	if got.Days[0].Activities[0].Tips != "go early; bring water" || got.Days[1].EstimatedCost != `{"amount":20}` {
		t.Fatalf("structured labels lost: %+v / %+v", got.Days[0].Activities[0], got.Days[1])
	}
	if p.CompleteCalls() != 0 {
		t.Fatalf("unexpected fallback")
	}
}

func TestRetriesExhaustedKeepsFoldedDays(t *testing.T) {
	p := &aitest.Provider{
		StreamFn: func(int) (ai.Stream, error) { return lostStream(cutAfterDay2()), nil },
		CompleteFn: func(int) (*ai.Completion, error) {
			return nil, &ai.UpstreamError{Provider: "scripted", Status: http.StatusServiceUnavailable}
		},
	}
	rec := &recorder{}
	s := session.New(stream.NewGenerator(p, prefs()), fastOptions(rec))

	_, err := s.Run(context.Background())
	if !errors.Is(err, ai.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
	if s.State() != session.StateFailed {
		t.Fatalf("state = %s", s.State())
	}
	if s.Retries() != 3 || p.StreamCalls() != 4 || p.CompleteCalls() != 1 {
		t.Fatalf("retries=%d streams=%d completes=%d", s.Retries(), p.StreamCalls(), p.CompleteCalls())
	}
	d := s.Snapshot()
	if got := fmt.Sprint(dayNumbers(d.Days)); got != "[1 2]" {
		t.Fatalf("days after failure = %s", got)
	}
	if d.Err == nil || s.Progress() != ai.UserMessage(err) {
		t.Fatalf("failure not recorded: err=%v progress=%q", d.Err, s.Progress())
	}
	// the draft never loses a day while retrying
	maxDays := 0
	for _, u := range rec.updates {
		if len(u.Draft.Days) < maxDays {
			t.Fatalf("draft regressed from %d to %d days", maxDays, len(u.Draft.Days))
		}
		maxDays = len(u.Draft.Days)
	}
	if !strings.Contains(strings.Join(rec.progress(), "|"), "Connection lost. Retrying... (3/3)") {
		t.Fatalf("missing retry progress: %v", rec.progress())
	}
}

func TestNoRetriesFallsBackAfterFirstLoss(t *testing.T) {
	p := &aitest.Provider{
		StreamFn: func(int) (ai.Stream, error) { return lostStream(cutAfterDay2()), nil },
		CompleteFn: func(int) (*ai.Completion, error) {
			return &ai.Completion{Text: aitest.Itinerary("Lisbon", 3)}, nil
		},
	}
	opts := fastOptions(nil)
	opts.MaxRetries = session.NoRetries
	s := session.New(stream.NewGenerator(p, prefs()), opts)

	doc, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.StreamCalls() != 1 || p.CompleteCalls() != 1 || s.Retries() != 0 || len(doc.Days) != 3 {
		t.Fatalf("streams=%d completes=%d retries=%d days=%d", p.StreamCalls(), p.CompleteCalls(), s.Retries(), len(doc.Days))
	}
}

func TestRetryRecovers(t *testing.T) {
	p := &aitest.Provider{StreamFn: func(call int) (ai.Stream, error) {
		if call == 1 {
			return lostStream(cutAfterDay2()), nil
		}
		return aitest.NewStream(aitest.Chunk(aitest.Itinerary("Lisbon", 3), 30), nil), nil
	}}
	s := session.New(stream.NewGenerator(p, prefs()), fastOptions(nil))

	doc, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.Retries() != 1 || len(doc.Days) != 3 {
		t.Fatalf("retries=%d days=%d", s.Retries(), len(doc.Days))
	}
}

func TestAuthInvalidFailsImmediately(t *testing.T) {
	auth := &ai.UpstreamError{Provider: "scripted", Status: http.StatusUnauthorized}
	tests := []struct {
		name string
		fn   func(int) (ai.Stream, error)
	}{
		{"on connect", func(int) (ai.Stream, error) { return nil, auth }},
		{"mid stream", func(int) (ai.Stream, error) {
			return aitest.NewStream([]string{`{"summary": "S", `}, auth), nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &aitest.Provider{StreamFn: tt.fn}
			s := session.New(stream.NewGenerator(p, prefs()), fastOptions(nil))
			_, err := s.Run(context.Background())
			if !errors.Is(err, ai.ErrAuthInvalid) {
				t.Fatalf("expected auth error, got %v", err)
			}
			if s.State() != session.StateFailed || p.StreamCalls() != 1 || p.CompleteCalls() != 0 {
				t.Fatalf("state=%s streams=%d completes=%d", s.State(), p.StreamCalls(), p.CompleteCalls())
			}
		})
	}
}

func TestConnectFailureFallsBack(t *testing.T) {
	p := &aitest.Provider{
		StreamFn: func(int) (ai.Stream, error) {
			return nil, &ai.UpstreamError{Provider: "scripted", Status: http.StatusInternalServerError}
		},
		CompleteFn: func(int) (*ai.Completion, error) {
			return &ai.Completion{Text: aitest.Itinerary("Lisbon", 3)}, nil
		},
	}
	rec := &recorder{}
	s := session.New(stream.NewGenerator(p, prefs()), fastOptions(rec))

	doc, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "[connecting fallback_pending fallback_requesting complete]"
	if got := fmt.Sprint(rec.states()); got != want {
		t.Fatalf("states = %s, want %s", got, want)
	}
	if p.StreamCalls() != 1 || len(doc.Days) != 3 || len(doc.PackingList) != 2 {
		t.Fatalf("streams=%d doc=%+v", p.StreamCalls(), doc)
	}
	if d := s.Snapshot(); len(d.Raw()) == 0 {
		t.Fatalf("fallback raw document not kept")
	}
}

func TestFallbackMergeKeepsStreamedSections(t *testing.T) {
	p := &aitest.Provider{
		StreamFn: func(int) (ai.Stream, error) { return lostStream(cutAfterDay2()), nil },
		CompleteFn: func(int) (*ai.Completion, error) {
			return &ai.Completion{Text: `{"destination": "Elsewhere", "summary": "Other",
				"days": [{"day": 3, "theme": "Third"}, {"day": 1, "theme": "Replaced"}],
				"packingList": ["Hat"]}`}, nil
		},
	}
	opts := fastOptions(nil)
	opts.MaxRetries = 1
	s := session.New(stream.NewGenerator(p, prefs()), opts)

	doc, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc.Destination != "Lisbon" || strings.Contains(doc.Summary, "Other") {
		t.Fatalf("streamed scalars overwritten: %q %q", doc.Destination, doc.Summary)
	}
	if got := fmt.Sprint(dayNumbers(doc.Days)); got != "[1 2 3]" {
		t.Fatalf("days = %s", got)
	}
	if doc.Days[0].Theme != "Theme {1}" || doc.Days[2].Theme != "Third" {
		t.Fatalf("day themes = %q %q", doc.Days[0].Theme, doc.Days[2].Theme)
	}
	if len(doc.PackingList) != 1 || p.StreamCalls() != 2 {
		t.Fatalf("packing=%v streams=%d", doc.PackingList, p.StreamCalls())
	}
}

func TestCancelledSessionStopsMutating(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var src *aitest.Stream
	p := &aitest.Provider{StreamFn: func(int) (ai.Stream, error) {
		src = aitest.NewStream([]string{`{"summary": "S", `, `"destination": "D", `}, nil)
		src.Hang = true
		return src, nil
	}}
	opts := fastOptions(nil)
	opts.Observer = func(u session.Update) {
		if u.Event != nil && u.Event.Kind == itinerary.KindSummary {
			cancel()
		}
	}
	s := session.New(stream.NewGenerator(p, prefs()), opts)

	_, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	d := s.Snapshot()
	if d.Summary == nil || d.Destination != nil {
		t.Fatalf("draft mutated after cancellation: %+v", d)
	}
	if s.State() != session.StateStreaming || p.CompleteCalls() != 0 {
		t.Fatalf("state=%s completes=%d", s.State(), p.CompleteCalls())
	}
	deadline := time.Now().Add(2 * time.Second)
	for !src.Closed() {
		if time.Now().After(deadline) {
			t.Fatalf("upstream stream not released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAttemptTimeoutCountsAsStreamError(t *testing.T) {
	p := &aitest.Provider{
		StreamFn: func(int) (ai.Stream, error) {
			st := aitest.NewStream([]string{`{"summary": "Slow", `}, nil)
			st.Hang = true
			return st, nil
		},
		CompleteFn: func(int) (*ai.Completion, error) {
			return &ai.Completion{Text: aitest.Itinerary("Lisbon", 3)}, nil
		},
	}
	opts := fastOptions(nil)
	opts.MaxRetries = 1
	opts.AttemptTimeout = 30 * time.Millisecond
	s := session.New(stream.NewGenerator(p, prefs()), opts)

	doc, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.StreamCalls() != 2 || p.CompleteCalls() != 1 || s.Retries() != 1 {
		t.Fatalf("streams=%d completes=%d retries=%d", p.StreamCalls(), p.CompleteCalls(), s.Retries())
	}
	if doc.Summary != "Slow" || len(doc.Days) != 3 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

// chanSource serves scripted channels without a provider behind them.
type chanSource struct {
	opens int
	gen   *itinerary.Generated
}

func (c *chanSource) OpenStream(context.Context) (<-chan itinerary.Event, error) {
	c.opens++
	ch := make(chan itinerary.Event, 1)
	ch <- itinerary.SummaryEvent("Partial")
	close(ch)
	return ch, nil
}

func (c *chanSource) Generate(context.Context) (*itinerary.Generated, error) {
	return c.gen, nil
}

func TestStreamWithoutTerminalEventIsRetried(t *testing.T) {
	src := &chanSource{gen: &itinerary.Generated{Document: itinerary.Document{Destination: "Lisbon", Days: []itinerary.Day{{Day: 1}}}}}
	opts := fastOptions(nil)
	opts.MaxRetries = 2
	s := session.New(src, opts)

	doc, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if src.opens != 3 || s.Retries() != 2 || doc.Summary != "Partial" {
		t.Fatalf("opens=%d retries=%d summary=%q", src.opens, s.Retries(), doc.Summary)
	}
}

func TestBufferedSessionSkipsStreaming(t *testing.T) {
	p := &aitest.Provider{CompleteFn: func(int) (*ai.Completion, error) {
		return &ai.Completion{Text: "```json\n" + aitest.Itinerary("Lisbon", 3) + "\n```"}, nil
	}}
	opts := fastOptions(nil)
	opts.Buffered = true
	s := session.New(stream.NewGenerator(p, prefs()), opts)

	doc, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.StreamCalls() != 0 || len(doc.Days) != 3 || s.State() != session.StateComplete {
		t.Fatalf("streams=%d days=%d state=%s", p.StreamCalls(), len(doc.Days), s.State())
	}
}

func TestMalformedFallbackFails(t *testing.T) {
	p := &aitest.Provider{CompleteFn: func(int) (*ai.Completion, error) {
		return &ai.Completion{Text: `{"days": [`, Truncated: false}, nil
	}}
	opts := fastOptions(nil)
	opts.Buffered = true
	s := session.New(stream.NewGenerator(p, prefs()), opts)

	_, err := s.Run(context.Background())
	var malformed *ai.MalformedOutputError
	if !errors.As(err, &malformed) || s.State() != session.StateFailed {
		t.Fatalf("expected malformed output failure, got %v (state %s)", err, s.State())
	}
}
