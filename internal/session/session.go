// README: Consumer session: streams sections into a draft, retries lost streams, falls back to buffered generation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"itinera/internal/ai"
	"itinera/internal/itinerary"
	"itinera/internal/logger"
)

// Source produces itineraries for one set of preferences, either in-process
// (stream.Generator) or through the API (client.Source).
type Source interface {
	OpenStream(ctx context.Context) (<-chan itinerary.Event, error)
	Generate(ctx context.Context) (*itinerary.Generated, error)
}

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second

	// NoRetries disables stream re-issues; a lost stream goes straight to
	// the buffered fallback.
	NoRetries = -1
)

// Options tunes one session. Zero values pick the defaults.
type Options struct {
	// MaxRetries is the number of stream re-issues after the first attempt.
	// Zero means the default of 3; use NoRetries to disable them.
	MaxRetries int
	RetryDelay time.Duration
	// AttemptTimeout bounds one streaming attempt; expiry counts as a stream error.
	AttemptTimeout time.Duration
	// Buffered skips streaming and asks for the whole document at once.
	Buffered bool
	Observer Observer
}

// Update is delivered to the Observer after every state change and every
// folded section.
type Update struct {
	State    State
	Progress string
	Event    *itinerary.Event
	Draft    Draft
}

type Observer func(Update)

// Session drives one planning session through the state machine in
// state.go. Run must be called once; the accessors are safe to call
// concurrently with it.
type Session struct {
	src  Source
	opts Options

	mu       sync.Mutex
	state    State
	draft    Draft
	progress string
	retries  int
}

func New(src Source, opts Options) *Session {
	switch {
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	case opts.MaxRetries == 0:
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	return &Session{src: src, opts: opts, state: StateIdle}
}

// connectError marks a failure to establish the stream at all.
type connectError struct{ err error }

func (e *connectError) Error() string { return e.err.Error() }
func (e *connectError) Unwrap() error { return e.err }

var errNoTerminal = fmt.Errorf("%w: stream ended without a terminal event", ai.ErrStreamRead)

// Run drives the session to Complete or Failed and returns the finished
// document. If ctx is cancelled the session is abandoned where it stands
// and ctx.Err() is returned.
func (s *Session) Run(ctx context.Context) (itinerary.Document, error) {
	if s.opts.Buffered {
		return s.fallback(ctx, nil)
	}
	for attempt := 0; ; attempt++ {
		msg := "Connecting to AI travel planner..."
		if attempt > 0 {
			msg = fmt.Sprintf("Connection lost. Retrying... (%d/%d)", attempt, s.opts.MaxRetries)
		}
		if !s.transition(ctx, StateConnecting, msg) {
			return itinerary.Document{}, ctx.Err()
		}
		if attempt > 0 {
			select {
			case <-time.After(s.opts.RetryDelay):
			case <-ctx.Done():
				return itinerary.Document{}, ctx.Err()
			}
		}

		err := s.attempt(ctx)
		var connErr *connectError
		switch {
		case ctx.Err() != nil:
			return itinerary.Document{}, ctx.Err()
		case err == nil:
			return s.complete(ctx, nil)
		case errors.Is(err, ai.ErrAuthInvalid):
			return s.fail(ctx, err)
		case errors.As(err, &connErr):
			logger.Warn("stream could not be established", "code", ai.Classify(err), "err", err)
			return s.fallback(ctx, err)
		case attempt >= s.opts.MaxRetries:
			logger.Warn("stream retries exhausted", "retries", attempt, "code", ai.Classify(err))
			return s.fallback(ctx, err)
		}
		logger.Warn("stream attempt failed", "attempt", attempt+1, "code", ai.Classify(err), "err", err)
		s.mu.Lock()
		s.retries++
		s.mu.Unlock()
	}
}

// attempt runs one streaming request and folds its sections. A nil return
// means the stream delivered Complete.
func (s *Session) attempt(ctx context.Context) error {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if s.opts.AttemptTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, s.opts.AttemptTimeout)
	}
	// cancelling actx releases the upstream connection and the pump goroutine
	defer cancel()

	events, err := s.src.OpenStream(actx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ai.ErrTimeout, err)
		}
		return &connectError{err: err}
	}
	for {
		select {
		case ev, ok := <-events:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !ok {
				if actx.Err() != nil {
					return s.attemptTimeout()
				}
				return errNoTerminal
			}
			if !s.receive(ctx, ev) {
				return ctx.Err()
			}
			switch ev.Kind {
			case itinerary.KindComplete:
				return nil
			case itinerary.KindError:
				if ev.Err != nil {
					return ev.Err
				}
				return ai.FromCode(ev.Code, ev.Message)
			}
		case <-actx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return s.attemptTimeout()
		}
	}
}

func (s *Session) attemptTimeout() error {
	return fmt.Errorf("%w: streaming attempt exceeded %s", ai.ErrTimeout, s.opts.AttemptTimeout)
}

// receive moves Connecting to Streaming on the first event and folds sections.
// It returns false once the session has been abandoned.
func (s *Session) receive(ctx context.Context, ev itinerary.Event) bool {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if s.state == StateConnecting {
		s.setState(StateStreaming)
	}
	changed, err := s.draft.Fold(ev)
	if err != nil {
		logger.Warn("day section rejected", "day", ev.DayNumber, "err", err)
	}
	if changed {
		s.progress = progressFor(ev, &s.draft, s.progress)
	}
	u := s.update(&ev)
	s.mu.Unlock()

	if changed {
		s.notify(u)
	}
	return true
}

func progressFor(ev itinerary.Event, d *Draft, current string) string {
	switch ev.Kind {
	case itinerary.KindSummary:
		return "Creating trip overview..."
	case itinerary.KindDestination:
		return fmt.Sprintf("Exploring %s...", *d.Destination)
	case itinerary.KindDay:
		return fmt.Sprintf("Day %d planned! Creating day %d...", ev.DayNumber, ev.DayNumber+1)
	}
	return current
}

func (s *Session) fallback(ctx context.Context, cause error) (itinerary.Document, error) {
	if !s.transition(ctx, StateFallbackPending, "Switching to standard generation...") {
		return itinerary.Document{}, ctx.Err()
	}
	if cause != nil {
		logger.Info("falling back to buffered generation", "cause", ai.Classify(cause))
	}
	if !s.transition(ctx, StateFallbackRequesting, "Switching to standard generation...") {
		return itinerary.Document{}, ctx.Err()
	}
	gen, err := s.src.Generate(ctx)
	if ctx.Err() != nil {
		return itinerary.Document{}, ctx.Err()
	}
	if err != nil {
		return s.fail(ctx, err)
	}
	return s.complete(ctx, gen)
}

func (s *Session) complete(ctx context.Context, gen *itinerary.Generated) (itinerary.Document, error) {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return itinerary.Document{}, ctx.Err()
	}
	if gen != nil {
		s.draft.merge(gen)
	}
	s.draft.Complete = true
	s.setState(StateComplete)
	s.progress = "Your itinerary is complete!"
	doc := s.draft.Document()
	u := s.update(nil)
	s.mu.Unlock()

	logger.Info("itinerary complete", "days", len(doc.Days), "retries", s.Retries(), "fallback", gen != nil)
	s.notify(u)
	return doc, nil
}

func (s *Session) fail(ctx context.Context, err error) (itinerary.Document, error) {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return itinerary.Document{}, ctx.Err()
	}
	s.draft.Err = err
	s.setState(StateFailed)
	s.progress = ai.UserMessage(err)
	u := s.update(nil)
	s.mu.Unlock()

	logger.Error("itinerary generation failed", "code", ai.Classify(err), "days", len(u.Draft.Days), "err", err)
	s.notify(u)
	return itinerary.Document{}, err
}

func (s *Session) transition(ctx context.Context, to State, progress string) bool {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.setState(to)
	s.progress = progress
	u := s.update(nil)
	s.mu.Unlock()

	s.notify(u)
	return true
}

// setState must be called with mu held.
func (s *Session) setState(to State) {
	if !CanTransition(s.state, to) {
		panic(fmt.Sprintf("session: invalid transition %s -> %s", s.state, to))
	}
	s.state = to
}

func (s *Session) update(ev *itinerary.Event) Update {
	return Update{State: s.state, Progress: s.progress, Event: ev, Draft: s.draft.clone()}
}

func (s *Session) notify(u Update) {
	if s.opts.Observer != nil {
		s.opts.Observer(u)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the current draft.
func (s *Session) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.clone()
}

func (s *Session) Progress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Retries returns how many times the stream has been re-issued.
func (s *Session) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}
