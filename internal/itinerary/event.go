// README: Section events delivered while an itinerary is generated, and their SSE wire form.
package itinerary

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type Kind string

const (
	KindSummary     Kind = "summary"
	KindDestination Kind = "destination"
	KindDay         Kind = "day"
	KindComplete    Kind = "complete"
	KindError       Kind = "error"
)

// Event is one completed section of an itinerary, or the terminal
// Complete/Error marker of a stream.
type Event struct {
	Kind      Kind
	Text      string
	DayNumber int
	Payload   json.RawMessage
	Message   string
	Code      string
	// Err keeps the typed cause for in-process consumers; it is not sent on the wire.
	Err error
}

func SummaryEvent(text string) Event {
	return Event{Kind: KindSummary, Text: text}
}

func DestinationEvent(text string) Event {
	return Event{Kind: KindDestination, Text: text}
}

func DayEvent(n int, payload json.RawMessage) Event {
	return Event{Kind: KindDay, DayNumber: n, Payload: payload}
}

func CompleteEvent() Event {
	return Event{Kind: KindComplete}
}

func ErrorEvent(err error, code string) Event {
	return Event{Kind: KindError, Message: err.Error(), Code: code, Err: err}
}

// Key identifies the section an event carries. Terminal events have no key.
func (e Event) Key() string {
	switch e.Kind {
	case KindSummary, KindDestination:
		return string(e.Kind)
	case KindDay:
		return "day:" + strconv.Itoa(e.DayNumber)
	}
	return ""
}

func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindError
}

type wireEvent struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	DayNumber int             `json:"dayNumber,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{Type: e.Kind}
	switch e.Kind {
	case KindSummary, KindDestination:
		data, err := json.Marshal(e.Text)
		if err != nil {
			return nil, err
		}
		w.Data = data
	case KindDay:
		w.DayNumber = e.DayNumber
		w.Data = e.Payload
	case KindError:
		w.Error = e.Message
		w.Code = e.Code
	case KindComplete:
	default:
		return nil, fmt.Errorf("itinerary: unknown event kind %q", e.Kind)
	}
	return json.Marshal(w)
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	ev := Event{Kind: w.Type}
	switch w.Type {
	case KindSummary, KindDestination:
		if err := json.Unmarshal(w.Data, &ev.Text); err != nil {
			return fmt.Errorf("itinerary: %s data: %w", w.Type, err)
		}
	case KindDay:
		ev.Payload = w.Data
		ev.DayNumber = w.DayNumber
		if ev.DayNumber == 0 {
			d, err := DecodeDay(w.Data)
			if err != nil {
				return err
			}
			ev.DayNumber = d.Day
		}
	case KindError:
		ev.Message = w.Error
		ev.Code = w.Code
	case KindComplete:
	default:
		return fmt.Errorf("itinerary: unknown event type %q", w.Type)
	}
	*e = ev
	return nil
}
