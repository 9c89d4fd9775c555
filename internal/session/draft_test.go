package session

import (
	"encoding/json"
	"errors"
	"testing"

	"itinera/internal/itinerary"
)

func TestDraftFold(t *testing.T) {
	var d Draft
	events := []itinerary.Event{
		itinerary.DayEvent(3, json.RawMessage(`{"day":3,"theme":"c"}`)),
		itinerary.SummaryEvent("first"),
		itinerary.DayEvent(1, json.RawMessage(`{"day":1,"theme":"a"}`)),
		itinerary.SummaryEvent("second"),
		itinerary.DayEvent(1, json.RawMessage(`{"day":1,"theme":"again"}`)),
		itinerary.DayEvent(2, json.RawMessage(`{"day":2,"theme":"b"}`)),
	}
	changes := 0
	for _, ev := range events {
		changed, err := d.Fold(ev)
		if err != nil {
			t.Fatalf("fold %s: %v", ev.Key(), err)
		}
		if changed {
			changes++
		}
	}
	if changes != 4 {
		t.Fatalf("expected 4 changes, got %d", changes)
	}
	if *d.Summary != "first" || d.Destination != nil {
		t.Fatalf("scalars: summary=%q destination=%v", *d.Summary, d.Destination)
	}
	if len(d.Days) != 3 || d.Days[0].Theme != "a" || d.Days[1].Day != 2 || d.Days[2].Day != 3 {
		t.Fatalf("days out of order: %+v", d.Days)
	}
	if !d.HasDay(2) || d.HasDay(4) {
		t.Fatalf("HasDay mismatch")
	}

	if _, err := d.Fold(itinerary.DayEvent(4, json.RawMessage(`{"day":"four"}`))); !errors.Is(err, itinerary.ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}

	doc := d.Document()
	if doc.Duration != "3 days" || doc.Summary != "first" || len(doc.Days) != 3 {
		t.Fatalf("document: %+v", doc)
	}
	c := d.clone()
	c.Days[0].Theme = "changed"
	if d.Days[0].Theme != "a" {
		t.Fatalf("clone shares days with the draft")
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateConnecting, true},
		{StateConnecting, StateStreaming, true},
		{StateStreaming, StateConnecting, true},
		{StateStreaming, StateFallbackPending, true},
		{StateFallbackPending, StateFallbackRequesting, true},
		{StateFallbackRequesting, StateComplete, true},
		{StateIdle, StateComplete, false},
		{StateFallbackPending, StateComplete, false},
		{StateComplete, StateConnecting, false},
		{StateFailed, StateConnecting, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
	if !StateFailed.Terminal() || StateStreaming.Terminal() {
		t.Fatalf("terminal states mismatch")
	}
}

func TestMergeKeepsRawOnlyForWholeFallback(t *testing.T) {
	gen := &itinerary.Generated{
		Document: itinerary.Document{Destination: "Rome", Days: []itinerary.Day{{Day: 1}}},
		Raw:      json.RawMessage(`{"destination": "Rome", "days": [{"day": 1}], "extra": true}`),
	}

	var whole Draft
	whole.merge(gen)
	if string(whole.Raw()) != string(gen.Raw) {
		t.Fatalf("raw = %s", whole.Raw())
	}

	var partial Draft
	if _, err := partial.Fold(itinerary.SummaryEvent("Streamed")); err != nil {
		t.Fatalf("fold: %v", err)
	}
	partial.merge(gen)
	if partial.Raw() != nil {
		t.Fatalf("raw kept for a draft with streamed sections: %s", partial.Raw())
	}
	if doc := partial.Document(); doc.Summary != "Streamed" || doc.Destination != "Rome" {
		t.Fatalf("merged document = %+v", doc)
	}
}
