package export

import (
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"itinera/internal/itinerary"
)

func sampleDoc(dateLabel string) itinerary.Document {
	return itinerary.Document{
		Destination: "Kyoto",
		Days: []itinerary.Day{
			{
				Day: 1, Date: itinerary.Text(dateLabel), Theme: "Eastern temples",
				Activities: []itinerary.Activity{
					{Name: "Kiyomizu-dera", Time: "09:00", Duration: "2 hours", Location: "Higashiyama", Link: "https://example.com/k", LinkType: itinerary.LinkInfo},
					{Name: "Tea", Time: "afternoon"},
				},
				Meals: []itinerary.Meal{{Meal: "Lunch", Restaurant: "Okonomi"}},
			},
			{
				Day: 2, Theme: "Arashiyama",
				Activities: []itinerary.Activity{{Name: "Bamboo grove", Time: "7:30 AM - 9:00 AM", Duration: "1h30m"}},
			},
		},
	}
}

func TestCalendarEvents(t *testing.T) {
	out, err := Calendar(sampleDoc("Day 1"), CalendarOptions{
		ID:    "abc",
		Start: time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Now:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	events := cal.Events()
	// two days plus two timed activities; "afternoon" has no clock time
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	byID := map[string]*ics.VEvent{}
	for _, ev := range events {
		byID[ev.Id()] = ev
	}
	day2 := byID["abc-day-2@itinera"]
	if day2 == nil || !strings.Contains(day2.GetProperty(ics.ComponentPropertyDtStart).Value, "20260411") {
		t.Fatalf("day 2 not on the 11th: %+v", day2)
	}
	walk := byID["abc-day-1-1@itinera"]
	if walk == nil {
		t.Fatalf("activity event missing")
	}
	if got := walk.GetProperty(ics.ComponentPropertyDtStart).Value; got != "20260410T090000" {
		t.Fatalf("dtstart = %s", got)
	}
	if got := walk.GetProperty(ics.ComponentPropertyDtEnd).Value; got != "20260410T110000" {
		t.Fatalf("dtend = %s", got)
	}
	grove := byID["abc-day-2-1@itinera"]
	if got := grove.GetProperty(ics.ComponentPropertyDtEnd).Value; got != "20260411T090000" {
		t.Fatalf("grove dtend = %s", got)
	}
}

func TestCalendarDatesFromLabels(t *testing.T) {
	out, err := Calendar(sampleDoc("April 10, 2026"), CalendarOptions{ID: "x"})
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if !strings.Contains(out, "20260411") {
		t.Fatalf("day 2 date not derived from labels:\n%s", out)
	}
	if _, err := Calendar(sampleDoc("Day 1"), CalendarOptions{}); !errors.Is(err, ErrUndated) {
		t.Fatalf("expected ErrUndated, got %v", err)
	}
}

func TestParseHelpers(t *testing.T) {
	clocks := map[string]time.Duration{
		"09:00":         9 * time.Hour,
		"2:30 pm":       14*time.Hour + 30*time.Minute,
		"7PM":           19 * time.Hour,
		"10:00 - 12:00": 10 * time.Hour,
	}
	for in, want := range clocks {
		got, ok := parseClock(in)
		if !ok || got != want {
			t.Errorf("parseClock(%q) = %v %v, want %v", in, got, ok, want)
		}
	}
	if _, ok := parseClock("evening"); ok {
		t.Errorf("parseClock accepted a free-form label")
	}
	durations := map[string]time.Duration{
		"2h":                 2 * time.Hour,
		"1.5 hours":          90 * time.Minute,
		"2 hours 30 minutes": 150 * time.Minute,
		"45 mins":            45 * time.Minute,
		"half a day":         time.Hour,
	}
	for in, want := range durations {
		if got := parseDuration(in); got != want {
			t.Errorf("parseDuration(%q) = %v, want %v", in, got, want)
		}
	}
}
