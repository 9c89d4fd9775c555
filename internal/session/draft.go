// README: Draft itinerary folded from section events; days stay unique and ordered.
package session

import (
	"encoding/json"
	"fmt"
	"sort"

	"itinera/internal/itinerary"
)

// Draft is the progressively completed itinerary of one session.
// Destination and Summary stay nil until delivered.
type Draft struct {
	Destination *string
	Summary     *string
	Days        []itinerary.Day
	Complete    bool
	Err         error

	// base is the full document of a fallback generation, if any.
	base *itinerary.Document
	raw  json.RawMessage
}

// Fold applies one section event and reports whether the draft changed.
// Terminal events are handled by the session, not here.
func (d *Draft) Fold(ev itinerary.Event) (bool, error) {
	switch ev.Kind {
	case itinerary.KindSummary:
		if d.Summary != nil {
			return false, nil
		}
		text := ev.Text
		d.Summary = &text
	case itinerary.KindDestination:
		if d.Destination != nil {
			return false, nil
		}
		text := ev.Text
		d.Destination = &text
	case itinerary.KindDay:
		day, err := itinerary.DecodeDay(ev.Payload)
		if err != nil {
			return false, err
		}
		return d.insertDay(day), nil
	default:
		return false, nil
	}
	return true, nil
}

// insertDay keeps Days sorted by day number; a number already present wins.
func (d *Draft) insertDay(day itinerary.Day) bool {
	i := sort.Search(len(d.Days), func(i int) bool { return d.Days[i].Day >= day.Day })
	if i < len(d.Days) && d.Days[i].Day == day.Day {
		return false
	}
	d.Days = append(d.Days, itinerary.Day{})
	copy(d.Days[i+1:], d.Days[i:])
	d.Days[i] = day
	return true
}

// HasDay reports whether day n has been folded in.
func (d *Draft) HasDay(n int) bool {
	i := sort.Search(len(d.Days), func(i int) bool { return d.Days[i].Day >= n })
	return i < len(d.Days) && d.Days[i].Day == n
}

// merge folds a fallback generation in without dropping anything already shown.
func (d *Draft) merge(g *itinerary.Generated) {
	doc := g.Document
	d.base = &doc
	if d.Summary == nil && d.Destination == nil && len(d.Days) == 0 {
		d.raw = g.Raw
	}
	if d.Summary == nil && doc.Summary != "" {
		s := doc.Summary
		d.Summary = &s
	}
	if d.Destination == nil && doc.Destination != "" {
		s := doc.Destination
		d.Destination = &s
	}
	for _, day := range doc.Days {
		d.insertDay(day)
	}
}

// Raw returns the verbatim JSON of the fallback generation when it is the
// whole itinerary. It is nil once any streamed section is part of the draft.
func (d *Draft) Raw() json.RawMessage { return d.raw }

// Document renders the draft as a finished itinerary. Sections only the
// fallback generation provides (packing list, tips, budget) come from it.
func (d *Draft) Document() itinerary.Document {
	var doc itinerary.Document
	if d.base != nil {
		doc = *d.base
	}
	if d.Destination != nil {
		doc.Destination = *d.Destination
	}
	if d.Summary != nil {
		doc.Summary = *d.Summary
	}
	doc.Days = append([]itinerary.Day(nil), d.Days...)
	if doc.Duration == "" && len(doc.Days) > 0 {
		doc.Duration = itinerary.Text(fmt.Sprintf("%d days", len(doc.Days)))
	}
	return doc
}

func (d *Draft) clone() Draft {
	c := *d
	c.Days = append([]itinerary.Day(nil), d.Days...)
	return c
}
