// README: Itinerary document shape produced by the model (days, activities, meals, budget).
package itinerary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

var ErrInvalidDay = errors.New("invalid day")

// Text is a free-form label. Models sometimes answer with numbers, null,
// lists or small objects where a string was asked for. Lists are joined with
// "; " and objects are kept as compact JSON.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case b[0] == '[':
		var parts []Text
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		kept := lo.Compact(lo.Map(parts, func(p Text, _ int) string { return strings.TrimSpace(string(p)) }))
		*t = Text(strings.Join(kept, "; "))
	case b[0] == '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return err
		}
		*t = Text(buf.String())
	default:
		*t = Text(b)
	}
	return nil
}

type LinkType string

const (
	LinkBooking LinkType = "booking"
	LinkInfo    LinkType = "info"
)

type Activity struct {
	Name        Text     `json:"name"`
	Time        Text     `json:"time"`
	Duration    Text     `json:"duration"`
	Description Text     `json:"description"`
	Cost        Text     `json:"cost"`
	Location    Text     `json:"location"`
	Tips        Text     `json:"tips,omitempty"`
	Link        string   `json:"link,omitempty"`
	LinkType    LinkType `json:"linkType,omitempty"`
}

type Meal struct {
	Meal        Text     `json:"meal"`
	Restaurant  Text     `json:"restaurant"`
	Cuisine     Text     `json:"cuisine"`
	Cost        Text     `json:"cost"`
	Description Text     `json:"description"`
	Link        string   `json:"link,omitempty"`
	LinkType    LinkType `json:"linkType,omitempty"`
}

type Day struct {
	Day            int        `json:"day"`
	Date           Text       `json:"date"`
	Theme          Text       `json:"theme"`
	Activities     []Activity `json:"activities"`
	Meals          []Meal     `json:"meals"`
	Transportation Text       `json:"transportation"`
	EstimatedCost  Text       `json:"estimatedCost"`
}

// DecodeDay parses a day object and checks its day number.
func DecodeDay(raw json.RawMessage) (Day, error) {
	var d Day
	if err := json.Unmarshal(raw, &d); err != nil {
		return Day{}, fmt.Errorf("%w: %v", ErrInvalidDay, err)
	}
	if d.Day <= 0 {
		return Day{}, fmt.Errorf("%w: day number %d", ErrInvalidDay, d.Day)
	}
	return d, nil
}

type Stay struct {
	Name        Text     `json:"name"`
	Type        Text     `json:"type"`
	Location    Text     `json:"location"`
	PriceRange  Text     `json:"priceRange"`
	Description Text     `json:"description"`
	Link        string   `json:"link,omitempty"`
	LinkType    LinkType `json:"linkType,omitempty"`
}

type BudgetBreakdown struct {
	Accommodation  Text `json:"accommodation"`
	Food           Text `json:"food"`
	Activities     Text `json:"activities"`
	Transportation Text `json:"transportation"`
}

// Document is a finished itinerary.
type Document struct {
	Destination     string           `json:"destination"`
	Duration        Text             `json:"duration"`
	TotalBudget     Text             `json:"totalBudget"`
	Summary         string           `json:"summary"`
	Accommodations  []Stay           `json:"accommodations,omitempty"`
	Days            []Day            `json:"days"`
	PackingList     []Text           `json:"packingList,omitempty"`
	LocalTips       []Text           `json:"localTips,omitempty"`
	BudgetBreakdown *BudgetBreakdown `json:"budgetBreakdown,omitempty"`
}

// SortDays orders days ascending and keeps the first entry of each day number.
func SortDays(days []Day) []Day {
	seen := make(map[int]struct{}, len(days))
	out := make([]Day, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d.Day]; ok {
			continue
		}
		seen[d.Day] = struct{}{}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// Generated is a document produced in one piece together with the raw JSON
// it was decoded from.
type Generated struct {
	Document Document
	Raw      json.RawMessage
}
