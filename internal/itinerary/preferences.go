// README: Trip preferences submitted by the questionnaire, with enum and date validation.
package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

var ErrInvalidPreferences = errors.New("invalid trip preferences")

type GroupSize string

const (
	GroupSolo   GroupSize = "solo"
	GroupCouple GroupSize = "couple"
	GroupSmall  GroupSize = "small-group"
	GroupLarge  GroupSize = "large-group"
)

type BudgetTier string

const (
	BudgetLow    BudgetTier = "budget"
	BudgetMid    BudgetTier = "mid-range"
	BudgetLuxury BudgetTier = "luxury"
)

type Pace string

const (
	PaceRelaxed  Pace = "relaxed"
	PaceModerate Pace = "moderate"
	PacePacked   Pace = "packed"
)

type Accommodation string

const (
	StayHotel    Accommodation = "hotel"
	StayAirbnb   Accommodation = "airbnb"
	StayHostel   Accommodation = "hostel"
	StayBoutique Accommodation = "boutique"
	StayMixed    Accommodation = "mixed"
)

var (
	groupSizes     = []GroupSize{GroupSolo, GroupCouple, GroupSmall, GroupLarge}
	budgetTiers    = []BudgetTier{BudgetLow, BudgetMid, BudgetLuxury}
	paces          = []Pace{PaceRelaxed, PaceModerate, PacePacked}
	accommodations = []Accommodation{StayHotel, StayAirbnb, StayHostel, StayBoutique, StayMixed}
)

// Date is a calendar day. It accepts "2006-01-02" and RFC 3339 timestamps.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TripPreferences is the immutable input of one planning session.
type TripPreferences struct {
	Destination         string        `json:"destination"`
	StartDate           Date          `json:"startDate"`
	EndDate             Date          `json:"endDate"`
	GroupSize           GroupSize     `json:"groupSize"`
	Budget              BudgetTier    `json:"budget"`
	Interests           []string      `json:"interests"`
	Pace                Pace          `json:"pace"`
	Accommodation       Accommodation `json:"accommodation"`
	SpecialRequirements string        `json:"specialNeeds,omitempty"`
	AdditionalInfo      string        `json:"additionalInfo,omitempty"`
}

// Days returns the inclusive number of days between start and end.
func (p TripPreferences) Days() int {
	return int(p.EndDate.Sub(p.StartDate.Time).Hours()/24) + 1
}

// Normalize trims free text and drops blank or repeated interests.
func (p TripPreferences) Normalize() TripPreferences {
	p.Destination = strings.TrimSpace(p.Destination)
	p.SpecialRequirements = strings.TrimSpace(p.SpecialRequirements)
	p.AdditionalInfo = strings.TrimSpace(p.AdditionalInfo)
	interests := lo.Map(p.Interests, func(s string, _ int) string { return strings.TrimSpace(s) })
	interests = lo.Filter(interests, func(s string, _ int) bool { return s != "" })
	p.Interests = lo.Uniq(interests)
	return p
}

func (p TripPreferences) Validate() error {
	switch {
	case p.Destination == "":
		return fmt.Errorf("%w: destination is required", ErrInvalidPreferences)
	case p.StartDate.IsZero() || p.EndDate.IsZero():
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidPreferences)
	case p.EndDate.Before(p.StartDate.Time):
		return fmt.Errorf("%w: end date is before start date", ErrInvalidPreferences)
	case !lo.Contains(groupSizes, p.GroupSize):
		return fmt.Errorf("%w: unknown group size %q", ErrInvalidPreferences, p.GroupSize)
	case !lo.Contains(budgetTiers, p.Budget):
		return fmt.Errorf("%w: unknown budget %q", ErrInvalidPreferences, p.Budget)
	case len(p.Interests) == 0:
		return fmt.Errorf("%w: at least one interest is required", ErrInvalidPreferences)
	case !lo.Contains(paces, p.Pace):
		return fmt.Errorf("%w: unknown pace %q", ErrInvalidPreferences, p.Pace)
	case !lo.Contains(accommodations, p.Accommodation):
		return fmt.Errorf("%w: unknown accommodation %q", ErrInvalidPreferences, p.Accommodation)
	}
	return nil
}
