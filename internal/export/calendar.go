// README: iCalendar export of a finished itinerary: one all-day event per day, one timed event per activity.
package export

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/samber/lo"

	"itinera/internal/itinerary"
)

var ErrUndated = errors.New("itinerary has no usable dates")

const floatingLayout = "20060102T150405"

type CalendarOptions struct {
	// ID scopes event UIDs, usually the saved itinerary id.
	ID    string
	Title string
	// Start is the date of day 1. When zero it is derived from the day labels.
	Start time.Time
	Now   time.Time
}

// Calendar renders doc as an iCalendar file. Activity times are written as
// floating local times at the destination.
func Calendar(doc itinerary.Document, opts CalendarOptions) (string, error) {
	start := opts.Start
	if start.IsZero() {
		var ok bool
		if start, ok = startFromLabels(doc.Days); !ok {
			return "", ErrUndated
		}
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.ID == "" {
		opts.ID = "itinerary"
	}
	title := lo.CoalesceOrEmpty(opts.Title, doc.Destination, "Trip")

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//itinera//itinerary export//EN")
	cal.SetName(title)
	cal.SetXWRCalName(title)

	for _, day := range doc.Days {
		date := start.AddDate(0, 0, day.Day-1)

		ev := cal.AddEvent(fmt.Sprintf("%s-day-%d@itinera", opts.ID, day.Day))
		ev.SetDtStampTime(opts.Now)
		ev.SetAllDayStartAt(date)
		ev.SetAllDayEndAt(date.AddDate(0, 0, 1))
		ev.SetSummary(daySummary(day))
		ev.SetLocation(doc.Destination)
		ev.SetDescription(dayDescription(day))

		for i, a := range day.Activities {
			at, ok := parseClock(string(a.Time))
			if !ok {
				continue
			}
			begin := date.Add(at)
			act := cal.AddEvent(fmt.Sprintf("%s-day-%d-%d@itinera", opts.ID, day.Day, i+1))
			act.SetDtStampTime(opts.Now)
			act.SetProperty(ics.ComponentPropertyDtStart, begin.Format(floatingLayout))
			act.SetProperty(ics.ComponentPropertyDtEnd, begin.Add(parseDuration(string(a.Duration))).Format(floatingLayout))
			act.SetSummary(string(a.Name))
			if a.Location != "" {
				act.SetLocation(string(a.Location))
			}
			act.SetDescription(activityDescription(a))
			if a.Link != "" {
				act.SetURL(a.Link)
			}
		}
	}
	return cal.Serialize(), nil
}

func daySummary(d itinerary.Day) string {
	if d.Theme == "" {
		return fmt.Sprintf("Day %d", d.Day)
	}
	return fmt.Sprintf("Day %d: %s", d.Day, d.Theme)
}

func dayDescription(d itinerary.Day) string {
	lines := lo.Map(d.Activities, func(a itinerary.Activity, _ int) string {
		return strings.TrimSpace(fmt.Sprintf("%s %s", a.Time, a.Name))
	})
	lines = append(lines, lo.Map(d.Meals, func(m itinerary.Meal, _ int) string {
		return fmt.Sprintf("%s: %s", m.Meal, m.Restaurant)
	})...)
	if d.Transportation != "" {
		lines = append(lines, "Getting around: "+string(d.Transportation))
	}
	if d.EstimatedCost != "" {
		lines = append(lines, "Estimated cost: "+string(d.EstimatedCost))
	}
	return strings.Join(lines, "\n")
}

func activityDescription(a itinerary.Activity) string {
	parts := lo.Compact([]string{string(a.Description), costLine(a.Cost), string(a.Tips)})
	return strings.Join(parts, "\n")
}

func costLine(c itinerary.Text) string {
	if c == "" {
		return ""
	}
	return "Cost: " + string(c)
}

var labelLayouts = []string{
	"2006-01-02",
	"Monday, January 2, 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"Mon, Jan 2, 2006",
}

// startFromLabels derives day 1's date from the first parseable day label.
func startFromLabels(days []itinerary.Day) (time.Time, bool) {
	for _, d := range days {
		label := strings.TrimSpace(string(d.Date))
		for _, layout := range labelLayouts {
			if t, err := time.Parse(layout, label); err == nil {
				return t.AddDate(0, 0, -(d.Day - 1)), true
			}
		}
	}
	return time.Time{}, false
}

var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "3 PM", "3PM"}

// parseClock reads the start of labels like "09:00", "2:30 PM" or "09:00 - 11:00".
func parseClock(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "-–"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.ToUpper(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
		}
	}
	return 0, false
}

var durationPart = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m)\b`)

// parseDuration understands "2h", "1.5 hours", "2 hours 30 minutes"; anything
// else counts as one hour.
func parseDuration(s string) time.Duration {
	if d, err := time.ParseDuration(strings.ReplaceAll(s, " ", "")); err == nil && d > 0 {
		return d
	}
	var total time.Duration
	for _, m := range durationPart.FindAllStringSubmatch(strings.ToLower(s), -1) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		unit := time.Hour
		if strings.HasPrefix(m[2], "m") {
			unit = time.Minute
		}
		total += time.Duration(n * float64(unit))
	}
	if total <= 0 {
		return time.Hour
	}
	return total
}
