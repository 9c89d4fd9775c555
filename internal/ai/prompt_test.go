package ai

import (
	"strings"
	"testing"
	"time"

	"itinera/internal/itinerary"
)

func TestBuildPrompt(t *testing.T) {
	prefs := itinerary.TripPreferences{
		Destination:         "Kyoto, Japan",
		StartDate:           itinerary.NewDate(2026, time.November, 2),
		EndDate:             itinerary.NewDate(2026, time.November, 5),
		GroupSize:           itinerary.GroupSmall,
		Budget:              itinerary.BudgetLuxury,
		Interests:           []string{"Architecture", "Wellness & Spa"},
		Pace:                itinerary.PaceRelaxed,
		Accommodation:       itinerary.StayBoutique,
		SpecialRequirements: "vegetarian",
	}

	buffered := BuildPrompt(prefs, ModeBuffered)
	for _, want := range []string{
		"Destination: Kyoto, Japan",
		"Travel Dates: 2026-11-02 to 2026-11-05 (4 days)",
		"Interests: Architecture, Wellness & Spa",
		"Travel Style: relaxed pace",
		"Special Requirements: vegetarian",
		`"packingList"`,
		`"linkType": "booking|info"`,
		"exactly 4 entries",
	} {
		if !strings.Contains(buffered.User, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
	if strings.Contains(buffered.User, "Additional Information") {
		t.Errorf("empty additional info must be omitted")
	}
	if !strings.Contains(buffered.System, "Never truncate") {
		t.Errorf("buffered system prompt: %q", buffered.System)
	}

	streaming := BuildPrompt(prefs, ModeStreaming)
	if streaming.Mode != ModeStreaming || !strings.Contains(streaming.System, "each day sequentially") {
		t.Errorf("streaming system prompt: %q", streaming.System)
	}
	if streaming.User != buffered.User {
		t.Errorf("user prompt must not depend on mode")
	}
}
