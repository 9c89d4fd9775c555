package ai

import (
	"fmt"
	"strings"

	"itinera/internal/itinerary"
)

const bufferedSystem = `You are an expert travel planner who creates detailed, personalized itineraries. ` +
	`CRITICAL: Always respond with complete, valid JSON format. Never truncate your response. ` +
	`Ensure all JSON objects and arrays are properly closed. Do not wrap the JSON in markdown.`

const streamingSystem = `You are an expert travel planner who creates detailed, personalized itineraries. ` +
	`CRITICAL: Respond with complete, valid JSON only. Write "summary" and "destination" first, ` +
	`then generate each day sequentially and finish every day object before starting the next one. ` +
	`Do not wrap the JSON in markdown.`

const documentSchema = `{
  "destination": "string",
  "duration": "string",
  "totalBudget": "string",
  "summary": "string",
  "accommodations": [
    {"name": "string", "type": "string", "location": "string", "priceRange": "string",
     "description": "string", "link": "string (optional)", "linkType": "booking|info"}
  ],
  "days": [
    {
      "day": 1,
      "date": "string",
      "theme": "string",
      "activities": [
        {"name": "string", "time": "string", "duration": "string", "description": "string",
         "cost": "string", "location": "string", "tips": "string (optional)",
         "link": "string (optional)", "linkType": "booking|info"}
      ],
      "meals": [
        {"meal": "string", "restaurant": "string", "cuisine": "string", "cost": "string",
         "description": "string", "link": "string (optional)", "linkType": "booking|info"}
      ],
      "transportation": "string",
      "estimatedCost": "string"
    }
  ],
  "packingList": ["string"],
  "localTips": ["string"],
  "budgetBreakdown": {"accommodation": "string", "food": "string", "activities": "string", "transportation": "string"}
}`

// BuildPrompt renders the system instruction and user prompt for one session.
func BuildPrompt(p itinerary.TripPreferences, mode Mode) Prompt {
	system := bufferedSystem
	if mode == ModeStreaming {
		system = streamingSystem
	}
	days := p.Days()

	var b strings.Builder
	fmt.Fprintf(&b, "Create a detailed %d-day travel itinerary for the following trip:\n\n", days)
	fmt.Fprintf(&b, "Destination: %s\n", p.Destination)
	fmt.Fprintf(&b, "Travel Dates: %s to %s (%d days)\n", p.StartDate, p.EndDate, days)
	fmt.Fprintf(&b, "Group Size: %s\n", p.GroupSize)
	fmt.Fprintf(&b, "Budget Level: %s\n", p.Budget)
	fmt.Fprintf(&b, "Interests: %s\n", strings.Join(p.Interests, ", "))
	fmt.Fprintf(&b, "Travel Style: %s pace\n", p.Pace)
	fmt.Fprintf(&b, "Accommodation: %s\n", p.Accommodation)
	if p.SpecialRequirements != "" {
		fmt.Fprintf(&b, "Special Requirements: %s\n", p.SpecialRequirements)
	}
	if p.AdditionalInfo != "" {
		fmt.Fprintf(&b, "Additional Information: %s\n", p.AdditionalInfo)
	}
	b.WriteString("\nRespond with a JSON object using exactly this structure:\n")
	b.WriteString(documentSchema)
	b.WriteString("\n\nRules:\n")
	fmt.Fprintf(&b, "- Include exactly %d entries in \"days\", numbered 1 to %d, with dates in sequence starting %s.\n", days, days, p.StartDate)
	fmt.Fprintf(&b, "- Keep costs realistic for a %s budget and say which currency they use.\n", p.Budget)
	b.WriteString("- Add \"link\" only for real booking or information pages, with \"linkType\" set to booking or info.\n")
	b.WriteString("- Output JSON only.\n")

	return Prompt{System: system, User: b.String(), Mode: mode}
}
