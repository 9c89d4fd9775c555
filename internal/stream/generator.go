// README: In-process generation source: provider + multiplexer for streaming, provider + repair for buffered.
package stream

import (
	"context"

	"itinera/internal/ai"
	"itinera/internal/itinerary"
)

// Generator produces itineraries for one set of preferences.
type Generator struct {
	provider ai.Provider
	prefs    itinerary.TripPreferences
}

func NewGenerator(provider ai.Provider, prefs itinerary.TripPreferences) *Generator {
	return &Generator{provider: provider, prefs: prefs}
}

// OpenStream issues a streaming request and returns its section events.
func (g *Generator) OpenStream(ctx context.Context) (<-chan itinerary.Event, error) {
	s, err := g.provider.Stream(ctx, ai.BuildPrompt(g.prefs, ai.ModeStreaming))
	if err != nil {
		return nil, err
	}
	return Pipe(ctx, s), nil
}

// Generate issues a buffered request and repairs its output.
func (g *Generator) Generate(ctx context.Context) (*itinerary.Generated, error) {
	c, err := g.provider.Complete(ctx, ai.BuildPrompt(g.prefs, ai.ModeBuffered))
	if err != nil {
		return nil, err
	}
	return ParseDocument(c)
}
