// README: Saved itinerary aggregate and the repository contract its stores implement.
package saved

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("itinerary not found")
	ErrBadRequest = errors.New("bad request")
)

// SavedItinerary is a finished document stored verbatim under an opaque id.
type SavedItinerary struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Destination string          `json:"destination"`
	Itinerary   json.RawMessage `json:"itinerary"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Repository interface {
	Create(ctx context.Context, it *SavedItinerary) error
	Get(ctx context.Context, id string) (*SavedItinerary, error)
	// List returns the newest itineraries first.
	List(ctx context.Context, limit int) ([]SavedItinerary, error)
	Delete(ctx context.Context, id string) error
}
