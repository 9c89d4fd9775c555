// README: Saved itinerary service: id assignment, validation, listing limits.
package saved

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"itinera/internal/itinerary"
	"itinera/internal/logger"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

type SaveCommand struct {
	Title     string
	Itinerary json.RawMessage
}

// Save stores the document exactly as given and returns its new id.
func (s *Service) Save(ctx context.Context, cmd SaveCommand) (string, error) {
	if len(cmd.Itinerary) == 0 {
		return "", fmt.Errorf("%w: itinerary is required", ErrBadRequest)
	}
	var doc itinerary.Document
	if err := json.Unmarshal(cmd.Itinerary, &doc); err != nil {
		return "", fmt.Errorf("%w: itinerary: %v", ErrBadRequest, err)
	}
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		title = doc.Destination
	}
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrBadRequest)
	}
	it := &SavedItinerary{
		ID:          uuid.NewString(),
		Title:       title,
		Destination: doc.Destination,
		Itinerary:   cmd.Itinerary,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.repo.Create(ctx, it); err != nil {
		return "", err
	}
	logger.Info("itinerary saved", "id", it.ID, "destination", it.Destination, "days", len(doc.Days))
	return it.ID, nil
}

func (s *Service) Get(ctx context.Context, id string) (*SavedItinerary, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Document decodes a saved itinerary for rendering.
func (s *Service) Document(ctx context.Context, id string) (*SavedItinerary, *itinerary.Document, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var doc itinerary.Document
	if err := json.Unmarshal(it.Itinerary, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode saved itinerary %s: %w", id, err)
	}
	return it, &doc, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]SavedItinerary, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.repo.List(ctx, limit)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("itinerary deleted", "id", id)
	return nil
}
