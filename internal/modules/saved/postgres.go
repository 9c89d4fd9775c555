// README: Saved itinerary store backed by PostgreSQL (documents kept as json, not jsonb, to stay verbatim).
package saved

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, it *SavedItinerary) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO saved_itineraries (id, title, destination, document, created_at)
		VALUES ($1, $2, $3, $4::json, $5)`,
		it.ID, it.Title, it.Destination, string(it.Itinerary), it.CreatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*SavedItinerary, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, destination, document::text, created_at
		FROM saved_itineraries
		WHERE id = $1`, id,
	)
	it, err := scanSaved(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]SavedItinerary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, destination, document::text, created_at
		FROM saved_itineraries
		ORDER BY created_at DESC, id
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SavedItinerary, 0, limit)
	for rows.Next() {
		it, err := scanSaved(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM saved_itineraries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSaved(row pgx.Row) (*SavedItinerary, error) {
	var it SavedItinerary
	var doc string
	if err := row.Scan(&it.ID, &it.Title, &it.Destination, &doc, &it.CreatedAt); err != nil {
		return nil, err
	}
	it.Itinerary = []byte(doc)
	it.CreatedAt = it.CreatedAt.UTC()
	return &it, nil
}
