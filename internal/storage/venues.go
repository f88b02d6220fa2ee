package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"fundsync/internal/database"
	"fundsync/internal/logging"
	"fundsync/internal/model"
)

// VenueRepository provides access to the exchanges table.
type VenueRepository struct {
	db *database.DB
}

// NewVenueRepository creates a venue repository.
func NewVenueRepository(db *database.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// GetByCode returns the venue row for a code, or nil when absent.
func (r *VenueRepository) GetByCode(ctx context.Context, code model.VenueCode) (*model.Venue, error) {
	var v model.Venue
	err := r.db.QueryRowContext(ctx,
		"SELECT id, code FROM exchanges WHERE code = $1", string(code),
	).Scan(&v.ID, &v.Code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query venue %s: %w", code, err)
	}
	return &v, nil
}

// List returns all venue rows.
func (r *VenueRepository) List(ctx context.Context) ([]model.Venue, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, code FROM exchanges ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Code); err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// Add inserts a venue row; existing codes are left untouched.
func (r *VenueRepository) Add(ctx context.Context, v model.Venue) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO exchanges (id, code) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING",
		v.ID, string(v.Code))
	if err != nil {
		return fmt.Errorf("failed to insert venue %s: %w", v.Code, err)
	}
	return nil
}

// EnsureSeeded inserts every supported venue that is not yet present.
// Venue rows are never deleted by the engine.
func (r *VenueRepository) EnsureSeeded(ctx context.Context, logger *logging.Logger) error {
	for _, code := range model.AllVenueCodes {
		existing, err := r.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := r.Add(ctx, model.Venue{ID: uuid.New(), Code: code}); err != nil {
			return err
		}
		logger.WithField("venue", code).Info("seeded venue")
	}
	return nil
}
