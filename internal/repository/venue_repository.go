package repository

import (
	"context"
	"database/sql"
	"errors"

	"coteri/internal/domain/membership"
	coteri_errors "coteri/pkg/errors"

	"github.com/google/uuid"
)

type venueRepository struct {
	db DBTX
}

func NewVenueRepository(db DBTX) VenueRepository {
	return &venueRepository{db: db}
}

func (r *venueRepository) GetByID(ctx context.Context, id uuid.UUID) (membership.Venue, error) {
	var v membership.Venue
	err := r.db.QueryRowContext(ctx, `
        SELECT id, name, is_demo, brand_primary_color, brand_logo_url
        FROM venues
        WHERE id = $1
    `, id).Scan(&v.ID, &v.Name, &v.IsDemo, &v.BrandPrimaryColor, &v.BrandLogoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return membership.Venue{}, coteri_errors.ErrNotFound
	}
	if err != nil {
		return membership.Venue{}, err
	}
	return v, nil
}
