package repository

import (
	"context"
	"database/sql"
	"errors"

	"coteri/internal/domain/membership"
	coteri_errors "coteri/pkg/errors"

	"github.com/google/uuid"
)

type staffRepository struct {
	db DBTX
}

func NewStaffRepository(db DBTX) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) GetAssignment(ctx context.Context, userID uuid.UUID) (membership.StaffAssignment, error) {
	return scanAssignment(r.db.QueryRowContext(ctx, `
        SELECT id, user_id, venue_id, role
        FROM venue_staff
        WHERE user_id = $1
        ORDER BY created_at ASC
        LIMIT 1
    `, userID))
}

func (r *staffRepository) GetAssignmentAtVenue(ctx context.Context, userID, venueID uuid.UUID) (membership.StaffAssignment, error) {
	return scanAssignment(r.db.QueryRowContext(ctx, `
        SELECT id, user_id, venue_id, role
        FROM venue_staff
        WHERE user_id = $1 AND venue_id = $2
    `, userID, venueID))
}

func scanAssignment(row *sql.Row) (membership.StaffAssignment, error) {
	var a membership.StaffAssignment
	err := row.Scan(&a.ID, &a.UserID, &a.VenueID, &a.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return membership.StaffAssignment{}, coteri_errors.ErrNotFound
	}
	if err != nil {
		return membership.StaffAssignment{}, err
	}
	return a, nil
}
