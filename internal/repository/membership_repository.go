package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"coteri/internal/domain/membership"
	coteri_errors "coteri/pkg/errors"

	"github.com/google/uuid"
)

type membershipRepository struct {
	db DBTX
}

func NewMembershipRepository(db DBTX) MembershipRepository {
	return &membershipRepository{db: db}
}

const membershipColumns = `id, user_id, venue_id, tier, status, stripe_subscription_id, expires_at, created_at`

func scanMembership(row *sql.Row) (membership.Membership, error) {
	var m membership.Membership
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.VenueID,
		&m.Tier,
		&m.Status,
		&m.StripeSubscriptionID,
		&m.ExpiresAt,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return membership.Membership{}, coteri_errors.ErrNotFound
	}
	if err != nil {
		return membership.Membership{}, err
	}
	return m, nil
}

func (r *membershipRepository) GetActiveAtVenue(ctx context.Context, id, venueID uuid.UUID) (membership.Membership, error) {
	return scanMembership(r.db.QueryRowContext(ctx, `
        SELECT `+membershipColumns+`
        FROM memberships
        WHERE id = $1 AND venue_id = $2 AND status = $3
    `, id, venueID, membership.StatusActive))
}

func (r *membershipRepository) GetActiveOwned(ctx context.Context, id, userID uuid.UUID) (membership.Membership, error) {
	return scanMembership(r.db.QueryRowContext(ctx, `
        SELECT `+membershipColumns+`
        FROM memberships
        WHERE id = $1 AND user_id = $2 AND status = $3
    `, id, userID, membership.StatusActive))
}

func (r *membershipRepository) ActivateFromCheckout(ctx context.Context, id uuid.UUID, subscriptionID string, expiresAt time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
        UPDATE memberships
        SET status = $1, stripe_subscription_id = $2, expires_at = $3
        WHERE id = $4 AND status <> $5
    `, membership.StatusActive, subscriptionID, expiresAt, id, membership.StatusRevoked))
}

func (r *membershipRepository) ExtendActiveBySubscription(ctx context.Context, subscriptionID string, expiresAt time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
        UPDATE memberships
        SET expires_at = $1
        WHERE stripe_subscription_id = $2 AND status = $3
    `, expiresAt, subscriptionID, membership.StatusActive))
}

func (r *membershipRepository) ExpireBySubscription(ctx context.Context, subscriptionID string) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
        UPDATE memberships
        SET status = $1
        WHERE stripe_subscription_id = $2 AND status <> $3
    `, membership.StatusExpired, subscriptionID, membership.StatusRevoked))
}

func (r *membershipRepository) RecordVerificationMethod(ctx context.Context, id uuid.UUID, method string) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO membership_verifications (membership_id, method)
        VALUES ($1, $2)
        ON CONFLICT (membership_id, method) DO NOTHING
    `, id, method)
	return err
}
