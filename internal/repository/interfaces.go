package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"coteri/internal/domain/membership"
	"coteri/internal/domain/verification"
)

type MembershipRepository interface {
	// GetActiveAtVenue returns the active membership with id at venueID.
	GetActiveAtVenue(ctx context.Context, id, venueID uuid.UUID) (membership.Membership, error)
	// GetActiveOwned returns the active membership with id held by userID.
	GetActiveOwned(ctx context.Context, id, userID uuid.UUID) (membership.Membership, error)

	// The mutations below are narrow conditional updates. None of them touch a
	// revoked membership. Each returns the number of rows changed.
	ActivateFromCheckout(ctx context.Context, id uuid.UUID, subscriptionID string, expiresAt time.Time) (int64, error)
	ExtendActiveBySubscription(ctx context.Context, subscriptionID string, expiresAt time.Time) (int64, error)
	ExpireBySubscription(ctx context.Context, subscriptionID string) (int64, error)

	RecordVerificationMethod(ctx context.Context, id uuid.UUID, method string) error
}

type StaffRepository interface {
	// GetAssignment returns the first venue assignment for userID.
	GetAssignment(ctx context.Context, userID uuid.UUID) (membership.StaffAssignment, error)
	GetAssignmentAtVenue(ctx context.Context, userID, venueID uuid.UUID) (membership.StaffAssignment, error)
}

type VenueRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (membership.Venue, error)
}

type VerificationEventRepository interface {
	Insert(ctx context.Context, e *verification.Event) error
	// RecentAttempts returns attempts by staffID at venueID that occurred at or after since.
	RecentAttempts(ctx context.Context, staffID, venueID uuid.UUID, since time.Time) ([]verification.Attempt, error)
}

type WebhookEventRepository interface {
	// Admit inserts a received row for eventID. It reports false when a row
	// already exists in received or success state. A row left in error state
	// is reset to received and admitted again.
	Admit(ctx context.Context, eventID, eventType string, receivedAt time.Time) (bool, error)
	MarkSuccess(ctx context.Context, eventID string, processedAt time.Time) error
	MarkError(ctx context.Context, eventID, message string, processedAt time.Time) error
	// RecordFetchError upserts an error row for an event that could not be
	// retrieved. It never overwrites a successful row.
	RecordFetchError(ctx context.Context, eventID, message string, at time.Time) error
}
