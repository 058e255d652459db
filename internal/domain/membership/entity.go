package membership

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a membership. Revoked is terminal and set
// manually; billing events never leave it.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

const DefaultTier = "Member"

// Membership represents memberships
type Membership struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	VenueID              uuid.UUID
	Tier                 sql.NullString
	Status               Status
	StripeSubscriptionID sql.NullString
	ExpiresAt            sql.NullTime
	CreatedAt            time.Time
}

// TierOrDefault returns the stored tier or DefaultTier when none is set.
func (m Membership) TierOrDefault() string {
	if m.Tier.Valid && m.Tier.String != "" {
		return m.Tier.String
	}
	return DefaultTier
}

// Venue represents venues
type Venue struct {
	ID                uuid.UUID
	Name              string
	IsDemo            bool
	BrandPrimaryColor sql.NullString
	BrandLogoURL      sql.NullString
}

type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
)

// CanVerify reports whether the role may verify memberships at the door.
func (r Role) CanVerify() bool {
	switch r {
	case RoleStaff, RoleManager, RoleOwner:
		return true
	}
	return false
}

// CanWatchFeed reports whether the role may follow the live verification feed.
func (r Role) CanWatchFeed() bool {
	return r == RoleManager || r == RoleOwner
}

// StaffAssignment represents venue_staff. A staff actor acts for exactly one venue.
type StaffAssignment struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	VenueID uuid.UUID
	Role    Role
}

const VerificationMethodStripe = "stripe"
