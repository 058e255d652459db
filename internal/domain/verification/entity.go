package verification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// Result is what staff see for one attempt.
type Result struct {
	Status       Status `json:"status"`
	Tier         string `json:"tier,omitempty"`
	MembershipID string `json:"membership_id,omitempty"`
}

func Invalid() Result {
	return Result{Status: StatusInvalid}
}

func Valid(tier string, membershipID uuid.UUID) Result {
	return Result{Status: StatusValid, Tier: tier, MembershipID: membershipID.String()}
}

type FlagReason string

const (
	FlagBurstAttempts    FlagReason = "burst_attempts"
	FlagRepeatedInvalids FlagReason = "repeated_invalids"
)

// Flag is the advisory anomaly marker stored with an attempt.
type Flag struct {
	Reason FlagReason
	Score  int
}

// Event represents verification_events. Rows are append-only.
type Event struct {
	ID           uuid.UUID
	StaffUserID  uuid.UUID
	VenueID      uuid.UUID
	MembershipID uuid.NullUUID
	Result       Status
	RawPayload   string
	FlagReason   sql.NullString
	FlagScore    sql.NullInt32
	OccurredAt   time.Time
}

// Attempt is the slice of history the anomaly heuristic reads.
type Attempt struct {
	OccurredAt time.Time
	Result     Status
}

// FeedItem is published to a venue's live verification channel.
type FeedItem struct {
	StaffUserID  string     `json:"staff_user_id"`
	Result       Status     `json:"result"`
	Tier         string     `json:"tier,omitempty"`
	MembershipID string     `json:"membership_id,omitempty"`
	FlagReason   FlagReason `json:"flag_reason,omitempty"`
	FlagScore    int        `json:"flag_score,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}
