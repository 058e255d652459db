package repository

import (
	"context"
	"time"

	"coteri/internal/domain/verification"

	"github.com/google/uuid"
)

type verificationEventRepository struct {
	db DBTX
}

func NewVerificationEventRepository(db DBTX) VerificationEventRepository {
	return &verificationEventRepository{db: db}
}

func (r *verificationEventRepository) Insert(ctx context.Context, e *verification.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO verification_events (id, staff_user_id, venue_id, membership_id, result, raw_payload, flag_reason, flag_score, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `,
		e.ID,
		e.StaffUserID,
		e.VenueID,
		e.MembershipID,
		e.Result,
		e.RawPayload,
		e.FlagReason,
		e.FlagScore,
		e.OccurredAt,
	)
	return err
}

func (r *verificationEventRepository) RecentAttempts(ctx context.Context, staffID, venueID uuid.UUID, since time.Time) ([]verification.Attempt, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT occurred_at, result
        FROM verification_events
        WHERE staff_user_id = $1 AND venue_id = $2 AND occurred_at >= $3
        ORDER BY occurred_at ASC
    `, staffID, venueID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []verification.Attempt
	for rows.Next() {
		var a verification.Attempt
		if err := rows.Scan(&a.OccurredAt, &a.Result); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}
