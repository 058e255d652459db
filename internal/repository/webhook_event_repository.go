package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"coteri/internal/domain/webhook"
)

type webhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Admit(ctx context.Context, eventID, eventType string, receivedAt time.Time) (bool, error) {
	var admitted string
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO stripe_webhook_events (event_id, event_type, status, received_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (event_id) DO UPDATE
            SET event_type = EXCLUDED.event_type,
                status = EXCLUDED.status,
                received_at = EXCLUDED.received_at,
                processed_at = NULL,
                error = NULL
            WHERE stripe_webhook_events.status = $5
        RETURNING event_id
    `, eventID, toNullString(eventType), webhook.StatusReceived, receivedAt, webhook.StatusError).Scan(&admitted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *webhookEventRepository) MarkSuccess(ctx context.Context, eventID string, processedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE stripe_webhook_events
        SET status = $1, processed_at = $2, error = NULL
        WHERE event_id = $3
    `, webhook.StatusSuccess, processedAt, eventID)
	return err
}

func (r *webhookEventRepository) MarkError(ctx context.Context, eventID, message string, processedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE stripe_webhook_events
        SET status = $1, processed_at = $2, error = $3
        WHERE event_id = $4
    `, webhook.StatusError, processedAt, message, eventID)
	return err
}

func (r *webhookEventRepository) RecordFetchError(ctx context.Context, eventID, message string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO stripe_webhook_events (event_id, event_type, status, received_at, processed_at, error)
        VALUES ($1, NULL, $2, $3, $3, $4)
        ON CONFLICT (event_id) DO UPDATE
            SET status = EXCLUDED.status,
                processed_at = EXCLUDED.processed_at,
                error = EXCLUDED.error
            WHERE stripe_webhook_events.status <> $5
    `, eventID, webhook.StatusError, at, message, webhook.StatusSuccess)
	return err
}
