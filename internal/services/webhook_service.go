package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coteri/internal/domain/membership"
	"coteri/internal/domain/webhook"
	"coteri/internal/metrics"
	"coteri/internal/repository"
	"coteri/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidSignature = errors.New("invalid signature")

const (
	defaultProcessTimeout = 25 * time.Second
	defaultMarkTimeout    = 5 * time.Second

	pathLive   = "live"
	pathReplay = "replay"

	replayFetchType = "replay_fetch"
)

// BillingProvider is the payment processor as seen by the webhook pipeline.
type BillingProvider interface {
	// ConstructEvent authenticates a delivery against its signature header.
	ConstructEvent(payload []byte, signatureHeader string) (webhook.Event, error)
	RetrieveEvent(ctx context.Context, eventID string) (webhook.Event, error)
	// SubscriptionPeriodEnd returns the end of the current billing period,
	// or the zero time when the provider reports none.
	SubscriptionPeriodEnd(ctx context.Context, subscriptionID string) (time.Time, error)
}

// PayloadArchive stores admitted event bodies.
type PayloadArchive interface {
	Put(ctx context.Context, eventID string, body []byte, at time.Time) error
}

// Admission is the idempotency gate decision.
type Admission int

const (
	Admitted Admission = iota
	AlreadySeen
	GateUnavailable
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeIgnored Outcome = "ignored"
	OutcomeError   Outcome = "error"
)

// DeliveryResult is the terminal state of one delivery or replay.
type DeliveryResult struct {
	EventID string
	Type    string
	Status  Outcome
	Error   string
}

type WebhookService struct {
	provider       BillingProvider
	events         repository.WebhookEventRepository
	memberships    repository.MembershipRepository
	archive        PayloadArchive
	logger         *logger.Logger
	now            func() time.Time
	processTimeout time.Duration
}

type WebhookDeps struct {
	Provider    BillingProvider
	Events      repository.WebhookEventRepository
	Memberships repository.MembershipRepository
	// Archive is optional.
	Archive PayloadArchive
	Logger  *logger.Logger
}

func NewWebhookService(deps WebhookDeps) *WebhookService {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &WebhookService{
		provider:       deps.Provider,
		events:         deps.Events,
		memberships:    deps.Memberships,
		archive:        deps.Archive,
		logger:         log,
		now:            time.Now,
		processTimeout: defaultProcessTimeout,
	}
}

func (s *WebhookService) WithClock(now func() time.Time) *WebhookService {
	s.now = now
	return s
}

// Deliver handles a live delivery. Only a signature failure is returned as
// an error; every other outcome is reported in the result.
func (s *WebhookService) Deliver(ctx context.Context, payload []byte, signatureHeader string) (DeliveryResult, error) {
	start := time.Now()

	event, err := s.provider.ConstructEvent(payload, signatureHeader)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(pathLive, "rejected").Inc()
		s.logger.WarnCtx(ctx, "webhook signature rejected", zap.Error(err))
		return DeliveryResult{}, ErrInvalidSignature
	}
	if len(event.Raw) == 0 {
		event.Raw = payload
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	result := s.handle(ctx, event)
	s.finish(ctx, pathLive, start, result)
	return result, nil
}

// Replay re-fetches an event by id from the provider and runs it through
// the same gate and processor. body is the operator's JSON request.
func (s *WebhookService) Replay(ctx context.Context, body []byte) DeliveryResult {
	start := time.Now()

	var req map[string]interface{}
	if err := json.Unmarshal(body, &req); err != nil || req == nil {
		result := DeliveryResult{Status: OutcomeError, Error: "Invalid JSON body"}
		s.finish(ctx, pathReplay, start, result)
		return result
	}
	eventID, _ := req["event_id"].(string)
	if eventID == "" {
		result := DeliveryResult{Status: OutcomeError, Error: "Missing event_id"}
		s.finish(ctx, pathReplay, start, result)
		return result
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	event, err := s.provider.RetrieveEvent(ctx, eventID)
	if err != nil {
		result := DeliveryResult{EventID: eventID, Type: replayFetchType, Status: OutcomeError, Error: err.Error()}
		s.markCtx(ctx, func(ctx context.Context) error {
			return s.events.RecordFetchError(ctx, eventID, result.Error, s.now())
		}, eventID)
		s.finish(ctx, pathReplay, start, result)
		return result
	}

	result := s.handle(ctx, event)
	s.finish(ctx, pathReplay, start, result)
	return result
}

// Admit runs the idempotency gate. A store failure is GateUnavailable and
// must not be processed.
func (s *WebhookService) Admit(ctx context.Context, event webhook.Event) Admission {
	admitted, err := s.events.Admit(ctx, event.ID, event.Type, s.now())
	if err != nil {
		s.logger.ErrorCtx(ctx, "webhook gate unavailable",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return GateUnavailable
	}
	if !admitted {
		return AlreadySeen
	}
	return Admitted
}

func (s *WebhookService) handle(ctx context.Context, event webhook.Event) DeliveryResult {
	result := DeliveryResult{EventID: event.ID, Type: event.Type}

	switch s.Admit(ctx, event) {
	case AlreadySeen:
		result.Status = OutcomeIgnored
		return result
	case GateUnavailable:
		result.Status = OutcomeError
		result.Error = "idempotency store unavailable"
		return result
	}

	s.archivePayload(ctx, event)

	if err := s.Process(ctx, event); err != nil {
		result.Status = OutcomeError
		result.Error = err.Error()
		s.markCtx(ctx, func(ctx context.Context) error {
			return s.events.MarkError(ctx, event.ID, result.Error, s.now())
		}, event.ID)
		return result
	}

	s.markCtx(ctx, func(ctx context.Context) error {
		return s.events.MarkSuccess(ctx, event.ID, s.now())
	}, event.ID)
	result.Status = OutcomeSuccess
	return result
}

// Process applies an admitted event to memberships. Unknown types and
// events missing the fields they need are no-ops.
func (s *WebhookService) Process(ctx context.Context, event webhook.Event) error {
	switch event.Kind() {
	case webhook.KindCheckoutCompleted:
		return s.onCheckoutCompleted(ctx, event)
	case webhook.KindInvoicePaymentSucceeded:
		return s.onInvoicePaid(ctx, event)
	case webhook.KindSubscriptionDeleted:
		return s.onSubscriptionDeleted(ctx, event)
	default:
		return nil
	}
}

func (s *WebhookService) onCheckoutCompleted(ctx context.Context, event webhook.Event) error {
	if event.MembershipRef == "" || event.SubscriptionID == "" {
		return nil
	}
	membershipID, err := uuid.Parse(event.MembershipRef)
	if err != nil {
		return fmt.Errorf("invalid client reference %q", event.MembershipRef)
	}

	expiresAt, err := s.periodEnd(ctx, event.SubscriptionID)
	if err != nil {
		return err
	}

	n, err := s.memberships.ActivateFromCheckout(ctx, membershipID, event.SubscriptionID, expiresAt)
	if err != nil {
		return fmt.Errorf("activate membership: %w", err)
	}
	if n == 0 {
		s.logger.InfoCtx(ctx, "checkout matched no updatable membership",
			zap.String("event_id", event.ID),
			zap.String("membership_id", membershipID.String()),
		)
		return nil
	}

	if err := s.memberships.RecordVerificationMethod(ctx, membershipID, membership.VerificationMethodStripe); err != nil {
		s.logger.WarnCtx(ctx, "verification method marker write failed",
			zap.String("membership_id", membershipID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (s *WebhookService) onInvoicePaid(ctx context.Context, event webhook.Event) error {
	if event.SubscriptionID == "" {
		return nil
	}
	expiresAt, err := s.periodEnd(ctx, event.SubscriptionID)
	if err != nil {
		return err
	}
	if _, err := s.memberships.ExtendActiveBySubscription(ctx, event.SubscriptionID, expiresAt); err != nil {
		return fmt.Errorf("extend membership: %w", err)
	}
	return nil
}

func (s *WebhookService) onSubscriptionDeleted(ctx context.Context, event webhook.Event) error {
	if event.SubscriptionID == "" {
		return nil
	}
	if _, err := s.memberships.ExpireBySubscription(ctx, event.SubscriptionID); err != nil {
		return fmt.Errorf("expire membership: %w", err)
	}
	return nil
}

func (s *WebhookService) periodEnd(ctx context.Context, subscriptionID string) (time.Time, error) {
	end, err := s.provider.SubscriptionPeriodEnd(ctx, subscriptionID)
	if err != nil {
		return time.Time{}, fmt.Errorf("retrieve subscription: %w", err)
	}
	if end.IsZero() {
		return s.now(), nil
	}
	return end, nil
}

func (s *WebhookService) archivePayload(ctx context.Context, event webhook.Event) {
	if s.archive == nil || len(event.Raw) == 0 {
		return
	}
	if err := s.archive.Put(ctx, event.ID, event.Raw, s.now()); err != nil {
		s.logger.WarnCtx(ctx, "webhook payload archive failed",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

// markCtx runs a bookkeeping write that must survive the processing deadline.
func (s *WebhookService) markCtx(ctx context.Context, write func(context.Context) error, eventID string) {
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultMarkTimeout)
	defer cancel()
	if err := write(markCtx); err != nil {
		s.logger.WarnCtx(ctx, "webhook status write failed",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}

// detach keeps processing alive if the caller disconnects mid-event.
func (s *WebhookService) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.processTimeout)
}

// finish emits the single terminal log line for a request.
func (s *WebhookService) finish(ctx context.Context, path string, start time.Time, result DeliveryResult) {
	elapsed := time.Since(start)
	metrics.WebhookEventsTotal.WithLabelValues(path, string(result.Status)).Inc()
	metrics.WebhookProcessingDuration.WithLabelValues(path).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("path", path),
		zap.String("event_id", result.EventID),
		zap.String("type", result.Type),
		zap.String("status", string(result.Status)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if result.Error != "" {
		fields = append(fields, zap.String("error", result.Error))
	}

	if result.Status == OutcomeError {
		s.logger.ErrorCtx(ctx, "webhook terminal state", fields...)
		return
	}
	s.logger.InfoCtx(ctx, "webhook terminal state", fields...)
}
