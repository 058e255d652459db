package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"coteri/internal/domain/membership"
	"coteri/internal/domain/verification"
	"coteri/internal/metrics"
	"coteri/internal/passtoken"
	"coteri/internal/repository"
	coteri_errors "coteri/pkg/errors"
	"coteri/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	membershipRefPrefix = "membership:"
	defaultAuditTimeout = 5 * time.Second
)

// ResultCache keeps the latest result per staff member for a single read.
type ResultCache interface {
	Put(ctx context.Context, staffUserID uuid.UUID, result verification.Result) error
	Take(ctx context.Context, staffUserID uuid.UUID) (*verification.Result, error)
}

// FeedPublisher fans recorded attempts out to venue managers.
type FeedPublisher interface {
	PublishVerification(ctx context.Context, venueID uuid.UUID, item verification.FeedItem) error
}

type InputKind int

const (
	InputUnrecognized InputKind = iota
	InputSignedToken
	InputMembershipRef
)

// Input is a scanned or typed payload after routing.
type Input struct {
	Kind InputKind
	// Token is set for InputSignedToken.
	Token string
	// MembershipID is set for InputMembershipRef.
	MembershipID uuid.UUID
}

// ParseInput routes a raw payload. Signed tokens carry the v2 prefix and
// legacy references are "membership:<uuid>". Anything else is unrecognized.
func ParseInput(raw string) Input {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, passtoken.Prefix):
		return Input{Kind: InputSignedToken, Token: trimmed}
	case strings.HasPrefix(trimmed, membershipRefPrefix):
		ref := strings.TrimSpace(strings.TrimPrefix(trimmed, membershipRefPrefix))
		if !passtoken.IsIdentifier(ref) {
			return Input{Kind: InputUnrecognized}
		}
		id, err := uuid.Parse(ref)
		if err != nil {
			return Input{Kind: InputUnrecognized}
		}
		return Input{Kind: InputMembershipRef, MembershipID: id}
	default:
		return Input{Kind: InputUnrecognized}
	}
}

type VerificationService struct {
	memberships  repository.MembershipRepository
	events       repository.VerificationEventRepository
	tokens       *passtoken.Verifier
	cache        ResultCache
	feed         FeedPublisher
	logger       *logger.Logger
	now          func() time.Time
	auditTimeout time.Duration

	wg sync.WaitGroup
}

type VerificationDeps struct {
	Memberships repository.MembershipRepository
	Events      repository.VerificationEventRepository
	Tokens      *passtoken.Verifier
	// Cache and Feed are optional.
	Cache  ResultCache
	Feed   FeedPublisher
	Logger *logger.Logger
}

func NewVerificationService(deps VerificationDeps) *VerificationService {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &VerificationService{
		memberships:  deps.Memberships,
		events:       deps.Events,
		tokens:       deps.Tokens,
		cache:        deps.Cache,
		feed:         deps.Feed,
		logger:       log,
		now:          time.Now,
		auditTimeout: defaultAuditTimeout,
	}
}

// WithClock replaces the time source used for audit timestamps.
func (s *VerificationService) WithClock(now func() time.Time) *VerificationService {
	s.now = now
	return s
}

// Verify answers whether raw proves an active membership at the staff
// member's venue. It never returns an error: every failure is an invalid
// result. The attempt is recorded in the background.
func (s *VerificationService) Verify(ctx context.Context, staff membership.StaffAssignment, raw string) verification.Result {
	result, membershipID := s.resolve(ctx, staff, raw)

	metrics.VerificationAttemptsTotal.WithLabelValues(string(result.Status)).Inc()

	if s.cache != nil {
		if err := s.cache.Put(ctx, staff.UserID, result); err != nil {
			s.logger.WarnCtx(ctx, "verification result cache write failed", zap.Error(err))
		}
	}

	s.record(ctx, staff, raw, result, membershipID)
	return result
}

// LastResult returns and clears the most recent result for the staff member.
func (s *VerificationService) LastResult(ctx context.Context, staffUserID uuid.UUID) (*verification.Result, error) {
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.Take(ctx, staffUserID)
}

// Wait blocks until background audit writes have finished.
func (s *VerificationService) Wait() {
	s.wg.Wait()
}

func (s *VerificationService) resolve(ctx context.Context, staff membership.StaffAssignment, raw string) (verification.Result, uuid.NullUUID) {
	input := ParseInput(raw)

	var membershipID uuid.UUID
	switch input.Kind {
	case InputSignedToken:
		res := s.tokens.Verify(input.Token)
		if !res.Valid() {
			if res.Reason == passtoken.ReasonNoSecret {
				s.logger.ErrorCtx(ctx, "qr signing secret is not configured")
			}
			return verification.Invalid(), uuid.NullUUID{}
		}
		venueID, err := uuid.Parse(res.Claims.VenueID)
		if err != nil || venueID != staff.VenueID {
			return verification.Invalid(), uuid.NullUUID{}
		}
		membershipID, err = uuid.Parse(res.Claims.MembershipID)
		if err != nil {
			return verification.Invalid(), uuid.NullUUID{}
		}
	case InputMembershipRef:
		membershipID = input.MembershipID
	default:
		return verification.Invalid(), uuid.NullUUID{}
	}

	m, err := s.memberships.GetActiveAtVenue(ctx, membershipID, staff.VenueID)
	if err != nil {
		if !errors.Is(err, coteri_errors.ErrNotFound) {
			s.logger.WarnCtx(ctx, "membership lookup failed", zap.Error(err))
		}
		return verification.Invalid(), uuid.NullUUID{}
	}
	return verification.Valid(m.TierOrDefault(), m.ID), uuid.NullUUID{UUID: m.ID, Valid: true}
}

// record writes the audit row off the request path. Failures are logged and
// never change the answer already given to staff.
func (s *VerificationService) record(ctx context.Context, staff membership.StaffAssignment, raw string, result verification.Result, membershipID uuid.NullUUID) {
	occurredAt := s.now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
		defer cancel()

		event := &verification.Event{
			ID:           uuid.New(),
			StaffUserID:  staff.UserID,
			VenueID:      staff.VenueID,
			MembershipID: membershipID,
			Result:       result.Status,
			RawPayload:   raw,
			OccurredAt:   occurredAt,
		}

		flag, flagged := s.assess(auditCtx, staff, occurredAt)
		if flagged {
			event.FlagReason.String, event.FlagReason.Valid = string(flag.Reason), true
			event.FlagScore.Int32, event.FlagScore.Valid = int32(flag.Score), true
			metrics.VerificationFlagsTotal.WithLabelValues(string(flag.Reason)).Inc()
		}

		if err := s.events.Insert(auditCtx, event); err != nil {
			metrics.AuditWriteFailuresTotal.Inc()
			s.logger.WarnCtx(auditCtx, "verification event write failed", zap.Error(err))
		}

		if s.feed == nil {
			return
		}
		item := verification.FeedItem{
			StaffUserID:  staff.UserID.String(),
			Result:       result.Status,
			Tier:         result.Tier,
			MembershipID: result.MembershipID,
			OccurredAt:   occurredAt,
		}
		if flagged {
			item.FlagReason, item.FlagScore = flag.Reason, flag.Score
		}
		if err := s.feed.PublishVerification(auditCtx, staff.VenueID, item); err != nil {
			s.logger.WarnCtx(auditCtx, "verification feed publish failed", zap.Error(err))
		}
	}()
}

func (s *VerificationService) assess(ctx context.Context, staff membership.StaffAssignment, at time.Time) (verification.Flag, bool) {
	history, err := s.events.RecentAttempts(ctx, staff.UserID, staff.VenueID, at.Add(-anomalyWindow))
	if err != nil {
		s.logger.WarnCtx(ctx, "verification history read failed", zap.Error(err))
		return verification.Flag{}, false
	}
	return ScoreAttempts(at, history)
}
