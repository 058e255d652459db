package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coteri/internal/domain/membership"
	"coteri/internal/metrics"
	"coteri/internal/passtoken"
	"coteri/internal/repository"
	"coteri/internal/wallet"
	coteri_errors "coteri/pkg/errors"
	"coteri/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WalletLinker signs save-to-wallet links.
type WalletLinker interface {
	SaveURL(p wallet.Pass) (string, error)
}

type PassService struct {
	memberships repository.MembershipRepository
	venues      repository.VenueRepository
	signer      *passtoken.Signer
	google      WalletLinker
	logger      *logger.Logger
}

// NewPassService builds the service. google may be nil when Google Wallet
// is not configured.
func NewPassService(memberships repository.MembershipRepository, venues repository.VenueRepository, signer *passtoken.Signer, google WalletLinker, log *logger.Logger) *PassService {
	if log == nil {
		log = logger.NewNop()
	}
	return &PassService{
		memberships: memberships,
		venues:      venues,
		signer:      signer,
		google:      google,
		logger:      log,
	}
}

type IssuedPass struct {
	MembershipID uuid.UUID
	VenueID      uuid.UUID
	Tier         string
	QRPayload    string
	ExpiresAt    time.Time
}

// Issue signs a fresh QR payload for a member's own active membership.
func (s *PassService) Issue(ctx context.Context, userID, membershipID, venueID uuid.UUID) (IssuedPass, error) {
	m, err := s.ownedAtVenue(ctx, userID, membershipID, venueID)
	if err != nil {
		return IssuedPass{}, err
	}

	expiresAt := s.signer.ExpiresAt()
	token, err := s.signer.Sign(m.ID.String(), m.VenueID.String())
	if err != nil {
		return IssuedPass{}, fmt.Errorf("sign pass: %w", err)
	}
	metrics.PassesIssuedTotal.WithLabelValues("qr").Inc()

	return IssuedPass{
		MembershipID: m.ID,
		VenueID:      m.VenueID,
		Tier:         m.TierOrDefault(),
		QRPayload:    token,
		ExpiresAt:    expiresAt,
	}, nil
}

// GoogleWalletLink returns a save link embedding a freshly signed payload.
func (s *PassService) GoogleWalletLink(ctx context.Context, userID, membershipID, venueID uuid.UUID) (string, error) {
	if s.google == nil {
		return "", coteri_errors.ErrNotConfigured
	}

	m, err := s.ownedAtVenue(ctx, userID, membershipID, venueID)
	if err != nil {
		return "", err
	}

	pass := wallet.Pass{
		MembershipID: m.ID.String(),
		VenueName:    "Membership",
		Tier:         m.TierOrDefault(),
	}
	venue, err := s.venues.GetByID(ctx, venueID)
	switch {
	case err == nil:
		if venue.Name != "" {
			pass.VenueName = venue.Name
		}
		pass.IsDemo = venue.IsDemo
		pass.BrandColor = venue.BrandPrimaryColor.String
		pass.LogoURL = venue.BrandLogoURL.String
	case !errors.Is(err, coteri_errors.ErrNotFound):
		s.logger.WarnCtx(ctx, "venue branding lookup failed", zap.Error(err))
	}

	pass.QRPayload, err = s.signer.Sign(m.ID.String(), m.VenueID.String())
	if err != nil {
		return "", fmt.Errorf("sign pass: %w", err)
	}

	link, err := s.google.SaveURL(pass)
	if err != nil {
		return "", err
	}
	metrics.PassesIssuedTotal.WithLabelValues("google_wallet").Inc()
	return link, nil
}

func (s *PassService) ownedAtVenue(ctx context.Context, userID, membershipID, venueID uuid.UUID) (membership.Membership, error) {
	m, err := s.memberships.GetActiveOwned(ctx, membershipID, userID)
	if err != nil {
		return membership.Membership{}, err
	}
	if m.VenueID != venueID {
		return membership.Membership{}, coteri_errors.ErrNotFound
	}
	return m, nil
}
