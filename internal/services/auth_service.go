package services

import (
	"context"
	"errors"
	"net/http"

	"coteri/internal/domain/membership"
	"coteri/internal/repository"
	coteri_errors "coteri/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService trusts access tokens minted by the identity provider and maps
// the subject to a venue staff assignment. Sign-in itself happens elsewhere.
type AuthService struct {
	staffRepo repository.StaffRepository
	jwtSecret []byte
}

func NewAuthService(staffRepo repository.StaffRepository, jwtSecret string) *AuthService {
	return &AuthService{
		staffRepo: staffRepo,
		jwtSecret: []byte(jwtSecret),
	}
}

type AccessClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" || len(s.jwtSecret) == 0 {
		return AccessClaims{}, coteri_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, coteri_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, coteri_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, coteri_errors.ErrUnauthorized
	}

	return *claims, nil
}

// Authenticate parses the token and returns the user id it was issued to.
func (s *AuthService) Authenticate(tokenString string) (uuid.UUID, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, coteri_errors.ErrUnauthorized
	}
	return userID, nil
}

// ResolveStaff returns the venue the user verifies for. Users without a
// venue assignment, or with a role that cannot verify, are forbidden.
func (s *AuthService) ResolveStaff(ctx context.Context, userID uuid.UUID) (membership.StaffAssignment, error) {
	assignment, err := s.staffRepo.GetAssignment(ctx, userID)
	if errors.Is(err, coteri_errors.ErrNotFound) {
		return membership.StaffAssignment{}, coteri_errors.ErrForbidden
	}
	if err != nil {
		return membership.StaffAssignment{}, err
	}
	if !assignment.Role.CanVerify() {
		return membership.StaffAssignment{}, coteri_errors.ErrForbidden
	}
	return assignment, nil
}

// ResolveFeedWatcher checks that the user manages venueID.
func (s *AuthService) ResolveFeedWatcher(ctx context.Context, userID, venueID uuid.UUID) (membership.StaffAssignment, error) {
	assignment, err := s.staffRepo.GetAssignmentAtVenue(ctx, userID, venueID)
	if errors.Is(err, coteri_errors.ErrNotFound) {
		return membership.StaffAssignment{}, coteri_errors.ErrForbidden
	}
	if err != nil {
		return membership.StaffAssignment{}, err
	}
	if !assignment.Role.CanWatchFeed() {
		return membership.StaffAssignment{}, coteri_errors.ErrForbidden
	}
	return assignment, nil
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, coteri_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, coteri_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, coteri_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, coteri_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coteri_errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, coteri_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, coteri_errors.ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, coteri_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type ctxKey string

var userIDKey ctxKey = "user_id"
var staffKey ctxKey = "staff_assignment"

func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

func WithStaffContext(ctx context.Context, staff membership.StaffAssignment) context.Context {
	return context.WithValue(ctx, staffKey, staff)
}

func StaffFromContext(ctx context.Context) (membership.StaffAssignment, bool) {
	staff, ok := ctx.Value(staffKey).(membership.StaffAssignment)
	return staff, ok
}
