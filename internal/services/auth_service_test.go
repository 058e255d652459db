package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"coteri/internal/domain/membership"
	coteri_errors "coteri/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testJWTSecret = "idp-secret"

func signAccess(t *testing.T, secret string, method jwt.SigningMethod, subject string, expires time.Time) string {
	t.Helper()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestAuthenticate(t *testing.T) {
	svc := NewAuthService(&fakeStaff{}, testJWTSecret)
	userID := uuid.New()
	future := time.Now().Add(time.Hour)

	got, err := svc.Authenticate(signAccess(t, testJWTSecret, jwt.SigningMethodHS256, userID.String(), future))
	if err != nil || got != userID {
		t.Fatalf("Authenticate() = %s, %v", got, err)
	}

	rejected := map[string]string{
		"empty":       "",
		"garbage":     "abc.def.ghi",
		"wrong key":   signAccess(t, "other", jwt.SigningMethodHS256, userID.String(), future),
		"expired":     signAccess(t, testJWTSecret, jwt.SigningMethodHS256, userID.String(), time.Now().Add(-time.Minute)),
		"bad subject": signAccess(t, testJWTSecret, jwt.SigningMethodHS256, "user-1", future),
	}
	for name, token := range rejected {
		if _, err := svc.Authenticate(token); !errors.Is(err, coteri_errors.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
}

func TestAuthenticateWithoutSecret(t *testing.T) {
	svc := NewAuthService(&fakeStaff{}, "")
	token := signAccess(t, "unused", jwt.SigningMethodHS256, uuid.NewString(), time.Now().Add(time.Hour))

	if _, err := svc.Authenticate(token); !errors.Is(err, coteri_errors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveStaff(t *testing.T) {
	staff := membership.StaffAssignment{UserID: uuid.New(), VenueID: venueA, Role: membership.RoleStaff}
	guest := membership.StaffAssignment{UserID: uuid.New(), VenueID: venueA, Role: "guest"}
	svc := NewAuthService(&fakeStaff{assignments: []membership.StaffAssignment{staff, guest}}, testJWTSecret)

	got, err := svc.ResolveStaff(context.Background(), staff.UserID)
	if err != nil || got.VenueID != venueA {
		t.Fatalf("ResolveStaff() = %+v, %v", got, err)
	}
	if _, err := svc.ResolveStaff(context.Background(), guest.UserID); !errors.Is(err, coteri_errors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for guest role, got %v", err)
	}
	if _, err := svc.ResolveStaff(context.Background(), uuid.New()); !errors.Is(err, coteri_errors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden without assignment, got %v", err)
	}
}

func TestResolveFeedWatcher(t *testing.T) {
	manager := membership.StaffAssignment{UserID: uuid.New(), VenueID: venueA, Role: membership.RoleManager}
	svc := NewAuthService(&fakeStaff{assignments: []membership.StaffAssignment{manager, staffA}}, testJWTSecret)

	if _, err := svc.ResolveFeedWatcher(context.Background(), manager.UserID, venueA); err != nil {
		t.Fatalf("manager rejected: %v", err)
	}
	if _, err := svc.ResolveFeedWatcher(context.Background(), staffA.UserID, venueA); !errors.Is(err, coteri_errors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff role, got %v", err)
	}
	if _, err := svc.ResolveFeedWatcher(context.Background(), manager.UserID, venueB); !errors.Is(err, coteri_errors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another venue, got %v", err)
	}
}
