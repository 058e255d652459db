package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"coteri/internal/domain/membership"
	"coteri/internal/domain/verification"
	"coteri/internal/passtoken"

	"github.com/google/uuid"
)

const testQRSecret = "qr-secret-for-tests"

var (
	venueA   = uuid.MustParse("0f7c2d3e-1a2b-4c5d-8e9f-0a1b2c3d4e5f")
	venueB   = uuid.MustParse("9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d")
	staffA   = membership.StaffAssignment{ID: uuid.New(), UserID: uuid.MustParse("5d2c1b0a-9f8e-4d7c-8b6a-5f4e3d2c1b0a"), VenueID: venueA, Role: membership.RoleStaff}
	memberID = uuid.MustParse("c1d2e3f4-a5b6-4c7d-8e9f-a0b1c2d3e4f5")
	ownerID  = uuid.MustParse("7e6d5c4b-3a29-4180-9f7e-6d5c4b3a2918")
)

type verifyFixture struct {
	svc         *VerificationService
	memberships *fakeMemberships
	events      *fakeVerificationEvents
	cache       *fakeCache
	feed        *fakeFeed
	signer      *passtoken.Signer
	now         time.Time
}

func newVerifyFixture(t *testing.T, rows ...membership.Membership) *verifyFixture {
	t.Helper()
	now := time.Date(2026, 5, 2, 22, 30, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	f := &verifyFixture{
		memberships: newFakeMemberships(rows...),
		events:      &fakeVerificationEvents{},
		cache:       newFakeCache(),
		feed:        newFakeFeed(),
		signer:      passtoken.NewSigner(testQRSecret).WithClock(clock),
		now:         now,
	}
	f.svc = NewVerificationService(VerificationDeps{
		Memberships: f.memberships,
		Events:      f.events,
		Tokens:      passtoken.NewVerifier(testQRSecret).WithClock(clock),
		Cache:       f.cache,
		Feed:        f.feed,
	}).WithClock(clock)
	return f
}

func activeMember(tier string) membership.Membership {
	m := membership.Membership{
		ID:      memberID,
		UserID:  ownerID,
		VenueID: venueA,
		Status:  membership.StatusActive,
	}
	if tier != "" {
		m.Tier = sql.NullString{String: tier, Valid: true}
	}
	return m
}

func (f *verifyFixture) sign(t *testing.T, membershipID, venueID uuid.UUID) string {
	t.Helper()
	token, err := f.signer.Sign(membershipID.String(), venueID.String())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestParseInput(t *testing.T) {
	cases := []struct {
		raw  string
		kind InputKind
	}{
		{"v2:abc.def", InputSignedToken},
		{"  v2:abc.def\n", InputSignedToken},
		{"membership:" + memberID.String(), InputMembershipRef},
		{"membership: " + memberID.String() + " ", InputMembershipRef},
		{"membership:not-a-uuid", InputUnrecognized},
		{"membership:00000000-0000-0000-0000-000000000000", InputUnrecognized},
		{memberID.String(), InputUnrecognized},
		{"v1:abc.def", InputUnrecognized},
		{"", InputUnrecognized},
	}
	for _, tc := range cases {
		got := ParseInput(tc.raw)
		if got.Kind != tc.kind {
			t.Fatalf("ParseInput(%q).Kind = %v, want %v", tc.raw, got.Kind, tc.kind)
		}
		if tc.kind == InputMembershipRef && got.MembershipID != memberID {
			t.Fatalf("ParseInput(%q).MembershipID = %s", tc.raw, got.MembershipID)
		}
	}
}

func TestVerifySignedTokenValid(t *testing.T) {
	f := newVerifyFixture(t, activeMember("Founder"))

	got := f.svc.Verify(context.Background(), staffA, f.sign(t, memberID, venueA))
	f.svc.Wait()

	want := verification.Valid("Founder", memberID)
	if got != want {
		t.Fatalf("Verify() = %+v, want %+v", got, want)
	}

	events := f.events.all()
	if len(events) != 1 {
		t.Fatalf("expected one audit row, got %d", len(events))
	}
	e := events[0]
	if e.Result != verification.StatusValid || !e.MembershipID.Valid || e.MembershipID.UUID != memberID {
		t.Fatalf("unexpected audit row %+v", e)
	}
	if e.StaffUserID != staffA.UserID || e.VenueID != venueA || !e.OccurredAt.Equal(f.now) {
		t.Fatalf("unexpected audit attribution %+v", e)
	}
	if e.FlagReason.Valid || e.FlagScore.Valid {
		t.Fatalf("expected no flag, got %+v", e)
	}
}

func TestVerifyDefaultsTier(t *testing.T) {
	f := newVerifyFixture(t, activeMember(""))

	got := f.svc.Verify(context.Background(), staffA, "membership:"+memberID.String())
	f.svc.Wait()

	if got.Status != verification.StatusValid || got.Tier != membership.DefaultTier {
		t.Fatalf("Verify() = %+v, want valid with default tier", got)
	}
}

func TestVerifyTamperedTokenSkipsLookup(t *testing.T) {
	f := newVerifyFixture(t, activeMember("VIP"))
	token := f.sign(t, memberID, venueA)
	last := token[len(token)-1]
	replacement := byte('A')
	if last == 'A' {
		replacement = 'B'
	}
	tampered := token[:len(token)-1] + string(replacement)

	got := f.svc.Verify(context.Background(), staffA, tampered)
	f.svc.Wait()

	if got != verification.Invalid() {
		t.Fatalf("Verify() = %+v, want invalid", got)
	}
	if f.memberships.lookups != 0 {
		t.Fatalf("expected no membership lookup, got %d", f.memberships.lookups)
	}
	events := f.events.all()
	if len(events) != 1 || events[0].Result != verification.StatusInvalid || events[0].MembershipID.Valid {
		t.Fatalf("unexpected audit rows %+v", events)
	}
	if events[0].RawPayload != tampered {
		t.Fatalf("raw payload not preserved: %q", events[0].RawPayload)
	}
}

func TestVerifyRejectsOtherVenueToken(t *testing.T) {
	m := activeMember("")
	m.VenueID = venueB
	f := newVerifyFixture(t, m)

	got := f.svc.Verify(context.Background(), staffA, f.sign(t, memberID, venueB))
	f.svc.Wait()

	if got != verification.Invalid() {
		t.Fatalf("Verify() = %+v, want invalid", got)
	}
	if f.memberships.lookups != 0 {
		t.Fatalf("expected no membership lookup, got %d", f.memberships.lookups)
	}
}

func TestVerifyInactiveOrForeignMembership(t *testing.T) {
	cases := map[string]func(*membership.Membership){
		"expired":     func(m *membership.Membership) { m.Status = membership.StatusExpired },
		"revoked":     func(m *membership.Membership) { m.Status = membership.StatusRevoked },
		"other venue": func(m *membership.Membership) { m.VenueID = venueB },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := activeMember("VIP")
			mutate(&m)
			f := newVerifyFixture(t, m)

			got := f.svc.Verify(context.Background(), staffA, "membership:"+memberID.String())
			f.svc.Wait()
			if got != verification.Invalid() {
				t.Fatalf("Verify() = %+v, want invalid", got)
			}
		})
	}
}

func TestVerifyUnknownInputSkipsLookup(t *testing.T) {
	f := newVerifyFixture(t, activeMember(""))

	for _, raw := range []string{"", "hello", memberID.String(), "membership:abc"} {
		if got := f.svc.Verify(context.Background(), staffA, raw); got != verification.Invalid() {
			t.Fatalf("Verify(%q) = %+v, want invalid", raw, got)
		}
	}
	f.svc.Wait()
	if f.memberships.lookups != 0 {
		t.Fatalf("expected no membership lookup, got %d", f.memberships.lookups)
	}
	if n := len(f.events.all()); n != 4 {
		t.Fatalf("expected 4 audit rows, got %d", n)
	}
}

func TestVerifyMissingSecretIsInvalid(t *testing.T) {
	f := newVerifyFixture(t, activeMember(""))
	token := f.sign(t, memberID, venueA)
	f.svc.tokens = passtoken.NewVerifier("")

	if got := f.svc.Verify(context.Background(), staffA, token); got != verification.Invalid() {
		t.Fatalf("Verify() = %+v, want invalid", got)
	}
	f.svc.Wait()
}

func TestVerifyAuditFailureDoesNotChangeResult(t *testing.T) {
	f := newVerifyFixture(t, activeMember("VIP"))
	f.events.insertErr = errStoreDown

	got := f.svc.Verify(context.Background(), staffA, f.sign(t, memberID, venueA))
	f.svc.Wait()

	if got.Status != verification.StatusValid {
		t.Fatalf("Verify() = %+v, want valid", got)
	}
	if len(f.feed.items[venueA]) != 1 {
		t.Fatalf("expected feed publish despite audit failure")
	}
}

func TestVerifyFlagsBurst(t *testing.T) {
	f := newVerifyFixture(t, activeMember(""))
	for i := 0; i < 10; i++ {
		f.events.events = append(f.events.events, verification.Event{
			StaffUserID: staffA.UserID,
			VenueID:     venueA,
			Result:      verification.StatusValid,
			OccurredAt:  f.now.Add(-time.Duration(i+1) * time.Second),
		})
	}

	f.svc.Verify(context.Background(), staffA, "membership:"+memberID.String())
	f.svc.Wait()

	events := f.events.all()
	last := events[len(events)-1]
	if !last.FlagReason.Valid || last.FlagReason.String != string(verification.FlagBurstAttempts) || last.FlagScore.Int32 != 60 {
		t.Fatalf("expected burst flag, got %+v", last)
	}
	items := f.feed.items[venueA]
	if len(items) != 1 || items[0].FlagReason != verification.FlagBurstAttempts || items[0].FlagScore != 60 {
		t.Fatalf("unexpected feed items %+v", items)
	}
}

func TestVerifyFlagsRepeatedInvalids(t *testing.T) {
	f := newVerifyFixture(t)
	for i := 0; i < 5; i++ {
		f.events.events = append(f.events.events, verification.Event{
			StaffUserID: staffA.UserID,
			VenueID:     venueA,
			Result:      verification.StatusInvalid,
			OccurredAt:  f.now.Add(-90 * time.Second),
		})
	}

	f.svc.Verify(context.Background(), staffA, "garbage")
	f.svc.Wait()

	events := f.events.all()
	last := events[len(events)-1]
	if last.FlagReason.String != string(verification.FlagRepeatedInvalids) || last.FlagScore.Int32 != 70 {
		t.Fatalf("expected repeated_invalids flag, got %+v", last)
	}
}

func TestLastResultIsReadOnce(t *testing.T) {
	f := newVerifyFixture(t, activeMember("VIP"))
	ctx := context.Background()

	f.svc.Verify(ctx, staffA, "membership:"+memberID.String())
	f.svc.Wait()

	first, err := f.svc.LastResult(ctx, staffA.UserID)
	if err != nil || first == nil || first.Status != verification.StatusValid {
		t.Fatalf("LastResult() = %+v, %v", first, err)
	}
	second, err := f.svc.LastResult(ctx, staffA.UserID)
	if err != nil || second != nil {
		t.Fatalf("expected empty second read, got %+v, %v", second, err)
	}

	other, _ := f.svc.LastResult(ctx, uuid.New())
	if other != nil {
		t.Fatalf("results must be scoped per staff member")
	}
}
