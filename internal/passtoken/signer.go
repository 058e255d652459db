package passtoken

import (
	"encoding/json"
	"fmt"
	"time"
)

type Signer struct {
	secret []byte
	now    clock
}

// NewSigner returns a Signer keyed by secret. An empty secret is accepted here
// so that servers can start without one; Sign reports it.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// WithClock replaces the time source. Intended for tests and tooling.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Sign issues a token for the membership at the venue, valid for Lifetime.
func (s *Signer) Sign(membershipID, venueID string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSigningSecretMissing
	}

	issued := s.now().Unix()
	body, err := json.Marshal(Payload{
		MembershipID: membershipID,
		VenueID:      venueID,
		IssuedAt:     issued,
		ExpiresAt:    issued + int64(Lifetime/time.Second),
	})
	if err != nil {
		return "", fmt.Errorf("passtoken: encode payload: %w", err)
	}

	encodedJSON := encoding.EncodeToString(body)
	encodedSig := encoding.EncodeToString(mac(s.secret, encodedJSON))
	return Prefix + encodedJSON + "." + encodedSig, nil
}

// ExpiresAt returns the expiry a token signed now would carry.
func (s *Signer) ExpiresAt() time.Time {
	return time.Unix(s.now().Unix(), 0).Add(Lifetime)
}
