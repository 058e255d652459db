package passtoken

import (
	"crypto/subtle"
	"encoding/json"
	"strings"
	"time"
)

// Reason names the first check a token failed. It exists for tests and
// operator tooling; callers facing staff must only branch on Result.Valid.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoSecret
	ReasonMalformed
	ReasonSignatureEncoding
	ReasonSignatureMismatch
	ReasonPayload
	ReasonIdentifier
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoSecret:
		return "no_secret"
	case ReasonMalformed:
		return "malformed"
	case ReasonSignatureEncoding:
		return "signature_encoding"
	case ReasonSignatureMismatch:
		return "signature_mismatch"
	case ReasonPayload:
		return "payload"
	case ReasonIdentifier:
		return "identifier"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Result is the outcome of Verify. Claims are only set when Reason is ReasonNone.
type Result struct {
	Claims Claims
	Reason Reason
}

func (r Result) Valid() bool {
	return r.Reason == ReasonNone
}

func invalid(reason Reason) Result {
	return Result{Reason: reason}
}

type Verifier struct {
	secret []byte
	now    clock
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// wirePayload uses pointers so absent fields and wrong JSON types are
// distinguishable from zero values.
type wirePayload struct {
	MembershipID *string  `json:"membership_id"`
	VenueID      *string  `json:"venue_id"`
	IssuedAt     *float64 `json:"issued_at"`
	ExpiresAt    *float64 `json:"expires_at"`
}

// Verify checks token and returns the identifiers it binds. It never panics
// and stops at the first failed check.
func (v *Verifier) Verify(token string) Result {
	if len(v.secret) == 0 {
		return invalid(ReasonNoSecret)
	}
	if !strings.HasPrefix(token, Prefix) || len(token) < minTokenLength {
		return invalid(ReasonMalformed)
	}

	rest := token[len(Prefix):]
	if strings.Count(rest, ".") != 1 {
		return invalid(ReasonMalformed)
	}
	encodedJSON, encodedSig, _ := strings.Cut(rest, ".")
	if encodedJSON == "" || encodedSig == "" {
		return invalid(ReasonMalformed)
	}

	sig, err := encoding.DecodeString(strings.TrimRight(encodedSig, "="))
	if err != nil || len(sig) != signatureSize {
		return invalid(ReasonSignatureEncoding)
	}
	if subtle.ConstantTimeCompare(mac(v.secret, encodedJSON), sig) != 1 {
		return invalid(ReasonSignatureMismatch)
	}

	body, err := encoding.DecodeString(strings.TrimRight(encodedJSON, "="))
	if err != nil {
		return invalid(ReasonPayload)
	}
	var p wirePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return invalid(ReasonPayload)
	}
	if p.MembershipID == nil || p.VenueID == nil || p.ExpiresAt == nil {
		return invalid(ReasonPayload)
	}

	membershipID := strings.TrimSpace(*p.MembershipID)
	venueID := strings.TrimSpace(*p.VenueID)
	if !IsIdentifier(membershipID) || !IsIdentifier(venueID) {
		return invalid(ReasonIdentifier)
	}

	if *p.ExpiresAt <= float64(v.now().Unix()) {
		return invalid(ReasonExpired)
	}

	return Result{Claims: Claims{MembershipID: membershipID, VenueID: venueID}}
}
