package wallet

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T) (*GoogleIssuer, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	account, _ := json.Marshal(map[string]string{
		"client_email": "wallet@coteri.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
	})
	issuer, err := NewGoogleIssuer(GoogleConfig{
		IssuerID:           "3388000000012345",
		ServiceAccountJSON: string(account),
		Origin:             "https://coteri.example.com/app",
	})
	if err != nil {
		t.Fatalf("NewGoogleIssuer: %v", err)
	}
	return issuer, key
}

func TestNewGoogleIssuerNotConfigured(t *testing.T) {
	cases := []GoogleConfig{
		{},
		{IssuerID: "1"},
		{IssuerID: "1", ServiceAccountJSON: "not json"},
		{IssuerID: "1", ServiceAccountJSON: `{"client_email":"a@b"}`},
	}
	for i, cfg := range cases {
		if _, err := NewGoogleIssuer(cfg); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("case %d: expected ErrNotConfigured, got %v", i, err)
		}
	}
}

func TestSaveURLSignsVerifiableToken(t *testing.T) {
	issuer, key := newTestIssuer(t)
	issuedAt := time.Unix(1767225600, 0)
	issuer.WithClock(func() time.Time { return issuedAt })

	link, err := issuer.SaveURL(Pass{
		MembershipID: "8c6f1f0e-2b4a-4c1d-9e3f-5a6b7c8d9e01",
		VenueName:    "The Loft",
		IsDemo:       true,
		Tier:         "vip",
		BrandColor:   "#0af",
		QRPayload:    "v2:abc.def",
	})
	if err != nil {
		t.Fatalf("SaveURL: %v", err)
	}
	if !strings.HasPrefix(link, saveURLBase) {
		t.Fatalf("unexpected link %q", link)
	}

	claims := &saveClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimPrefix(link, saveURLBase), claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience("google"))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	if claims.Issuer != "wallet@coteri.iam.gserviceaccount.com" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.Type != "savetowallet" {
		t.Fatalf("unexpected typ %q", claims.Type)
	}
	if len(claims.Origins) != 1 || claims.Origins[0] != "coteri.example.com" {
		t.Fatalf("unexpected origins %v", claims.Origins)
	}
	if !claims.IssuedAt.Time.Equal(issuedAt) {
		t.Fatalf("unexpected iat %v", claims.IssuedAt)
	}

	class := claims.Payload.GenericClasses[0]
	if class.ID != "3388000000012345.membership" || class.HexBackgroundColor != "#00aaff" {
		t.Fatalf("unexpected class %+v", class)
	}
	object := claims.Payload.GenericObjects[0]
	if object.ID != "3388000000012345.8c6f1f0e_2b4a_4c1d_9e3f_5a6b7c8d9e01" {
		t.Fatalf("unexpected object id %q", object.ID)
	}
	if object.Barcode.Value != "v2:abc.def" || object.Barcode.Type != "QR_CODE" {
		t.Fatalf("unexpected barcode %+v", object.Barcode)
	}
	if object.Subheader == nil || len(object.TextModulesData) != 2 || object.TextModulesData[0].Body != "VIP" {
		t.Fatalf("expected demo modules, got %+v", object)
	}
}

func TestSaveURLOmitsDemoFieldsAndBadColor(t *testing.T) {
	issuer, key := newTestIssuer(t)

	link, err := issuer.SaveURL(Pass{
		MembershipID: "8c6f1f0e-2b4a-4c1d-9e3f-5a6b7c8d9e01",
		BrandColor:   "blue",
		QRPayload:    "v2:abc.def",
	})
	if err != nil {
		t.Fatalf("SaveURL: %v", err)
	}

	claims := &saveClaims{}
	if _, err := jwt.ParseWithClaims(strings.TrimPrefix(link, saveURLBase), claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}); err != nil {
		t.Fatalf("parse token: %v", err)
	}
	class := claims.Payload.GenericClasses[0]
	if class.HexBackgroundColor != "" || class.Logo != nil {
		t.Fatalf("expected no branding, got %+v", class)
	}
	object := claims.Payload.GenericObjects[0]
	if object.Subheader != nil || object.TextModulesData != nil {
		t.Fatalf("expected no demo fields, got %+v", object)
	}
	if object.CardTitle.DefaultValue.Value != "Membership" {
		t.Fatalf("unexpected title %q", object.CardTitle.DefaultValue.Value)
	}
}

func TestTierLabel(t *testing.T) {
	cases := map[string]string{
		"founder":   "Founder",
		"FOUNDER":   "Founder",
		"vip":       "VIP",
		"Member":    "Supporter",
		"":          "Supporter",
		"supporter": "Supporter",
	}
	for in, want := range cases {
		if got := TierLabel(in); got != want {
			t.Fatalf("TierLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeHex(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"#abc", "#aabbcc", true},
		{" #A1B2C3 ", "#A1B2C3", true},
		{"#abcd", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeHex(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("NormalizeHex(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
