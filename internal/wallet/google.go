// Package wallet builds "Save to Google Wallet" links for membership passes.
package wallet

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	saveURLBase = "https://pay.google.com/gp/v/save/"
	language    = "en-US"
	demoBrand   = "Powered by COTERI"
)

var ErrNotConfigured = errors.New("google wallet is not configured")

var hexColor = regexp.MustCompile(`^#([a-fA-F0-9]{3}){1,2}$`)

type GoogleConfig struct {
	IssuerID string
	// ServiceAccountJSON holds client_email and private_key.
	ServiceAccountJSON string
	// Origin is the site allowed to render the save button.
	Origin string
}

type GoogleIssuer struct {
	issuerID    string
	clientEmail string
	key         *rsa.PrivateKey
	originHost  string
	now         func() time.Time
}

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// NewGoogleIssuer returns ErrNotConfigured when the issuer id or a usable
// service account is missing.
func NewGoogleIssuer(cfg GoogleConfig) (*GoogleIssuer, error) {
	if cfg.IssuerID == "" || cfg.ServiceAccountJSON == "" {
		return nil, ErrNotConfigured
	}

	var account serviceAccount
	if err := json.Unmarshal([]byte(cfg.ServiceAccountJSON), &account); err != nil {
		return nil, ErrNotConfigured
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, ErrNotConfigured
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse wallet signing key: %w", err)
	}

	host := "localhost"
	if cfg.Origin != "" {
		if u, err := url.Parse(cfg.Origin); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
	}

	return &GoogleIssuer{
		issuerID:    cfg.IssuerID,
		clientEmail: account.ClientEmail,
		key:         key,
		originHost:  host,
		now:         time.Now,
	}, nil
}

func (g *GoogleIssuer) WithClock(now func() time.Time) *GoogleIssuer {
	g.now = now
	return g
}

// Pass is what the wallet object shows.
type Pass struct {
	MembershipID string
	VenueName    string
	IsDemo       bool
	Tier         string
	BrandColor   string
	LogoURL      string
	// QRPayload is the signed token encoded in the barcode.
	QRPayload string
}

type localizedString struct {
	DefaultValue translatedString `json:"defaultValue"`
}

type translatedString struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type imageURI struct {
	URI string `json:"uri"`
}

type image struct {
	SourceURI imageURI `json:"sourceUri"`
}

type genericClass struct {
	ID                 string `json:"id"`
	HexBackgroundColor string `json:"hexBackgroundColor,omitempty"`
	Logo               *image `json:"logo,omitempty"`
}

type barcode struct {
	Type          string `json:"type"`
	Value         string `json:"value"`
	AlternateText string `json:"alternateText"`
}

type textModule struct {
	ID     string `json:"id,omitempty"`
	Header string `json:"header"`
	Body   string `json:"body"`
}

type genericObject struct {
	ID              string           `json:"id"`
	ClassID         string           `json:"classId"`
	State           string           `json:"state"`
	Barcode         barcode          `json:"barcode"`
	CardTitle       localizedString  `json:"cardTitle"`
	Header          localizedString  `json:"header"`
	Subheader       *localizedString `json:"subheader,omitempty"`
	TextModulesData []textModule     `json:"textModulesData,omitempty"`
}

type savePayload struct {
	GenericClasses []genericClass  `json:"genericClasses"`
	GenericObjects []genericObject `json:"genericObjects"`
}

type saveClaims struct {
	Type    string      `json:"typ"`
	Origins []string    `json:"origins"`
	Payload savePayload `json:"payload"`
	jwt.RegisteredClaims
}

// SaveURL signs a save-to-wallet JWT for p with RS256.
func (g *GoogleIssuer) SaveURL(p Pass) (string, error) {
	venueName := p.VenueName
	if venueName == "" {
		venueName = "Membership"
	}
	classID := g.issuerID + ".membership"

	class := genericClass{ID: classID}
	if color, ok := NormalizeHex(p.BrandColor); ok {
		class.HexBackgroundColor = color
	}
	if logo := strings.TrimSpace(p.LogoURL); logo != "" {
		class.Logo = &image{SourceURI: imageURI{URI: logo}}
	}

	title := venueName
	if p.IsDemo {
		title = venueName + " - Membership"
	}
	object := genericObject{
		ID:      g.issuerID + "." + strings.ReplaceAll(p.MembershipID, "-", "_"),
		ClassID: classID,
		State:   "ACTIVE",
		Barcode: barcode{
			Type:          "QR_CODE",
			Value:         p.QRPayload,
			AlternateText: venueName,
		},
		CardTitle: localized(title),
		Header:    localized(venueName + " - Membership"),
	}
	if p.IsDemo {
		sub := localized(demoBrand)
		object.Subheader = &sub
		object.TextModulesData = []textModule{
			{ID: "tier", Header: "Tier", Body: TierLabel(p.Tier)},
			{ID: "status", Header: "Status", Body: "Active"},
		}
	}

	claims := saveClaims{
		Type:    "savetowallet",
		Origins: []string{g.originHost},
		Payload: savePayload{
			GenericClasses: []genericClass{class},
			GenericObjects: []genericObject{object},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   g.clientEmail,
			Audience: jwt.ClaimStrings{"google"},
			IssuedAt: jwt.NewNumericDate(g.now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(g.key)
	if err != nil {
		return "", fmt.Errorf("sign wallet token: %w", err)
	}
	return saveURLBase + token, nil
}

func localized(value string) localizedString {
	return localizedString{DefaultValue: translatedString{Language: language, Value: value}}
}

// TierLabel maps a stored tier to the label printed on demo passes.
func TierLabel(tier string) string {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "founder":
		return "Founder"
	case "vip":
		return "VIP"
	default:
		return "Supporter"
	}
}

// NormalizeHex accepts #rgb or #rrggbb and returns the six digit form.
func NormalizeHex(color string) (string, bool) {
	color = strings.TrimSpace(color)
	if !hexColor.MatchString(color) {
		return "", false
	}
	if len(color) == 4 {
		return string([]byte{'#', color[1], color[1], color[2], color[2], color[3], color[3]}), true
	}
	return color, true
}
