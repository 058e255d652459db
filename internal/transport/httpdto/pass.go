package httpdto

// PassResponse is returned by GET /v1/memberships/:id/pass
type PassResponse struct {
	MembershipID string `json:"membership_id"`
	VenueID      string `json:"venue_id"`
	Tier         string `json:"tier"`
	QRPayload    string `json:"qr_payload"`
	ExpiresAt    string `json:"expires_at"`
}

// WalletLinkResponse is returned for format=json wallet requests
type WalletLinkResponse struct {
	URL string `json:"url"`
}
