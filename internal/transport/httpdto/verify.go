package httpdto

// VerifyRequest is used for POST /v1/verify. Payload is whatever the scanner
// read, or a typed membership reference.
type VerifyRequest struct {
	Payload string `json:"payload" form:"payload"`
}

// VerifyResponse is the staff-facing outcome of one attempt
type VerifyResponse struct {
	Status       string `json:"status"`
	Tier         string `json:"tier,omitempty"`
	MembershipID string `json:"membership_id,omitempty"`
}

// LastResultResponse is returned by GET /v1/verify/result. Result is null
// when nothing is pending.
type LastResultResponse struct {
	Result *VerifyResponse `json:"result"`
}
