package httpdto

// WebhookAck acknowledges every authenticated delivery, whatever its outcome.
type WebhookAck struct {
	OK bool `json:"ok"`
}

// ReplayAck is returned to operators replaying an event by id.
type ReplayAck struct {
	OK      bool   `json:"ok"`
	Replay  bool   `json:"replay"`
	EventID string `json:"event_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}
