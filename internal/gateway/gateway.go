// Package gateway is the boundary to the external hosted-checkout provider.
// The core consumes this contract only; provider responses are mapped to
// typed results here so nothing downstream branches on raw payloads.
package gateway

import "context"

// SessionStatus is the provider-reported state of a checkout session.
type SessionStatus string

const (
	StatusPending SessionStatus = "pending"
	StatusPaid    SessionStatus = "paid"
	StatusFailed  SessionStatus = "failed"
	StatusExpired SessionStatus = "expired"
)

// SessionRequest describes the charge to open at the provider.
type SessionRequest struct {
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Session is the provider's handle for a created checkout.
type Session struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// WebhookEvent is a verified out-of-band notification from the provider.
type WebhookEvent struct {
	SessionID string `json:"session_id"`
	EventType string `json:"event_type"`
}

// EventSessionCompleted is the provider event that means the session was paid.
const EventSessionCompleted = "checkout.session.completed"

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetStatus(ctx context.Context, sessionID string) (SessionStatus, error)
	// VerifyAndParseWebhook checks the signature before anything else.
	// Tampered or unsigned bodies fail with domain.ErrUnauthenticated.
	VerifyAndParseWebhook(body []byte, signature string) (*WebhookEvent, error)
}
