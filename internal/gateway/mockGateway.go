package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"coupon-escrow/internal/domain"
)

// MockGateway is an in-memory provider for tests and local runs. Sessions
// start pending; tests script terminal statuses with Complete/Fail/Expire.
type MockGateway struct {
	mu            sync.RWMutex
	sessions      map[string]SessionStatus
	webhookSecret string

	// StatusErr, when set, makes GetStatus fail. Simulates provider outage.
	StatusErr error
}

func NewMockGateway(webhookSecret string) *MockGateway {
	return &MockGateway{
		sessions:      make(map[string]SessionStatus),
		webhookSecret: webhookSecret,
	}
}

func (g *MockGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	id := "cs_" + uuid.NewString()

	g.mu.Lock()
	g.sessions[id] = StatusPending
	g.mu.Unlock()

	return &Session{
		SessionID: id,
		URL:       "https://checkout.example.com/pay/" + id,
	}, nil
}

func (g *MockGateway) GetStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.StatusErr != nil {
		return "", g.StatusErr
	}
	if status, exists := g.sessions[sessionID]; exists {
		return status, nil
	}
	return "", fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
}

func (g *MockGateway) VerifyAndParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	if !verifySignature(body, signature, g.webhookSecret) {
		return nil, fmt.Errorf("webhook: %w: bad signature", domain.ErrUnauthenticated)
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("webhook: malformed payload: %w", err)
	}
	return &event, nil
}

// Complete marks the session paid on the provider side.
func (g *MockGateway) Complete(sessionID string) {
	g.set(sessionID, StatusPaid)
}

// Fail marks the session failed on the provider side.
func (g *MockGateway) Fail(sessionID string) {
	g.set(sessionID, StatusFailed)
}

// Expire marks the session expired on the provider side.
func (g *MockGateway) Expire(sessionID string) {
	g.set(sessionID, StatusExpired)
}

func (g *MockGateway) set(sessionID string, status SessionStatus) {
	g.mu.Lock()
	g.sessions[sessionID] = status
	g.mu.Unlock()
}

// SignedWebhook builds a signed webhook body for the session, as the
// provider would deliver it.
func (g *MockGateway) SignedWebhook(sessionID, eventType string) (body []byte, signature string) {
	body, _ = json.Marshal(WebhookEvent{SessionID: sessionID, EventType: eventType})
	return body, Sign(body, g.webhookSecret)
}
