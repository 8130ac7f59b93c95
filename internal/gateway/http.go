package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coupon-escrow/internal/domain"
)

// httpGateway talks to the hosted-checkout provider over its REST API.
type httpGateway struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

func NewHTTPGateway(baseURL, apiKey, webhookSecret string, timeout time.Duration) Gateway {
	return &httpGateway{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: timeout},
	}
}

func (g *httpGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create session: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create session: %w: provider returned status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("create session: decode response: %w", err)
	}
	return &session, nil
}

func (g *httpGateway) GetStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("get status: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get status: %w: provider returned status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("get status: decode response: %w", err)
	}
	return mapProviderStatus(payload.Status), nil
}

func (g *httpGateway) VerifyAndParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	if !verifySignature(body, signature, g.webhookSecret) {
		return nil, fmt.Errorf("webhook: %w: bad signature", domain.ErrUnauthenticated)
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("webhook: malformed payload: %w", err)
	}
	if event.SessionID == "" || event.EventType == "" {
		return nil, fmt.Errorf("webhook: malformed payload: missing session_id or event_type")
	}
	return &event, nil
}

// mapProviderStatus collapses provider status strings into the four states
// the reconciler understands. Unrecognized values stay pending.
func mapProviderStatus(s string) SessionStatus {
	switch s {
	case "paid", "complete", "completed":
		return StatusPaid
	case "failed", "canceled":
		return StatusFailed
	case "expired":
		return StatusExpired
	default:
		return StatusPending
	}
}

// Sign computes the webhook signature for a body. Exported for the stub
// gateway and webhook tests.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(body []byte, signature, secret string) bool {
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
