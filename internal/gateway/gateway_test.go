package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-escrow/internal/domain"
)

func TestHTTPGatewayCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var req SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 20.00, req.Amount)

		json.NewEncoder(w).Encode(Session{SessionID: "cs_123", URL: "https://pay.example.com/cs_123"})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "sk_test", "whsec", 2*time.Second)
	session, err := gw.CreateSession(context.Background(), SessionRequest{
		Amount:     20.00,
		Currency:   "usd",
		SuccessURL: "https://shop.example.com/success",
		CancelURL:  "https://shop.example.com/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", session.SessionID)
}

func TestHTTPGatewayGetStatusMapsProviderValues(t *testing.T) {
	status := "complete"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "sk_test", "whsec", 2*time.Second)

	got, err := gw.GetStatus(context.Background(), "cs_123")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got)

	status = "something-new"
	got, err = gw.GetStatus(context.Background(), "cs_123")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got)
}

func TestHTTPGatewayUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "sk_test", "whsec", 2*time.Second)

	_, err := gw.GetStatus(context.Background(), "cs_123")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	_, err = gw.CreateSession(context.Background(), SessionRequest{})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestVerifyAndParseWebhook(t *testing.T) {
	gw := NewHTTPGateway("http://unused", "sk_test", "whsec_abc", time.Second)

	body, _ := json.Marshal(WebhookEvent{SessionID: "cs_123", EventType: EventSessionCompleted})

	event, err := gw.VerifyAndParseWebhook(body, Sign(body, "whsec_abc"))
	require.NoError(t, err)
	assert.Equal(t, "cs_123", event.SessionID)
	assert.Equal(t, EventSessionCompleted, event.EventType)
}

func TestVerifyAndParseWebhookRejectsTamper(t *testing.T) {
	gw := NewHTTPGateway("http://unused", "sk_test", "whsec_abc", time.Second)

	body, _ := json.Marshal(WebhookEvent{SessionID: "cs_123", EventType: EventSessionCompleted})
	sig := Sign(body, "whsec_abc")

	// Flipped byte in the body.
	tampered := append([]byte{}, body...)
	tampered[10] ^= 0xff
	_, err := gw.VerifyAndParseWebhook(tampered, sig)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	// Signature from the wrong secret.
	_, err = gw.VerifyAndParseWebhook(body, Sign(body, "whsec_other"))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	// Empty signature.
	_, err = gw.VerifyAndParseWebhook(body, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestVerifyAndParseWebhookRejectsMalformedBody(t *testing.T) {
	gw := NewHTTPGateway("http://unused", "sk_test", "whsec_abc", time.Second)

	body := []byte("not json")
	_, err := gw.VerifyAndParseWebhook(body, Sign(body, "whsec_abc"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthenticated)

	body = []byte(`{"event_type": "checkout.session.completed"}`)
	_, err = gw.VerifyAndParseWebhook(body, Sign(body, "whsec_abc"))
	assert.Error(t, err)
}

func TestMockGatewayScriptsStatuses(t *testing.T) {
	gw := NewMockGateway("whsec")
	ctx := context.Background()

	session, err := gw.CreateSession(ctx, SessionRequest{Amount: 20.00})
	require.NoError(t, err)

	status, err := gw.GetStatus(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	gw.Complete(session.SessionID)
	status, err = gw.GetStatus(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, status)

	_, err = gw.GetStatus(ctx, "cs_unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
