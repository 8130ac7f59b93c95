package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentExpired   PaymentStatus = "expired"
)

// Terminal reports whether the status must never be overwritten.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentPaid, PaymentFailed, PaymentExpired:
		return true
	}
	return false
}

// Payment tracks a single checkout attempt against the gateway. Unique on
// SessionID; mutated only by the reconciler.
type Payment struct {
	ID        uuid.UUID     `json:"payment_id"`
	BuyerID   uuid.UUID     `json:"buyer_id"`
	CouponID  uuid.UUID     `json:"coupon_id"`
	SessionID string        `json:"session_id"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ReportSource is the provenance of a gateway status report.
type ReportSource string

const (
	SourcePoll    ReportSource = "poll"
	SourceWebhook ReportSource = "webhook"
)
