package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionEscrow    TransactionStatus = "escrow"
	TransactionCompleted TransactionStatus = "completed"
	TransactionDisputed  TransactionStatus = "disputed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// Transaction is created exactly once per paid payment. Funds sit in escrow
// until the buyer confirms or a dispute is resolved. PlatformCommission is
// frozen at creation; later rate changes never touch existing rows.
type Transaction struct {
	ID                 uuid.UUID         `json:"transaction_id"`
	SessionID          string            `json:"-"`
	BuyerID            uuid.UUID         `json:"buyer_id"`
	SellerID           uuid.UUID         `json:"seller_id"`
	CouponID           uuid.UUID         `json:"coupon_id"`
	Amount             float64           `json:"amount"`
	PlatformCommission float64           `json:"platform_commission"`
	Status             TransactionStatus `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
}

// Payout is the seller credit released on completion.
func (t *Transaction) Payout() float64 {
	return t.Amount - t.PlatformCommission
}
