package domain

import (
	"time"

	"github.com/google/uuid"
)

type DisputeStatus string

const (
	DisputeOpen          DisputeStatus = "open"
	DisputeInvestigating DisputeStatus = "investigating"
	DisputeResolved      DisputeStatus = "resolved"
)

// Resolution outcomes an adjudicator can pick.
type Resolution string

const (
	ResolutionRefund  Resolution = "refund"
	ResolutionRelease Resolution = "release"
)

// Dispute is filed by the buyer against a transaction in escrow and forces
// that transaction into disputed. Terminal once resolved.
type Dispute struct {
	ID            uuid.UUID     `json:"dispute_id"`
	TransactionID uuid.UUID     `json:"transaction_id"`
	BuyerID       uuid.UUID     `json:"buyer_id"`
	SellerID      uuid.UUID     `json:"seller_id"`
	Reason        string        `json:"reason"`
	Status        DisputeStatus `json:"status"`
	Resolution    *Resolution   `json:"resolution,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
}
