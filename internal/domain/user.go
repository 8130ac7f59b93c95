package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// User carries the wallet balance. The balance only moves through transaction
// completion (credit) and explicit withdrawal (debit).
type User struct {
	ID            uuid.UUID `json:"user_id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	WalletBalance float64   `json:"wallet_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

type Withdrawal struct {
	ID           uuid.UUID `json:"withdrawal_id"`
	UserID       uuid.UUID `json:"user_id"`
	Amount       float64   `json:"amount"`
	PayoutTarget string    `json:"payout_target"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}
