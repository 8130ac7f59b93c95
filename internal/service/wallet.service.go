package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coupon-escrow/internal/domain"
	"coupon-escrow/internal/logging"
	"coupon-escrow/internal/repo"
)

// MinWithdrawal is the smallest amount a seller may withdraw.
const MinWithdrawal = 10.0

// WalletService exposes the seller wallet. The balance only moves through
// transaction completion (credit) and withdrawals here (debit).
type WalletService interface {
	Balance(ctx context.Context, userID uuid.UUID) (float64, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount float64, payoutTarget string) (*domain.Withdrawal, error)
}

type walletService struct {
	db    *sql.DB
	users repo.UserRepo
}

func NewWalletService(db *sql.DB, users repo.UserRepo) WalletService {
	return &walletService{db: db, users: users}
}

func (s *walletService) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return user.WalletBalance, nil
}

func (s *walletService) Withdraw(ctx context.Context, userID uuid.UUID, amount float64, payoutTarget string) (*domain.Withdrawal, error) {
	if amount < MinWithdrawal {
		return nil, fmt.Errorf("minimum withdrawal amount is %.2f: %w", MinWithdrawal, domain.ErrInvalidState)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The debit is guarded on balance >= amount; a losing concurrent
	// withdrawal sees no rows changed rather than overdrawing.
	ok, err := s.users.Debit(ctx, tx, userID, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("insufficient balance: %w", domain.ErrInvalidState)
	}

	withdrawal := &domain.Withdrawal{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       amount,
		PayoutTarget: payoutTarget,
		Status:       "pending",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateWithdrawal(ctx, tx, withdrawal); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logging.Info("withdrawal requested",
		zap.String("user_id", userID.String()),
		zap.Float64("amount", amount),
	)
	return withdrawal, nil
}
