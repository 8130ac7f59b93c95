package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coupon-escrow/internal/domain"
	"coupon-escrow/internal/logging"
	"coupon-escrow/internal/repo"
)

// EscrowService governs the transaction lifecycle after funds land in
// escrow: buyer confirmation releases the seller payout, and the coupon
// code is disclosed only to the matched buyer.
type EscrowService interface {
	// ConfirmTransaction releases escrowed funds to the seller. The status
	// write and the wallet credit commit as one unit; a double submission
	// fails with Conflict instead of double-crediting.
	ConfirmTransaction(ctx context.Context, transactionID, buyerID uuid.UUID) (float64, error)
	// CouponCode reveals the plaintext code to the matched buyer while the
	// transaction is in escrow or completed.
	CouponCode(ctx context.Context, transactionID, callerID uuid.UUID) (*CouponReveal, error)
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
}

type CouponReveal struct {
	Code       string `json:"coupon_code"`
	BrandName  string `json:"brand_name"`
	ExpiryDate string `json:"expiry_date"`
}

type escrowService struct {
	db           *sql.DB
	transactions repo.TransactionRepo
	coupons      repo.CouponRepo
	users        repo.UserRepo
}

func NewEscrowService(db *sql.DB, transactions repo.TransactionRepo, coupons repo.CouponRepo, users repo.UserRepo) EscrowService {
	return &escrowService{
		db:           db,
		transactions: transactions,
		coupons:      coupons,
		users:        users,
	}
}

func (s *escrowService) ConfirmTransaction(ctx context.Context, transactionID, buyerID uuid.UUID) (float64, error) {
	transaction, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return 0, err
	}
	if transaction == nil {
		return 0, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	if transaction.BuyerID != buyerID {
		return 0, fmt.Errorf("transaction belongs to another buyer: %w", domain.ErrForbidden)
	}
	switch transaction.Status {
	case domain.TransactionEscrow:
		// proceed
	case domain.TransactionCompleted:
		return 0, fmt.Errorf("transaction already confirmed: %w", domain.ErrConflict)
	default:
		return 0, fmt.Errorf("transaction is %s, not escrow: %w", transaction.Status, domain.ErrInvalidState)
	}

	payout := transaction.Payout()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	won, err := s.transactions.Complete(ctx, tx, transactionID, domain.TransactionEscrow)
	if err != nil {
		return 0, err
	}
	if !won {
		// A parallel confirmation (or a dispute filing) got there first.
		return 0, fmt.Errorf("transaction already left escrow: %w", domain.ErrConflict)
	}

	if err := s.users.Credit(ctx, tx, transaction.SellerID, payout); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	logging.Info("escrow released",
		zap.String("transaction_id", transactionID.String()),
		zap.String("seller_id", transaction.SellerID.String()),
		zap.Float64("payout", payout),
	)
	return payout, nil
}

func (s *escrowService) CouponCode(ctx context.Context, transactionID, callerID uuid.UUID) (*CouponReveal, error) {
	transaction, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction == nil {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	if transaction.BuyerID != callerID {
		return nil, fmt.Errorf("code visible only to the buyer: %w", domain.ErrForbidden)
	}
	if transaction.Status != domain.TransactionEscrow && transaction.Status != domain.TransactionCompleted {
		return nil, fmt.Errorf("payment not completed: %w", domain.ErrInvalidState)
	}

	coupon, err := s.coupons.FindByID(ctx, transaction.CouponID)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, fmt.Errorf("coupon %s: %w", transaction.CouponID, domain.ErrNotFound)
	}

	return &CouponReveal{
		Code:       coupon.Code,
		BrandName:  coupon.BrandName,
		ExpiryDate: coupon.ExpiryDate,
	}, nil
}

func (s *escrowService) ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	return s.transactions.ListByUser(ctx, userID)
}
