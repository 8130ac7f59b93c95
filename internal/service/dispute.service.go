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

// DisputeService moves disputed transactions to a terminal outcome. Filing
// pins the transaction in disputed; the adjudicator's resolution either
// refunds (bookkeeping only, no wallet effect) or releases the payout with
// the same atomic credit as a normal confirmation.
type DisputeService interface {
	FileDispute(ctx context.Context, transactionID, buyerID uuid.UUID, reason string) (*domain.Dispute, error)
	ResolveDispute(ctx context.Context, disputeID uuid.UUID, resolution domain.Resolution) error
	ListDisputes(ctx context.Context) ([]domain.Dispute, error)
}

type disputeService struct {
	db           *sql.DB
	disputes     repo.DisputeRepo
	transactions repo.TransactionRepo
	users        repo.UserRepo
}

func NewDisputeService(db *sql.DB, disputes repo.DisputeRepo, transactions repo.TransactionRepo, users repo.UserRepo) DisputeService {
	return &disputeService{
		db:           db,
		disputes:     disputes,
		transactions: transactions,
		users:        users,
	}
}

func (s *disputeService) FileDispute(ctx context.Context, transactionID, buyerID uuid.UUID, reason string) (*domain.Dispute, error) {
	transaction, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction == nil {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	if transaction.BuyerID != buyerID {
		return nil, fmt.Errorf("only the buyer may dispute: %w", domain.ErrForbidden)
	}
	if transaction.Status != domain.TransactionEscrow {
		return nil, fmt.Errorf("transaction is %s, not escrow: %w", transaction.Status, domain.ErrInvalidState)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	won, err := s.transactions.UpdateStatus(ctx, tx, transactionID, domain.TransactionEscrow, domain.TransactionDisputed)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("transaction already left escrow: %w", domain.ErrConflict)
	}

	dispute := &domain.Dispute{
		ID:            uuid.New(),
		TransactionID: transactionID,
		BuyerID:       buyerID,
		SellerID:      transaction.SellerID,
		Reason:        reason,
		Status:        domain.DisputeOpen,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.disputes.Create(ctx, tx, dispute); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logging.Info("dispute filed",
		zap.String("dispute_id", dispute.ID.String()),
		zap.String("transaction_id", transactionID.String()),
	)
	return dispute, nil
}

func (s *disputeService) ResolveDispute(ctx context.Context, disputeID uuid.UUID, resolution domain.Resolution) error {
	if resolution != domain.ResolutionRefund && resolution != domain.ResolutionRelease {
		return fmt.Errorf("unknown resolution %q: %w", resolution, domain.ErrInvalidState)
	}

	dispute, err := s.disputes.FindByID(ctx, disputeID)
	if err != nil {
		return err
	}
	if dispute == nil {
		return fmt.Errorf("dispute %s: %w", disputeID, domain.ErrNotFound)
	}
	if dispute.Status == domain.DisputeResolved {
		return fmt.Errorf("dispute already resolved: %w", domain.ErrInvalidState)
	}

	transaction, err := s.transactions.FindByID(ctx, dispute.TransactionID)
	if err != nil {
		return err
	}
	if transaction == nil {
		return fmt.Errorf("transaction %s: %w", dispute.TransactionID, domain.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	won, err := s.disputes.Resolve(ctx, tx, disputeID, resolution)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("dispute already resolved: %w", domain.ErrConflict)
	}

	switch resolution {
	case domain.ResolutionRefund:
		// Bookkeeping only; the buyer's gateway refund happens elsewhere.
		won, err = s.transactions.UpdateStatus(ctx, tx, dispute.TransactionID, domain.TransactionDisputed, domain.TransactionRefunded)
	case domain.ResolutionRelease:
		won, err = s.transactions.Complete(ctx, tx, dispute.TransactionID, domain.TransactionDisputed)
		if err == nil && won {
			err = s.users.Credit(ctx, tx, transaction.SellerID, transaction.Payout())
		}
	}
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("transaction no longer disputed: %w", domain.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logging.Info("dispute resolved",
		zap.String("dispute_id", disputeID.String()),
		zap.String("resolution", string(resolution)),
	)
	return nil
}

func (s *disputeService) ListDisputes(ctx context.Context) ([]domain.Dispute, error) {
	return s.disputes.List(ctx)
}
