package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"coupon-escrow/internal/domain"
)

type TransactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	// UpdateStatus is a compare-and-set on the status column. Reports
	// whether this caller performed the transition.
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error)
	// Complete is UpdateStatus(from -> completed) that also stamps
	// completed_at in the same statement.
	Complete(ctx context.Context, tx *sql.Tx, id uuid.UUID, from domain.TransactionStatus) (bool, error)
}

type transactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) TransactionRepo {
	return &transactionRepo{db: db}
}

const transactionColumns = `id, session_id, buyer_id, seller_id, coupon_id, amount, platform_commission, status, created_at, completed_at`

func scanTransaction(row interface{ Scan(...any) error }, t *domain.Transaction) error {
	return row.Scan(
		&t.ID,
		&t.SessionID,
		&t.BuyerID,
		&t.SellerID,
		&t.CouponID,
		&t.Amount,
		&t.PlatformCommission,
		&t.Status,
		&t.CreatedAt,
		&t.CompletedAt,
	)
}

func (r *transactionRepo) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, session_id, buyer_id, seller_id, coupon_id, amount, platform_commission, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := node(r.db, tx).ExecContext(
		ctx, query,
		t.ID, t.SessionID, t.BuyerID, t.SellerID, t.CouponID,
		t.Amount, t.PlatformCommission, t.Status, t.CreatedAt,
	)
	return err
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var t domain.Transaction
	err := scanTransaction(row, &t)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	query := `UPDATE transactions SET status = $3 WHERE id = $1 AND status = $2`
	res, err := node(r.db, tx).ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *transactionRepo) Complete(ctx context.Context, tx *sql.Tx, id uuid.UUID, from domain.TransactionStatus) (bool, error) {
	query := `
		UPDATE transactions
		SET status = $3, completed_at = now()
		WHERE id = $1 AND status = $2
	`
	res, err := node(r.db, tx).ExecContext(ctx, query, id, from, domain.TransactionCompleted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
