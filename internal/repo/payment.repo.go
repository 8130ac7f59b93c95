package repo

import (
	"context"
	"database/sql"
	"time"

	"coupon-escrow/internal/domain"
)

type PaymentRepo interface {
	// tx *sql.Tx -> join the caller's transaction; nil runs on the pool
	Create(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error
	FindBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error)
	// MarkPaid flips initiated/pending -> paid as a single conditional
	// update. Returns the updated payment when this caller won the race,
	// nil when the payment is already terminal or unknown.
	MarkPaid(ctx context.Context, tx *sql.Tx, sessionID string) (*domain.Payment, error)
	// SetStatus overwrites a non-terminal status only. Reports whether a
	// row actually changed.
	SetStatus(ctx context.Context, tx *sql.Tx, sessionID string, status domain.PaymentStatus) (bool, error)
	// FindStuckBefore lists non-terminal payments untouched since before.
	FindStuckBefore(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, buyer_id, coupon_id, session_id, amount, currency, status, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }, p *domain.Payment) error {
	return row.Scan(
		&p.ID,
		&p.BuyerID,
		&p.CouponID,
		&p.SessionID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *paymentRepo) Create(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	query := `INSERT INTO payments (id, buyer_id, coupon_id, session_id, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := node(r.db, tx).ExecContext(
		ctx, query,
		payment.ID, payment.BuyerID, payment.CouponID, payment.SessionID,
		payment.Amount, payment.Currency, payment.Status,
		payment.CreatedAt, payment.UpdatedAt,
	)
	return err
}

func (r *paymentRepo) FindBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = $1`
	row := r.db.QueryRowContext(ctx, query, sessionID)

	var p domain.Payment
	err := scanPayment(row, &p)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) MarkPaid(ctx context.Context, tx *sql.Tx, sessionID string) (*domain.Payment, error) {
	query := `
		UPDATE payments
		SET status = $2, updated_at = now()
		WHERE session_id = $1 AND status IN ($3, $4)
		RETURNING ` + paymentColumns
	row := node(r.db, tx).QueryRowContext(
		ctx, query,
		sessionID, domain.PaymentPaid, domain.PaymentInitiated, domain.PaymentPending,
	)

	var p domain.Payment
	err := scanPayment(row, &p)
	if err == sql.ErrNoRows {
		return nil, nil // lost the race, or unknown session
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) SetStatus(ctx context.Context, tx *sql.Tx, sessionID string, status domain.PaymentStatus) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2, updated_at = now()
		WHERE session_id = $1 AND status NOT IN ($3, $4, $5)
	`
	res, err := node(r.db, tx).ExecContext(
		ctx, query,
		sessionID, status,
		domain.PaymentPaid, domain.PaymentFailed, domain.PaymentExpired,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *paymentRepo) FindStuckBefore(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE status IN ($1, $2) AND updated_at < $3
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, domain.PaymentInitiated, domain.PaymentPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
