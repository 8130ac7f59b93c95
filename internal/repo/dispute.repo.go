package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"coupon-escrow/internal/domain"
)

type DisputeRepo interface {
	Create(ctx context.Context, tx *sql.Tx, d *domain.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error)
	List(ctx context.Context) ([]domain.Dispute, error)
	// Resolve flips open/investigating -> resolved, recording the outcome
	// and resolved_at. Reports whether this caller performed the transition.
	Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, resolution domain.Resolution) (bool, error)
}

type disputeRepo struct {
	db *sql.DB
}

func NewDisputeRepo(db *sql.DB) DisputeRepo {
	return &disputeRepo{db: db}
}

const disputeColumns = `id, transaction_id, buyer_id, seller_id, reason, status, resolution, created_at, resolved_at`

func scanDispute(row interface{ Scan(...any) error }, d *domain.Dispute) error {
	return row.Scan(
		&d.ID,
		&d.TransactionID,
		&d.BuyerID,
		&d.SellerID,
		&d.Reason,
		&d.Status,
		&d.Resolution,
		&d.CreatedAt,
		&d.ResolvedAt,
	)
}

func (r *disputeRepo) Create(ctx context.Context, tx *sql.Tx, d *domain.Dispute) error {
	query := `INSERT INTO disputes (id, transaction_id, buyer_id, seller_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := node(r.db, tx).ExecContext(
		ctx, query,
		d.ID, d.TransactionID, d.BuyerID, d.SellerID, d.Reason, d.Status, d.CreatedAt,
	)
	return err
}

func (r *disputeRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var d domain.Dispute
	err := scanDispute(row, &d)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *disputeRepo) List(ctx context.Context) ([]domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []domain.Dispute
	for rows.Next() {
		var d domain.Dispute
		if err := scanDispute(rows, &d); err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

func (r *disputeRepo) Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, resolution domain.Resolution) (bool, error) {
	query := `
		UPDATE disputes
		SET status = $2, resolution = $3, resolved_at = now()
		WHERE id = $1 AND status IN ($4, $5)
	`
	res, err := node(r.db, tx).ExecContext(
		ctx, query,
		id, domain.DisputeResolved, resolution,
		domain.DisputeOpen, domain.DisputeInvestigating,
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
