package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"coupon-escrow/internal/domain"
)

type CouponRepo interface {
	Create(ctx context.Context, tx *sql.Tx, c *domain.Coupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error)
	List(ctx context.Context, status domain.CouponStatus, limit int) ([]domain.Coupon, error)
	// MarkSold flips approved -> sold exactly once. Reports whether this
	// caller performed the transition.
	MarkSold(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
}

type couponRepo struct {
	db *sql.DB
}

func NewCouponRepo(db *sql.DB) CouponRepo {
	return &couponRepo{db: db}
}

const couponColumns = `id, seller_id, brand_name, code, expiry_date, value, asking_price, status, created_at, updated_at`

func scanCoupon(row interface{ Scan(...any) error }, c *domain.Coupon) error {
	return row.Scan(
		&c.ID,
		&c.SellerID,
		&c.BrandName,
		&c.Code,
		&c.ExpiryDate,
		&c.Value,
		&c.AskingPrice,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func (r *couponRepo) Create(ctx context.Context, tx *sql.Tx, c *domain.Coupon) error {
	query := `INSERT INTO coupons (id, seller_id, brand_name, code, expiry_date, value, asking_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := node(r.db, tx).ExecContext(
		ctx, query,
		c.ID, c.SellerID, c.BrandName, c.Code, c.ExpiryDate,
		c.Value, c.AskingPrice, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *couponRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var c domain.Coupon
	err := scanCoupon(row, &c)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *couponRepo) List(ctx context.Context, status domain.CouponStatus, limit int) ([]domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []domain.Coupon
	for rows.Next() {
		var c domain.Coupon
		if err := scanCoupon(rows, &c); err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

func (r *couponRepo) MarkSold(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE coupons
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	res, err := node(r.db, tx).ExecContext(ctx, query, id, domain.CouponApproved, domain.CouponSold)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
