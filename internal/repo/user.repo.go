package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"coupon-escrow/internal/domain"
)

type UserRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// FindBySessionToken resolves a live session token to its user.
	// Expired or unknown tokens return nil.
	FindBySessionToken(ctx context.Context, token string) (*domain.User, error)
	// Credit increments the wallet balance. Runs inside the caller's
	// transaction so the credit commits atomically with the status write.
	Credit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount float64) error
	// Debit decrements the wallet balance only when it covers the amount.
	// Reports whether the debit was applied.
	Debit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount float64) (bool, error)
	CreateWithdrawal(ctx context.Context, tx *sql.Tx, w *domain.Withdrawal) error
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, name, role, wallet_balance, created_at`

func scanUser(row interface{ Scan(...any) error }, u *domain.User) error {
	return row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.WalletBalance,
		&u.CreatedAt,
	)
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var u domain.User
	err := scanUser(row, &u)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) FindBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE id = (
			SELECT user_id FROM user_sessions
			WHERE token = $1 AND expires_at > now()
		)
	`
	row := r.db.QueryRowContext(ctx, query, token)

	var u domain.User
	err := scanUser(row, &u)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Credit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount float64) error {
	query := `UPDATE users SET wallet_balance = wallet_balance + $2 WHERE id = $1`
	_, err := node(r.db, tx).ExecContext(ctx, query, userID, amount)
	return err
}

func (r *userRepo) Debit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount float64) (bool, error) {
	query := `
		UPDATE users
		SET wallet_balance = wallet_balance - $2
		WHERE id = $1 AND wallet_balance >= $2
	`
	res, err := node(r.db, tx).ExecContext(ctx, query, userID, amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *userRepo) CreateWithdrawal(ctx context.Context, tx *sql.Tx, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (id, user_id, amount, payout_target, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := node(r.db, tx).ExecContext(
		ctx, query,
		w.ID, w.UserID, w.Amount, w.PayoutTarget, w.Status, w.CreatedAt,
	)
	return err
}
