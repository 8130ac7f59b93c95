package repo_test

import (
	"context"
	"database/sql"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"coupon-escrow/internal/database"
	"coupon-escrow/internal/domain"
	"coupon-escrow/internal/repo"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("coupon_escrow_repo_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if err := database.Migrate(ctx, testDB); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	code := m.Run()

	testDB.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %v", err)
	}
	os.Exit(code)
}

func seedPayment(t *testing.T, status domain.PaymentStatus) *domain.Payment {
	t.Helper()
	ctx := context.Background()

	buyerID := uuid.New()
	_, err := testDB.Exec(
		`INSERT INTO users (id, email, name) VALUES ($1, $2, 'Buyer')`,
		buyerID, buyerID.String()+"@example.com",
	)
	require.NoError(t, err)

	sellerID := uuid.New()
	_, err = testDB.Exec(
		`INSERT INTO users (id, email, name, role) VALUES ($1, $2, 'Seller', 'seller')`,
		sellerID, sellerID.String()+"@example.com",
	)
	require.NoError(t, err)

	couponID := uuid.New()
	_, err = testDB.Exec(
		`INSERT INTO coupons (id, seller_id, brand_name, code, expiry_date, value, asking_price, status)
		 VALUES ($1, $2, 'Acme', 'CODE-1234', '2027-12-31', 40, 20, 'approved')`,
		couponID, sellerID,
	)
	require.NoError(t, err)

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:        uuid.New(),
		BuyerID:   buyerID,
		CouponID:  couponID,
		SessionID: "cs_" + uuid.NewString(),
		Amount:    20.00,
		Currency:  "usd",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.NewPaymentRepo(testDB).Create(ctx, nil, payment))
	return payment
}

// Exactly one of many concurrent MarkPaid callers wins.
func TestMarkPaidSingleWinnerUnderConcurrency(t *testing.T) {
	payments := repo.NewPaymentRepo(testDB)
	payment := seedPayment(t, domain.PaymentInitiated)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan *domain.Payment, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := payments.MarkPaid(ctx, nil, payment.SessionID)
			require.NoError(t, err)
			if won != nil {
				wins <- won
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for range wins {
		winners++
	}
	assert.Equal(t, 1, winners)

	fresh, err := payments.FindBySessionID(ctx, payment.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, fresh.Status)
}

func TestMarkPaidUnknownSession(t *testing.T) {
	payments := repo.NewPaymentRepo(testDB)

	won, err := payments.MarkPaid(context.Background(), nil, "cs_missing")
	require.NoError(t, err)
	assert.Nil(t, won)
}

func TestSetStatusNeverOverwritesTerminal(t *testing.T) {
	payments := repo.NewPaymentRepo(testDB)
	payment := seedPayment(t, domain.PaymentInitiated)
	ctx := context.Background()

	won, err := payments.MarkPaid(ctx, nil, payment.SessionID)
	require.NoError(t, err)
	require.NotNil(t, won)

	for _, status := range []domain.PaymentStatus{
		domain.PaymentPending, domain.PaymentFailed, domain.PaymentExpired,
	} {
		changed, err := payments.SetStatus(ctx, nil, payment.SessionID, status)
		require.NoError(t, err)
		assert.False(t, changed, "terminal paid must not be overwritten by %s", status)
	}

	fresh, err := payments.FindBySessionID(ctx, payment.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, fresh.Status)
}

func TestSetStatusOverwritesNonTerminal(t *testing.T) {
	payments := repo.NewPaymentRepo(testDB)
	payment := seedPayment(t, domain.PaymentInitiated)
	ctx := context.Background()

	changed, err := payments.SetStatus(ctx, nil, payment.SessionID, domain.PaymentPending)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = payments.SetStatus(ctx, nil, payment.SessionID, domain.PaymentFailed)
	require.NoError(t, err)
	assert.True(t, changed)

	fresh, err := payments.FindBySessionID(ctx, payment.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, fresh.Status)
}

func TestFindStuckBefore(t *testing.T) {
	payments := repo.NewPaymentRepo(testDB)
	payment := seedPayment(t, domain.PaymentInitiated)
	ctx := context.Background()

	// Not stuck yet.
	stuck, err := payments.FindStuckBefore(ctx, time.Now().Add(-time.Hour), 100)
	require.NoError(t, err)
	for _, p := range stuck {
		assert.NotEqual(t, payment.SessionID, p.SessionID)
	}

	stuck, err = payments.FindStuckBefore(ctx, time.Now().Add(time.Hour), 100)
	require.NoError(t, err)
	found := false
	for _, p := range stuck {
		if p.SessionID == payment.SessionID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCouponMarkSoldOnce(t *testing.T) {
	coupons := repo.NewCouponRepo(testDB)
	payment := seedPayment(t, domain.PaymentInitiated)
	ctx := context.Background()

	sold, err := coupons.MarkSold(ctx, nil, payment.CouponID)
	require.NoError(t, err)
	assert.True(t, sold)

	sold, err = coupons.MarkSold(ctx, nil, payment.CouponID)
	require.NoError(t, err)
	assert.False(t, sold)
}

func TestWalletDebitGuard(t *testing.T) {
	users := repo.NewUserRepo(testDB)
	ctx := context.Background()

	userID := uuid.New()
	_, err := testDB.Exec(
		`INSERT INTO users (id, email, name, wallet_balance) VALUES ($1, $2, 'Seller', 30)`,
		userID, userID.String()+"@example.com",
	)
	require.NoError(t, err)

	ok, err := users.Debit(ctx, nil, userID, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = users.Debit(ctx, nil, userID, 30)
	require.NoError(t, err)
	assert.True(t, ok)

	user, err := users.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0.00, user.WalletBalance)
}

func TestSessionTokenExpiry(t *testing.T) {
	users := repo.NewUserRepo(testDB)
	ctx := context.Background()

	userID := uuid.New()
	_, err := testDB.Exec(
		`INSERT INTO users (id, email, name) VALUES ($1, $2, 'Buyer')`,
		userID, userID.String()+"@example.com",
	)
	require.NoError(t, err)

	_, err = testDB.Exec(
		`INSERT INTO user_sessions (token, user_id, expires_at) VALUES ('tok_live', $1, now() + interval '1 hour')`,
		userID,
	)
	require.NoError(t, err)
	_, err = testDB.Exec(
		`INSERT INTO user_sessions (token, user_id, expires_at) VALUES ('tok_dead', $1, now() - interval '1 hour')`,
		userID,
	)
	require.NoError(t, err)

	user, err := users.FindBySessionToken(ctx, "tok_live")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, userID, user.ID)

	user, err = users.FindBySessionToken(ctx, "tok_dead")
	require.NoError(t, err)
	assert.Nil(t, user)
}
