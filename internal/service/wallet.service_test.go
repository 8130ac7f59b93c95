package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-escrow/internal/domain"
)

func TestWithdrawDebitsBalance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	buyerID, sellerID, transaction := openPaidEscrow(t, e, 20.00)
	_, err := e.escrow.ConfirmTransaction(ctx, transaction.ID, buyerID)
	require.NoError(t, err)
	require.Equal(t, 18.00, walletBalance(t, sellerID))

	withdrawal, err := e.wallet.Withdraw(ctx, sellerID, 15.00, "upi:seller@bank")
	require.NoError(t, err)
	assert.Equal(t, 15.00, withdrawal.Amount)
	assert.Equal(t, 3.00, walletBalance(t, sellerID))
}

func TestWithdrawBelowMinimumRejected(t *testing.T) {
	e := newEnv(t)

	sellerID := createUser(t, domain.RoleSeller)
	_, err := e.wallet.Withdraw(context.Background(), sellerID, 5.00, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestWithdrawInsufficientBalanceRejected(t *testing.T) {
	e := newEnv(t)

	sellerID := createUser(t, domain.RoleSeller)
	_, err := e.wallet.Withdraw(context.Background(), sellerID, 50.00, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 0.00, walletBalance(t, sellerID))
}

func TestBalanceUnknownUserNotFound(t *testing.T) {
	e := newEnv(t)

	_, err := e.wallet.Balance(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
