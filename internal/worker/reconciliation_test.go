package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-escrow/internal/domain"
	"coupon-escrow/internal/logging"
)

type fakeStuckSource struct {
	stuck []domain.Payment
}

func (f *fakeStuckSource) FindStuckBefore(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	return f.stuck, nil
}

type fakeReconciler struct {
	mu         sync.Mutex
	reconciled []string
}

func (f *fakeReconciler) ReconcileSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciled = append(f.reconciled, sessionID)
	return nil
}

func (f *fakeReconciler) sessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reconciled...)
}

func TestWorkerReconcilesStuckPayments(t *testing.T) {
	require.NoError(t, logging.InitLogger())

	payments := &fakeStuckSource{stuck: []domain.Payment{
		{SessionID: "cs_stuck_1", Status: domain.PaymentPending},
		{SessionID: "cs_stuck_2", Status: domain.PaymentInitiated},
	}}
	checkout := &fakeReconciler{}

	rw := NewReconciliationWorker(payments, checkout, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rw.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return len(checkout.sessions()) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Contains(t, checkout.sessions(), "cs_stuck_1")
	assert.Contains(t, checkout.sessions(), "cs_stuck_2")
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	require.NoError(t, logging.InitLogger())

	rw := NewReconciliationWorker(&fakeStuckSource{}, &fakeReconciler{}, 5*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rw.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
