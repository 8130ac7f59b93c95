package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coupon-escrow/internal/domain"
	"coupon-escrow/internal/logging"
)

const stuckBatchSize = 100

// StuckPaymentSource lists non-terminal payments that have not been touched
// since a bound. Satisfied by repo.PaymentRepo.
type StuckPaymentSource interface {
	FindStuckBefore(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error)
}

// SessionReconciler re-polls one checkout session against the gateway.
// Satisfied by service.CheckoutService.
type SessionReconciler interface {
	ReconcileSession(ctx context.Context, sessionID string) error
}

// ReconciliationWorker sweeps payments stuck in initiated/pending past a
// bound and re-polls the gateway for each. Resiliency only: the poll and
// webhook paths stay the primary reporters, and the same idempotent
// transition applies here, so a webhook landing mid-sweep is harmless.
type ReconciliationWorker struct {
	payments StuckPaymentSource
	checkout SessionReconciler
	interval time.Duration
	stuckAge time.Duration
}

func NewReconciliationWorker(
	payments StuckPaymentSource,
	checkout SessionReconciler,
	interval time.Duration,
	stuckAge time.Duration,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		payments: payments,
		checkout: checkout,
		interval: interval,
		stuckAge: stuckAge,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	logging.Info("reconciliation worker started",
		zap.Duration("interval", rw.interval),
		zap.Duration("stuck_age", rw.stuckAge),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rw.process(ctx); err != nil {
				logging.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

func (rw *ReconciliationWorker) process(ctx context.Context) error {
	stuck, err := rw.payments.FindStuckBefore(ctx, time.Now().Add(-rw.stuckAge), stuckBatchSize)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	logging.Info("found stuck payments", zap.Int("count", len(stuck)))

	for _, payment := range stuck {
		if err := rw.checkout.ReconcileSession(ctx, payment.SessionID); err != nil {
			// Skip and retry on the next sweep.
			logging.Warn("failed to reconcile session",
				zap.String("session_id", payment.SessionID),
				zap.Error(err),
			)
		}
	}
	return nil
}
