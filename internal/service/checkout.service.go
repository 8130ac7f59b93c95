package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coupon-escrow/internal/domain"
	"coupon-escrow/internal/gateway"
	"coupon-escrow/internal/logging"
	"coupon-escrow/internal/repo"
)

// CheckoutService is the payment reconciler: the single merge point for
// poll-driven and webhook-driven gateway status reports. A `paid` report
// creates the escrow transaction exactly once, no matter how many reporters
// race; the compare-and-set in PaymentRepo.MarkPaid picks the winner.
type CheckoutService interface {
	OpenCheckout(ctx context.Context, buyerID, couponID uuid.UUID, originURL string) (*CheckoutResult, error)
	// PollStatus is the buyer-driven status path. When the gateway is
	// unreachable it degrades to the last stored status instead of failing.
	PollStatus(ctx context.Context, sessionID string, callerID uuid.UUID) (*domain.Payment, error)
	// HandleWebhook is the out-of-band status path. Events that were
	// already applied return nil so the gateway stops redelivering.
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	// ReconcileSession re-polls one session against the gateway. Used by
	// the reconciliation worker for payments stuck in pending.
	ReconcileSession(ctx context.Context, sessionID string) error
}

type CheckoutResult struct {
	RedirectURL string `json:"url"`
	SessionID   string `json:"session_id"`
}

type checkoutService struct {
	db             *sql.DB
	payments       repo.PaymentRepo
	transactions   repo.TransactionRepo
	coupons        repo.CouponRepo
	gateway        gateway.Gateway
	commissionRate float64
	gatewayTimeout time.Duration
}

func NewCheckoutService(
	db *sql.DB,
	payments repo.PaymentRepo,
	transactions repo.TransactionRepo,
	coupons repo.CouponRepo,
	gw gateway.Gateway,
	commissionRate float64,
	gatewayTimeout time.Duration,
) CheckoutService {
	return &checkoutService{
		db:             db,
		payments:       payments,
		transactions:   transactions,
		coupons:        coupons,
		gateway:        gw,
		commissionRate: commissionRate,
		gatewayTimeout: gatewayTimeout,
	}
}

func (s *checkoutService) OpenCheckout(ctx context.Context, buyerID, couponID uuid.UUID, originURL string) (*CheckoutResult, error) {
	coupon, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, fmt.Errorf("coupon %s: %w", couponID, domain.ErrNotFound)
	}
	if coupon.Status != domain.CouponApproved {
		return nil, fmt.Errorf("coupon not available for purchase: %w", domain.ErrInvalidState)
	}
	if coupon.SellerID == buyerID {
		return nil, fmt.Errorf("cannot buy own coupon: %w", domain.ErrForbidden)
	}

	req := gateway.SessionRequest{
		Amount:     coupon.AskingPrice,
		Currency:   "usd",
		SuccessURL: originURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  originURL + "/payment/cancel",
		Metadata: map[string]string{
			"buyer_id":  buyerID.String(),
			"coupon_id": couponID.String(),
			"seller_id": coupon.SellerID.String(),
		},
	}

	// No store lock is held across the gateway call; the session id is
	// recorded only after the provider answers.
	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	session, err := s.gateway.CreateSession(gwCtx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:        uuid.New(),
		BuyerID:   buyerID,
		CouponID:  couponID,
		SessionID: session.SessionID,
		Amount:    coupon.AskingPrice,
		Currency:  "usd",
		Status:    domain.PaymentInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.Create(ctx, nil, payment); err != nil {
		return nil, err
	}

	logging.Info("checkout opened",
		zap.String("session_id", session.SessionID),
		zap.String("coupon_id", couponID.String()),
		zap.Float64("amount", coupon.AskingPrice),
	)

	return &CheckoutResult{RedirectURL: session.URL, SessionID: session.SessionID}, nil
}

func (s *checkoutService) PollStatus(ctx context.Context, sessionID string, callerID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.payments.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment for session %s: %w", sessionID, domain.ErrNotFound)
	}
	if payment.BuyerID != callerID {
		return nil, fmt.Errorf("payment belongs to another buyer: %w", domain.ErrForbidden)
	}
	if payment.Status.Terminal() {
		return payment, nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	status, err := s.gateway.GetStatus(gwCtx, sessionID)
	cancel()
	if err != nil {
		// Stale-but-available: the buyer gets the last stored status
		// rather than an error while the gateway is down.
		logging.Warn("gateway unreachable on poll, returning stored status",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return payment, nil
	}

	if err := s.reportStatus(ctx, sessionID, status, domain.SourcePoll); err != nil && !errors.Is(err, domain.ErrConflict) {
		return nil, err
	}

	return s.payments.FindBySessionID(ctx, sessionID)
}

func (s *checkoutService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	event, err := s.gateway.VerifyAndParseWebhook(body, signature)
	if err != nil {
		return err
	}

	payment, err := s.payments.FindBySessionID(ctx, event.SessionID)
	if err != nil {
		return err
	}
	if payment == nil {
		return fmt.Errorf("payment for session %s: %w", event.SessionID, domain.ErrNotFound)
	}

	logging.Info("gateway webhook",
		zap.String("session_id", event.SessionID),
		zap.String("event_type", event.EventType),
	)

	if event.EventType != gateway.EventSessionCompleted {
		return nil // unhandled event types are acked and dropped
	}

	err = s.reportStatus(ctx, event.SessionID, gateway.StatusPaid, domain.SourceWebhook)
	if errors.Is(err, domain.ErrConflict) {
		return nil // already applied; ack so the gateway stops retrying
	}
	return err
}

func (s *checkoutService) ReconcileSession(ctx context.Context, sessionID string) error {
	payment, err := s.payments.FindBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if payment == nil {
		return fmt.Errorf("payment for session %s: %w", sessionID, domain.ErrNotFound)
	}
	if payment.Status.Terminal() {
		return nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	status, err := s.gateway.GetStatus(gwCtx, sessionID)
	cancel()
	if err != nil {
		return err
	}

	err = s.reportStatus(ctx, sessionID, status, domain.SourcePoll)
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	return err
}

// reportStatus applies one gateway status report idempotently. The session
// must already exist as a payment; callers check that first.
func (s *checkoutService) reportStatus(ctx context.Context, sessionID string, status gateway.SessionStatus, source domain.ReportSource) error {
	switch status {
	case gateway.StatusPaid:
		return s.applyPaid(ctx, sessionID, source)
	case gateway.StatusFailed:
		_, err := s.payments.SetStatus(ctx, nil, sessionID, domain.PaymentFailed)
		return err
	case gateway.StatusExpired:
		_, err := s.payments.SetStatus(ctx, nil, sessionID, domain.PaymentExpired)
		return err
	default:
		_, err := s.payments.SetStatus(ctx, nil, sessionID, domain.PaymentPending)
		return err
	}
}

// applyPaid performs the paid transition and its downstream writes as one
// unit: payment -> paid, transaction created in escrow, coupon -> sold.
// Only the caller whose MarkPaid wins does any of this; losers no-op.
func (s *checkoutService) applyPaid(ctx context.Context, sessionID string, source domain.ReportSource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	payment, err := s.payments.MarkPaid(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if payment == nil {
		// A concurrent reporter already applied paid. Success-equivalent.
		return nil
	}

	coupon, err := s.coupons.FindByID(ctx, payment.CouponID)
	if err != nil {
		return err
	}
	if coupon == nil {
		return fmt.Errorf("coupon %s: %w", payment.CouponID, domain.ErrNotFound)
	}

	sold, err := s.coupons.MarkSold(ctx, tx, payment.CouponID)
	if err != nil {
		return err
	}
	if !sold {
		// Another session consumed the coupon first. Roll everything back
		// so the payment stays reconcilable.
		return fmt.Errorf("coupon %s already sold: %w", payment.CouponID, domain.ErrConflict)
	}

	transaction := &domain.Transaction{
		ID:                 uuid.New(),
		SessionID:          sessionID,
		BuyerID:            payment.BuyerID,
		SellerID:           coupon.SellerID,
		CouponID:           payment.CouponID,
		Amount:             payment.Amount,
		PlatformCommission: roundCents(payment.Amount * s.commissionRate),
		Status:             domain.TransactionEscrow,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.transactions.Create(ctx, tx, transaction); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logging.Info("payment reconciled to paid",
		zap.String("session_id", sessionID),
		zap.String("source", string(source)),
		zap.String("transaction_id", transaction.ID.String()),
		zap.Float64("amount", transaction.Amount),
		zap.Float64("commission", transaction.PlatformCommission),
	)
	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
