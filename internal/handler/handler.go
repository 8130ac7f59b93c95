package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"coupon-escrow/internal/database"
	"coupon-escrow/internal/domain"
	"coupon-escrow/internal/logging"
	"coupon-escrow/internal/repo"
	"coupon-escrow/internal/service"
)

// Handler is the thin HTTP veneer over the escrow core.
type Handler struct {
	db       database.Service
	checkout service.CheckoutService
	escrow   service.EscrowService
	disputes service.DisputeService
	wallet   service.WalletService
	coupons  repo.CouponRepo
}

func New(
	db database.Service,
	checkout service.CheckoutService,
	escrow service.EscrowService,
	disputes service.DisputeService,
	wallet service.WalletService,
	coupons repo.CouponRepo,
) *Handler {
	return &Handler{
		db:       db,
		checkout: checkout,
		escrow:   escrow,
		disputes: disputes,
		wallet:   wallet,
		coupons:  coupons,
	}
}

// writeError maps the domain error taxonomy to HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logging.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.db.Health(c.Request.Context()))
}

func (h *Handler) ListCoupons(c *gin.Context) {
	coupons, err := h.coupons.List(c.Request.Context(), domain.CouponApproved, 50)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]domain.Coupon, 0, len(coupons))
	for _, coupon := range coupons {
		coupon.Code = coupon.MaskedCode()
		out = append(out, coupon)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetCoupon(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coupon id"})
		return
	}

	coupon, err := h.coupons.FindByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if coupon == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "coupon not found"})
		return
	}

	coupon.Code = coupon.MaskedCode()
	c.JSON(http.StatusOK, coupon)
}

type openCheckoutRequest struct {
	CouponID  string `json:"coupon_id" binding:"required"`
	OriginURL string `json:"origin_url" binding:"required"`
}

func (h *Handler) OpenCheckout(c *gin.Context) {
	var req openCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	couponID, err := uuid.Parse(req.CouponID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coupon id"})
		return
	}

	result, err := h.checkout.OpenCheckout(c.Request.Context(), currentUser(c).ID, couponID, req.OriginURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) PollStatus(c *gin.Context) {
	payment, err := h.checkout.PollStatus(c.Request.Context(), c.Param("session_id"), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) GatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	err = h.checkout.HandleWebhook(c.Request.Context(), body, c.GetHeader("Gateway-Signature"))
	if err != nil {
		// Rejected here so the gateway's retry policy redelivers;
		// already-applied events came back as nil and ack below.
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	transactions, err := h.escrow.ListTransactions(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	c.JSON(http.StatusOK, transactions)
}

func (h *Handler) CouponCode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	reveal, err := h.escrow.CouponCode(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reveal)
}

func (h *Handler) ConfirmTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	payout, err := h.escrow.ConfirmTransaction(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction completed", "seller_payout": payout})
}

type fileDisputeRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
}

func (h *Handler) FileDispute(c *gin.Context) {
	var req fileDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	transactionID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	dispute, err := h.disputes.FileDispute(c.Request.Context(), transactionID, currentUser(c).ID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dispute)
}

func (h *Handler) ListDisputes(c *gin.Context) {
	disputes, err := h.disputes.ListDisputes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if disputes == nil {
		disputes = []domain.Dispute{}
	}
	c.JSON(http.StatusOK, disputes)
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

func (h *Handler) ResolveDispute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dispute id"})
		return
	}

	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.disputes.ResolveDispute(c.Request.Context(), id, domain.Resolution(req.Resolution)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dispute resolved"})
}

func (h *Handler) GetWallet(c *gin.Context) {
	user := currentUser(c)
	balance, err := h.wallet.Balance(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "wallet_balance": balance})
}

type withdrawRequest struct {
	Amount       float64 `json:"amount" binding:"required"`
	PayoutTarget string  `json:"payout_target"`
}

func (h *Handler) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	withdrawal, err := h.wallet.Withdraw(c.Request.Context(), currentUser(c).ID, req.Amount, req.PayoutTarget)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Withdrawal request submitted", "amount": withdrawal.Amount})
}
