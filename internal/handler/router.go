package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"coupon-escrow/internal/repo"
)

// NewRouter wires routes. The webhook endpoint is unauthenticated; its
// HMAC signature is the credential.
func NewRouter(h *Handler, users repo.UserRepo, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = corsOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.POST("/webhook/gateway", h.GatewayWebhook)
	api.GET("/coupons", h.ListCoupons)
	api.GET("/coupons/:id", h.GetCoupon)

	authed := api.Group("", AuthRequired(users))
	authed.POST("/checkout/session", h.OpenCheckout)
	authed.GET("/checkout/status/:session_id", h.PollStatus)
	authed.GET("/transactions/my", h.ListTransactions)
	authed.GET("/transactions/:id/coupon-code", h.CouponCode)
	authed.POST("/transactions/:id/confirm", h.ConfirmTransaction)
	authed.POST("/disputes", h.FileDispute)
	authed.GET("/wallet", h.GetWallet)
	authed.POST("/wallet/withdraw", h.Withdraw)

	admin := authed.Group("/admin", AdminRequired())
	admin.GET("/disputes", h.ListDisputes)
	admin.PATCH("/disputes/:id", h.ResolveDispute)

	return r
}
