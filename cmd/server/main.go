package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"coupon-escrow/internal/config"
	"coupon-escrow/internal/database"
	"coupon-escrow/internal/gateway"
	"coupon-escrow/internal/handler"
	"coupon-escrow/internal/logging"
	"coupon-escrow/internal/repo"
	"coupon-escrow/internal/service"
	"coupon-escrow/internal/worker"
)

func main() {
	if err := logging.InitLogger(); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logging.Sync()

	cfg := config.Load()

	dbService, err := database.New(cfg)
	if err != nil {
		logging.Fatal("failed to open database", zap.Error(err))
	}
	defer dbService.Close()
	db := dbService.DB()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		logging.Fatal("failed to apply schema", zap.Error(err))
	}

	paymentRepo := repo.NewPaymentRepo(db)
	transactionRepo := repo.NewTransactionRepo(db)
	couponRepo := repo.NewCouponRepo(db)
	disputeRepo := repo.NewDisputeRepo(db)
	userRepo := repo.NewUserRepo(db)

	var gw gateway.Gateway
	if cfg.GatewayBaseURL != "" {
		gw = gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayWebhookSecret, cfg.GatewayTimeout)
	} else {
		// Local runs without a provider configured.
		logging.Warn("GATEWAY_BASE_URL not set, using in-memory mock gateway")
		gw = gateway.NewMockGateway(cfg.GatewayWebhookSecret)
	}

	checkoutService := service.NewCheckoutService(db, paymentRepo, transactionRepo, couponRepo, gw, cfg.CommissionRate, cfg.GatewayTimeout)
	escrowService := service.NewEscrowService(db, transactionRepo, couponRepo, userRepo)
	disputeService := service.NewDisputeService(db, disputeRepo, transactionRepo, userRepo)
	walletService := service.NewWalletService(db, userRepo)

	reconciler := worker.NewReconciliationWorker(paymentRepo, checkoutService, cfg.ReconcileInterval, cfg.StuckAfter)
	go reconciler.Run(ctx)

	h := handler.New(dbService, checkoutService, escrowService, disputeService, walletService, couponRepo)
	router := handler.NewRouter(h, userRepo, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("server shutdown failed", zap.Error(err))
	}
}
