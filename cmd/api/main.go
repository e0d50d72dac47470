package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"florist/internal/bootstrap"
	"florist/internal/config"
	"florist/internal/handler"
	"florist/internal/logger"
	"florist/internal/server"
)

func main() {
	config.LoadDotenv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.IsDev(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("bootstrap failed", zap.Error(err))
	}
	defer app.Close()

	e := server.New(zl)
	server.RegisterRoutes(e, cfg, app.Users, server.Handlers{
		Payment:     handler.NewPaymentHandler(app.Payment),
		PaymentSync: handler.NewPaymentSyncHandler(app.Sync),
		AdminOrder:  handler.NewAdminOrderHandler(app.AdminOrders),
	})

	//自動同期（PAYMENT_SYNC_ENABLED=falseなら管理APIから開始する）
	if cfg.Sync.Enabled {
		app.Sync.Start(context.WithoutCancel(ctx))
	}

	if err := server.Start(ctx, e, server.Addr(cfg.Port), zl); err != nil {
		zl.Error("server stopped", zap.Error(err))
	}
}
