// Package bootstrap はAPIとCLIで共通の依存関係を組み立てる。
package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"florist/internal/config"
	"florist/internal/infra/db"
	"florist/internal/infra/kafka"
	"florist/internal/infra/midtransgw"
	"florist/internal/infra/redisx"
	infraRepo "florist/internal/infra/repository"
	"florist/internal/repository"
	"florist/internal/usecase"
)

const eventProducerName = "florist-api"

type App struct {
	Config config.Config
	Logger *zap.Logger
	DB     *gorm.DB

	Users       repository.UserRepository
	Payment     *usecase.PaymentUsecase
	Sync        *usecase.SyncCoordinator
	AdminOrders *usecase.AdminOrderUsecase

	closers []func()
}

// Build はDB接続、外部クライアント、usecaseを順に作る。
// 途中で失敗したらそれまでに開いたものを閉じる。
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	gdb, err := db.Connect(cfg.PostgresDSN(), cfg.IsDev())
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	app.DB = gdb
	app.closers = append(app.closers, func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	orders := infraRepo.NewOrderGormRepository(gdb)
	items := infraRepo.NewOrderItemGormRepository(gdb)
	inventory := infraRepo.NewInventoryGormRepository(gdb)
	audit := infraRepo.NewAuditLogGormRepository(gdb)
	app.Users = infraRepo.NewUserGormRepository(gdb)

	gateway := midtransgw.New(cfg.Midtrans)
	var verifier usecase.NotificationVerifier
	if cfg.Midtrans.VerifySignature {
		verifier = gateway
	}

	events := app.eventPublisher()
	activity, err := app.activityLog(ctx)
	if err != nil {
		return nil, err
	}

	clock := usecase.SystemClock{}
	reconciler := usecase.NewPaymentReconciler(orders, items, inventory, audit, events, clock, log)

	app.Payment = usecase.NewPaymentUsecase(usecase.PaymentDeps{
		Orders:      orders,
		Items:       items,
		Users:       app.Users,
		Audit:       audit,
		Gateway:     gateway,
		Verifier:    verifier,
		Reconciler:  reconciler,
		Clock:       clock,
		Logger:      log,
		FrontendURL: cfg.FEURL,
	})
	app.Sync = usecase.NewSyncCoordinator(orders, gateway, reconciler, activity, clock, log, usecase.SyncCoordinatorConfig{
		Interval:  cfg.Sync.Interval,
		BatchSize: cfg.Sync.BatchSize,
		Delay:     cfg.Sync.Delay,
	})
	//自動同期のループは閉じる前に止める
	app.closers = append(app.closers, app.Sync.Stop)
	app.AdminOrders = usecase.NewAdminOrderUsecase(orders, audit, clock, log)

	return app, nil
}

// KAFKA_BROKERSが空ならイベントは流さない
func (a *App) eventPublisher() usecase.PaymentEventPublisher {
	if len(a.Config.KafkaBrokers) == 0 {
		return usecase.NopPaymentEventPublisher{}
	}
	p := kafka.NewProducer(a.Config.KafkaBrokers, a.Config.KafkaPaymentTopic, 0, a.Logger)
	p.Start()
	a.closers = append(a.closers, p.Close)
	a.Logger.Info("payment events enabled", zap.Strings("brokers", a.Config.KafkaBrokers), zap.String("topic", a.Config.KafkaPaymentTopic))
	return kafka.NewPaymentEvents(p, eventProducerName)
}

// REDIS_ADDRが空ならプロセス内のリングバッファ
func (a *App) activityLog(ctx context.Context) (usecase.SyncActivityLog, error) {
	if a.Config.RedisAddr == "" {
		return usecase.NewMemorySyncActivityLog(a.Config.SyncLogSize), nil
	}
	rdb := redisx.New(a.Config.RedisAddr)
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	if err := redisx.Ping(ctx, rdb); err != nil {
		return nil, err
	}
	return redisx.NewSyncActivityLog(goredis.Cmdable(rdb), a.Config.SyncLogSize), nil
}

// 開いた順の逆に閉じる
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
