package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"florist/internal/config"
	"florist/internal/domain/model"
	"florist/internal/logger"
	repo "florist/internal/repository"
)

var errEmptyTransactionStatus = errors.New("empty transaction_status in gateway response")

type SyncCoordinatorConfig struct {
	Interval  time.Duration
	BatchSize int
	//ゲートウェイ問い合わせの間隔
	Delay time.Duration
	//テスト用。nilならタイマーで待つ
	Wait func(ctx context.Context, d time.Duration) error
}

type BatchResult struct {
	Pending   int `json:"pending"`
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

type SyncStatus struct {
	Enabled         bool           `json:"enabled"`
	IntervalSeconds int            `json:"interval_seconds"`
	BatchSize       int            `json:"batch_size"`
	Pending         int            `json:"pending"`
	LastRunAt       *time.Time     `json:"last_run_at"`
	LastBatch       *BatchResult   `json:"last_batch"`
	Recent          []SyncActivity `json:"recent"`
}

// SyncCoordinator は取りこぼした通知をゲートウェイへの問い合わせで補う。
// 同じ注文への同時問い合わせはしない。自動同期のループは常に1本だけ。
type SyncCoordinator struct {
	orders     repo.OrderRepository
	gateway    PaymentGateway
	reconciler *PaymentReconciler
	activity   SyncActivityLog
	clock      Clock
	logger     *zap.Logger
	wait       func(ctx context.Context, d time.Duration) error
	batchSize  int
	delay      time.Duration

	//Start/Stop/SetIntervalを直列にする
	lifecycle sync.Mutex

	mu        sync.Mutex
	inFlight  map[string]struct{}
	interval  time.Duration
	parent    context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	lastRunAt *time.Time
	lastBatch *BatchResult
}

func NewSyncCoordinator(
	orders repo.OrderRepository,
	gateway PaymentGateway,
	reconciler *PaymentReconciler,
	activity SyncActivityLog,
	clock Clock,
	log *zap.Logger,
	cfg SyncCoordinatorConfig,
) *SyncCoordinator {
	if activity == nil {
		activity = NewMemorySyncActivityLog(0)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	wait := cfg.Wait
	if wait == nil {
		wait = sleepContext
	}
	return &SyncCoordinator{
		orders:     orders,
		gateway:    gateway,
		reconciler: reconciler,
		activity:   activity,
		clock:      clock,
		logger:     log.With(zap.String("component", "payment_sync")),
		wait:       wait,
		batchSize:  cfg.BatchSize,
		delay:      cfg.Delay,
		inFlight:   make(map[string]struct{}),
		interval:   cfg.Interval,
	}
}

func (c *SyncCoordinator) tryAcquire(orderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inFlight[orderID]; ok {
		return false
	}
	c.inFlight[orderID] = struct{}{}
	return true
}

func (c *SyncCoordinator) release(orderID string) {
	c.mu.Lock()
	delete(c.inFlight, orderID)
	c.mu.Unlock()
}

// SyncOne は1件の注文をゲートウェイに問い合わせて反映する（手動同期）。
func (c *SyncCoordinator) SyncOne(ctx context.Context, orderID string) (ReconcileResult, error) {
	return c.syncOne(ctx, orderID, SourceManual)
}

func (c *SyncCoordinator) syncOne(ctx context.Context, orderID string, source ReconcileSource) (ReconcileResult, error) {
	if !c.tryAcquire(orderID) {
		c.record(ctx, orderID, source, SyncOutcomeSkipped, "already in progress")
		return ReconcileResult{}, WrapHTTPError(http.StatusConflict, ErrConcurrentSyncSkipped)
	}
	defer c.release(orderID)

	//問い合わせを始めたら途中で止めない
	ctx = context.WithoutCancel(ctx)
	log := c.logger.With(zap.String("order", logger.OrderIDPrefix(orderID)), zap.String("source", string(source)))

	order, err := c.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		c.record(ctx, orderID, source, SyncOutcomeFailed, "order not found")
		return ReconcileResult{}, WrapHTTPError(http.StatusNotFound, ErrOrderNotFound)
	}
	if err != nil {
		c.record(ctx, orderID, source, SyncOutcomeFailed, "db error")
		return ReconcileResult{}, internalError(err)
	}

	gatewayOrderID := order.GatewayOrderID()
	if gatewayOrderID == "" {
		c.record(ctx, orderID, source, SyncOutcomeFailed, ErrPaymentNotCreated.Error())
		return ReconcileResult{}, WrapHTTPError(http.StatusBadRequest, ErrPaymentNotCreated)
	}

	//結果に関係なく問い合わせ順の後ろへ回す
	if err := c.orders.MarkSyncAttempt(ctx, orderID, c.clock.Now()); err != nil {
		log.Warn("mark sync attempt failed", zap.Error(err))
	}

	n, err := c.gateway.QueryTransactionStatus(ctx, gatewayOrderID)
	if err == nil && strings.TrimSpace(n.TransactionStatus) == "" {
		err = errEmptyTransactionStatus
	}
	if err != nil {
		log.Warn("gateway query failed", zap.String("midtrans_order_id", gatewayOrderID), zap.Error(err))
		c.record(ctx, orderID, source, SyncOutcomeFailed, "gateway query failed")
		return ReconcileResult{}, &HTTPError{Status: http.StatusBadGateway, Message: ErrGatewayQuery.Error(), Err: errors.Join(ErrGatewayQuery, err)}
	}

	res, err := c.reconciler.Apply(ctx, order, n.GatewayStatus(), source)
	if err != nil {
		if isStockCompensationError(err) {
			c.record(ctx, orderID, source, SyncOutcomeFailed, "stock compensation partial failure")
			return res, err
		}
		c.record(ctx, orderID, source, SyncOutcomeFailed, "db error")
		return res, internalError(err)
	}

	log.Info("payment synced",
		zap.String("transaction_status", n.TransactionStatus),
		zap.String("status", string(res.Status)),
		zap.String("payment_status", string(res.PaymentStatus)),
		zap.Bool("applied", res.Applied),
	)
	c.record(ctx, orderID, source, SyncOutcomeOK, string(res.PaymentStatus))
	return res, nil
}

// SyncPending は同期待ちの注文を、最後の問い合わせが古い順にbatchSize件まで1件ずつ処理する。
// 問い合わせた注文は次のサイクルで後ろに回る。
// 個別の失敗はログに残してバッチは続ける。
func (c *SyncCoordinator) SyncPending(ctx context.Context) (BatchResult, error) {
	orders, err := c.orders.ListPendingSync(ctx)
	if err != nil {
		return BatchResult{}, internalError(err)
	}

	eligible := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if isSyncEligible(o) {
			eligible = append(eligible, o)
		}
	}

	result := BatchResult{Pending: len(eligible)}
	batch := eligible
	if len(batch) > c.batchSize {
		batch = batch[:c.batchSize]
	}

	for i, o := range batch {
		if i > 0 && c.delay > 0 {
			if err := c.wait(ctx, c.delay); err != nil {
				break
			}
		}
		result.Attempted++

		_, err := c.syncOne(ctx, o.ID, SourcePoll)
		switch {
		case err == nil:
			result.Succeeded++
		case errors.Is(err, ErrConcurrentSyncSkipped):
			result.Skipped++
		default:
			result.Failed++
			c.logger.Warn("order sync failed",
				zap.String("order", logger.OrderIDPrefix(o.ID)),
				zap.Error(err),
			)
		}
	}

	now := c.clock.Now()
	c.mu.Lock()
	c.lastRunAt = &now
	c.lastBatch = &result
	c.mu.Unlock()

	c.logger.Info("payment sync batch finished",
		zap.Int("pending", result.Pending),
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func isSyncEligible(o model.Order) bool {
	return o.GatewayOrderID() != "" &&
		o.PaymentStatus.IsPending() &&
		o.Status != model.OrderStatusCancelled
}

// Start は自動同期を有効にする。すぐに1回走らせてから次を予約する。
// 既存のループは先に止める。
func (c *SyncCoordinator) Start(ctx context.Context) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.stopLocked()
	c.startLocked(ctx)
}

func (c *SyncCoordinator) startLocked(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	c.mu.Lock()
	c.parent = parent
	c.cancel = cancel
	c.done = done
	interval := c.interval
	c.mu.Unlock()

	c.logger.Info("auto sync started", zap.Duration("interval", interval))
	go c.loop(ctx, done)
}

// Stop は自動同期を止める。実行中の1件は最後まで走り、戻ったときにはループは終わっている。
func (c *SyncCoordinator) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.stopLocked() {
		c.logger.Info("auto sync stopped")
	}
}

func (c *SyncCoordinator) stopLocked() bool {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// SetInterval は自動同期の間隔を変える。動作中なら新しい間隔で再スタートする。
func (c *SyncCoordinator) SetInterval(d time.Duration) error {
	if err := config.ValidateSyncInterval(d); err != nil {
		return NewHTTPError(http.StatusBadRequest, err.Error())
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	old := c.interval
	c.interval = d
	parent := c.parent
	running := c.cancel != nil
	c.mu.Unlock()

	if old == d {
		return nil
	}
	c.logger.Info("auto sync interval changed", zap.Duration("from", old), zap.Duration("to", d))
	if running {
		c.stopLocked()
		c.startLocked(parent)
	}
	return nil
}

func (c *SyncCoordinator) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *SyncCoordinator) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

func (c *SyncCoordinator) Status(ctx context.Context, recent int) (SyncStatus, error) {
	orders, err := c.orders.ListPendingSync(ctx)
	if err != nil {
		return SyncStatus{}, internalError(err)
	}
	pending := 0
	for _, o := range orders {
		if isSyncEligible(o) {
			pending++
		}
	}

	activity, err := c.activity.Recent(ctx, recent)
	if err != nil {
		c.logger.Warn("read sync activity failed", zap.Error(err))
		activity = []SyncActivity{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return SyncStatus{
		Enabled:         c.cancel != nil,
		IntervalSeconds: int(c.interval / time.Second),
		BatchSize:       c.batchSize,
		Pending:         pending,
		LastRunAt:       c.lastRunAt,
		LastBatch:       c.lastBatch,
		Recent:          activity,
	}, nil
}

func (c *SyncCoordinator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := c.SyncPending(ctx); err != nil {
			c.logger.Warn("payment sync batch failed", zap.Error(err))
		}

		timer := time.NewTimer(c.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *SyncCoordinator) record(ctx context.Context, orderID string, source ReconcileSource, outcome SyncOutcome, msg string) {
	err := c.activity.Append(ctx, SyncActivity{
		At:      c.clock.Now(),
		OrderID: logger.OrderIDPrefix(orderID),
		Source:  source,
		Result:  outcome,
		Message: msg,
	})
	if err != nil {
		c.logger.Warn("sync activity write failed", zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
