package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"florist/internal/domain/model"
	"florist/internal/domain/payment"
	"florist/internal/logger"
	repo "florist/internal/repository"
)

// 状態遷移のきっかけ
type ReconcileSource string

const (
	SourceWebhook ReconcileSource = "webhook"
	SourcePoll    ReconcileSource = "poll"
	SourceManual  ReconcileSource = "manual"
)

func (s ReconcileSource) auditAction() model.AuditAction {
	if s == SourceWebhook {
		return model.AuditActionPaymentNotification
	}
	return model.AuditActionPaymentSync
}

type ReconcileResult struct {
	OrderID               string              `json:"order_id"`
	TransactionStatus     string              `json:"transaction_status"`
	PreviousStatus        model.OrderStatus   `json:"previous_status"`
	PreviousPaymentStatus model.PaymentStatus `json:"previous_payment_status"`
	Status                model.OrderStatus   `json:"status"`
	PaymentStatus         model.PaymentStatus `json:"payment_status"`
	PaymentMethod         *string             `json:"payment_method"`
	//ストアに書き込んだか
	Applied       bool `json:"applied"`
	Frozen        bool `json:"frozen"`
	StockRestored bool `json:"stock_restored"`
}

// 通知と問い合わせの両方で使う遷移の適用。
// 書き込みはそれぞれ独立していて、どれも再実行して安全。
type PaymentReconciler struct {
	orders    repo.OrderRepository
	items     repo.OrderItemRepository
	inventory repo.InventoryRepository
	audit     repo.AuditLogRepository
	events    PaymentEventPublisher
	clock     Clock
	logger    *zap.Logger
}

func NewPaymentReconciler(
	orders repo.OrderRepository,
	items repo.OrderItemRepository,
	inventory repo.InventoryRepository,
	audit repo.AuditLogRepository,
	events PaymentEventPublisher,
	clock Clock,
	log *zap.Logger,
) *PaymentReconciler {
	if events == nil {
		events = NopPaymentEventPublisher{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentReconciler{
		orders:    orders,
		items:     items,
		inventory: inventory,
		audit:     audit,
		events:    events,
		clock:     clock,
		logger:    log,
	}
}

// Apply はゲートウェイステータスを注文に当てる。
// 在庫戻しの一部失敗は *StockCompensationError で返る（注文は保存済み）。
func (r *PaymentReconciler) Apply(ctx context.Context, order model.Order, gs payment.GatewayStatus, source ReconcileSource) (ReconcileResult, error) {
	log := r.logger.With(
		zap.String("order", logger.OrderIDPrefix(order.ID)),
		zap.String("source", string(source)),
		zap.String("transaction_status", gs.TransactionStatus),
	)

	items, err := r.items.ListWithProducts(ctx, order.ID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list order items: %w", err)
	}

	t := payment.Resolve(order, items, gs)
	res := ReconcileResult{
		OrderID:               order.ID,
		TransactionStatus:     gs.TransactionStatus,
		PreviousStatus:        order.Status,
		PreviousPaymentStatus: order.PaymentStatus,
		Status:                order.Status,
		PaymentStatus:         order.PaymentStatus,
		PaymentMethod:         order.PaymentMethod,
		Frozen:                t.Frozen,
	}

	if t.Ignored != "" {
		log.Info("gateway status ignored",
			zap.String("reason", string(t.Ignored)),
			zap.String("status", string(order.Status)),
			zap.String("payment_status", string(order.PaymentStatus)),
		)
	}

	if t.Frozen {
		log.Info("order already fulfilled, keeping status",
			zap.String("status", string(order.Status)),
			zap.String("payment_status", string(t.PaymentStatus)),
		)
	}

	if t.Applied {
		applied, err := r.persist(ctx, order.ID, t)
		if err != nil {
			return res, err
		}
		if applied {
			res.Applied = true
			res.Status = t.Status
			res.PaymentStatus = t.PaymentStatus
			res.PaymentMethod = t.PaymentMethod
		} else {
			//条件付きUPDATEで弾かれた。別の書き込みが先に遷移させている
			log.Info("transition superseded by concurrent update")
		}
	}

	var compErr error
	if res.Applied && t.RestoreStock {
		compErr = r.restoreStock(ctx, order.ID, t.Restorations)
		res.StockRestored = compErr == nil
	}

	r.writeAudit(ctx, order, res, source)

	if res.Applied {
		log.Info("payment status updated",
			zap.String("from_status", string(res.PreviousStatus)),
			zap.String("to_status", string(res.Status)),
			zap.String("payment_status", string(res.PaymentStatus)),
		)
		r.publish(ctx, order, res, source)
	}

	return res, compErr
}

func (r *PaymentReconciler) persist(ctx context.Context, orderID string, t payment.Transition) (bool, error) {
	now := r.clock.Now()

	if t.Frozen {
		ps := t.PaymentStatus
		if _, err := r.orders.Update(ctx, orderID, repo.OrderUpdate{PaymentStatus: &ps, UpdatedAt: now}); err != nil {
			return false, fmt.Errorf("update payment status: %w", err)
		}
		return true, nil
	}

	ok, err := r.orders.ApplyPaymentTransition(ctx, orderID, repo.PaymentTransition{
		Status:            t.Status,
		PaymentStatus:     t.PaymentStatus,
		PaymentMethod:     t.PaymentMethod,
		UpdatedAt:         now,
		ClaimStockRestore: t.RestoreStock,
	})
	if err != nil {
		return false, fmt.Errorf("apply payment transition: %w", err)
	}
	return ok, nil
}

// 明細ごとに独立して戻す。失敗は集めて最後にまとめて返す
func (r *PaymentReconciler) restoreStock(ctx context.Context, orderID string, rs []payment.StockRestoration) error {
	var failures []StockFailure
	for _, s := range rs {
		if err := r.inventory.IncreaseStock(ctx, s.ProductID, s.Quantity); err != nil {
			failures = append(failures, StockFailure{ProductID: s.ProductID, Quantity: s.Quantity, Err: err})
		}
	}
	if len(failures) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.ProductID)
	}
	r.logger.Error("stock compensation partial failure",
		zap.String("order", logger.OrderIDPrefix(orderID)),
		zap.Int64s("failed_product_ids", ids),
		zap.Int("restored", len(rs)-len(failures)),
	)
	return &StockCompensationError{OrderID: orderID, Failures: failures}
}

type auditSnapshot struct {
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

func (r *PaymentReconciler) writeAudit(ctx context.Context, order model.Order, res ReconcileResult, source ReconcileSource) {
	before, _ := json.Marshal(auditSnapshot{Status: res.PreviousStatus, PaymentStatus: res.PreviousPaymentStatus})
	after, _ := json.Marshal(auditSnapshot{Status: res.Status, PaymentStatus: res.PaymentStatus})

	err := r.audit.Create(ctx, model.AuditLog{
		Action:            source.auditAction(),
		ResourceType:      model.AuditResourceOrder,
		ResourceID:        order.ID,
		TransactionStatus: res.TransactionStatus,
		BeforeJSON:        string(before),
		AfterJSON:         string(after),
		CreatedAt:         r.clock.Now(),
	})
	//監査ログの失敗で遷移は巻き戻さない
	if err != nil {
		r.logger.Error("audit log write failed",
			zap.String("order", logger.OrderIDPrefix(order.ID)),
			zap.Error(err),
		)
	}
}

func (r *PaymentReconciler) publish(ctx context.Context, order model.Order, res ReconcileResult, source ReconcileSource) {
	err := r.events.PublishPaymentStatusChanged(ctx, PaymentStatusChanged{
		OrderID:               order.ID,
		GatewayOrderID:        order.GatewayOrderID(),
		Source:                source,
		TransactionStatus:     res.TransactionStatus,
		PreviousStatus:        res.PreviousStatus,
		PreviousPaymentStatus: res.PreviousPaymentStatus,
		Status:                res.Status,
		PaymentStatus:         res.PaymentStatus,
		StockRestored:         res.StockRestored,
		OccurredAt:            r.clock.Now(),
	})
	if err != nil {
		r.logger.Warn("publish payment event failed",
			zap.String("order", logger.OrderIDPrefix(order.ID)),
			zap.Error(err),
		)
	}
}

func isStockCompensationError(err error) bool {
	var ce *StockCompensationError
	return errors.As(err, &ce)
}
