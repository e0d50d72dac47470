package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"florist/internal/domain/model"
	"florist/internal/logger"
	repo "florist/internal/repository"
)

// 配送の前進だけ許す。戻しやキャンセルは決済側の遷移でのみ起きる
var fulfillmentNext = map[model.OrderStatus]model.OrderStatus{
	model.OrderStatusProcessing: model.OrderStatusShipped,
	model.OrderStatusShipped:    model.OrderStatusDelivered,
	model.OrderStatusDelivered:  model.OrderStatusCompleted,
}

type AdminOrderUsecase struct {
	orderRepo repo.OrderRepository
	auditRepo repo.AuditLogRepository
	clock     Clock
	logger    *zap.Logger
}

func NewAdminOrderUsecase(orderRepo repo.OrderRepository, auditRepo repo.AuditLogRepository, clock Clock, log *zap.Logger) *AdminOrderUsecase {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminOrderUsecase{orderRepo: orderRepo, auditRepo: auditRepo, clock: clock, logger: log}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// ステータス更新（PROCESSING→SHIPPED→DELIVERED→COMPLETED）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID string, in AdminUpdateOrderStatusInput) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus, ok := model.ParseOrderStatus(in.Status)
	if !ok {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	o, err := u.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, WrapHTTPError(http.StatusNotFound, ErrOrderNotFound)
	}
	if err != nil {
		return model.Order{}, internalError(err)
	}

	// すでに同じなら何もしない（200）
	if o.Status == newStatus {
		return o, nil
	}
	if next, ok := fulfillmentNext[o.Status]; !ok || next != newStatus {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "cannot change "+string(o.Status)+" order to "+string(newStatus))
	}
	if o.PaymentStatus.Normalize() != model.PaymentStatusPaid {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "order is not paid")
	}

	beforeStatus := string(o.Status)
	updated, err := u.orderRepo.Update(ctx, orderID, repo.OrderUpdate{Status: &newStatus, UpdatedAt: u.clock.Now()})
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, WrapHTTPError(http.StatusNotFound, ErrOrderNotFound)
	}
	if err != nil {
		return model.Order{}, internalError(err)
	}

	// ★監査ログ（UPDATE_ORDER_STATUS）
	beforeJSON := `{"status":"` + beforeStatus + `"}`
	afterJSON := `{"status":"` + string(newStatus) + `"}`
	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorAdminUserID,
		Action:       model.AuditActionUpdateOrderStatus,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   orderID,
		BeforeJSON:   beforeJSON,
		AfterJSON:    afterJSON,
		CreatedAt:    u.clock.Now(),
	}); err != nil {
		u.logger.Error("audit log write failed", zap.String("order", logger.OrderIDPrefix(orderID)), zap.Error(err))
	}

	u.logger.Info("order status updated",
		zap.String("order", logger.OrderIDPrefix(orderID)),
		zap.String("from_status", beforeStatus),
		zap.String("to_status", string(newStatus)),
		zap.Int64("actor_user_id", actorAdminUserID),
	)
	return updated, nil
}

// 注文1件の監査ログ（新しい順）
func (u *AdminOrderUsecase) ListAuditLogs(ctx context.Context, orderID string, limit int) ([]model.AuditLog, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if limit < 0 || limit > 200 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	rt := model.AuditResourceOrder
	logs, err := u.auditRepo.List(ctx, repo.AuditLogFilter{
		ResourceType: &rt,
		ResourceID:   &orderID,
		Limit:        limit,
	})
	if err != nil {
		return nil, internalError(err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}
