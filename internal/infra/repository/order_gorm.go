package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"florist/internal/domain/model"
	repo "florist/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

var fulfilledStatuses = []string{
	string(model.OrderStatusShipped),
	string(model.OrderStatusDelivered),
	string(model.OrderStatusCompleted),
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) Update(ctx context.Context, orderID string, u repo.OrderUpdate) (model.Order, error) {
	values := map[string]any{"updated_at": u.UpdatedAt}
	if u.Status != nil {
		values["status"] = *u.Status
	}
	if u.PaymentStatus != nil {
		values["payment_status"] = u.PaymentStatus.Normalize()
	}
	if u.PaymentMethod != nil {
		values["payment_method"] = *u.PaymentMethod
	}
	if u.MidtransOrderID != nil {
		values["midtrans_order_id"] = *u.MidtransOrderID
	}
	if u.PaymentToken != nil {
		values["payment_token"] = *u.PaymentToken
	}
	if u.PaymentURL != nil {
		values["payment_url"] = *u.PaymentURL
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(values)
	if res.Error != nil {
		return model.Order{}, res.Error
	}
	if res.RowsAffected == 0 {
		return model.Order{}, repo.ErrNotFound
	}
	return r.FindByID(ctx, orderID)
}

func (r *OrderGormRepository) ApplyPaymentTransition(ctx context.Context, orderID string, t repo.PaymentTransition) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Where("status NOT IN ?", fulfilledStatuses)

	//取り消し済みをPENDINGへ戻さない
	if t.Status == model.OrderStatusPending {
		q = q.Where("status <> ?", model.OrderStatusCancelled)
	}

	values := map[string]any{
		"status":         t.Status,
		"payment_status": t.PaymentStatus.Normalize(),
		"updated_at":     t.UpdatedAt,
	}
	//在庫戻しの権利は行を書き換えた1人だけ
	if t.ClaimStockRestore {
		q = q.Where("stock_restored_at IS NULL")
		values["stock_restored_at"] = t.UpdatedAt
	}
	if t.PaymentMethod != nil {
		values["payment_method"] = *t.PaymentMethod
	}

	res := q.Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) ListPendingSync(ctx context.Context) ([]model.Order, error) {
	var items []model.Order
	err := r.db.WithContext(ctx).
		Where("midtrans_order_id IS NOT NULL AND midtrans_order_id <> ''").
		Where("UPPER(payment_status) = ?", strings.ToUpper(string(model.PaymentStatusPending))).
		Where("status <> ?", model.OrderStatusCancelled).
		Order("last_synced_at ASC NULLS FIRST").
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return []model.Order{}, err
	}
	return items, nil
}

func (r *OrderGormRepository) MarkSyncAttempt(ctx context.Context, orderID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("last_synced_at", at).Error
}
