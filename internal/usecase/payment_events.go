package usecase

import (
	"context"
	"time"

	"florist/internal/domain/model"
)

// 支払い状態が書き込まれたときに外へ流すイベント
type PaymentStatusChanged struct {
	OrderID               string              `json:"order_id"`
	GatewayOrderID        string              `json:"gateway_order_id"`
	Source                ReconcileSource     `json:"source"`
	TransactionStatus     string              `json:"transaction_status"`
	PreviousStatus        model.OrderStatus   `json:"previous_status"`
	PreviousPaymentStatus model.PaymentStatus `json:"previous_payment_status"`
	Status                model.OrderStatus   `json:"status"`
	PaymentStatus         model.PaymentStatus `json:"payment_status"`
	StockRestored         bool                `json:"stock_restored"`
	OccurredAt            time.Time           `json:"occurred_at"`
}

type PaymentEventPublisher interface {
	PublishPaymentStatusChanged(ctx context.Context, ev PaymentStatusChanged) error
}

// Kafka未設定時
type NopPaymentEventPublisher struct{}

func (NopPaymentEventPublisher) PublishPaymentStatusChanged(context.Context, PaymentStatusChanged) error {
	return nil
}
