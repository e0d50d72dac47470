package repository

import (
	"context"
	"time"

	"florist/internal/domain/model"
)

// 指定したフィールドだけ更新する。nilは据え置き
type OrderUpdate struct {
	Status          *model.OrderStatus
	PaymentStatus   *model.PaymentStatus
	PaymentMethod   *string
	MidtransOrderID *string
	PaymentToken    *string
	PaymentURL      *string
	UpdatedAt       time.Time
}

// 決済ステータス遷移の書き込み。
// 条件付きUPDATEで、出荷以降の注文には適用しない。
type PaymentTransition struct {
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	PaymentMethod *string
	UpdatedAt     time.Time

	//在庫戻しの権利を取る。stock_restored_atが空の行だけ更新し、同時にセットする
	ClaimStockRestore bool
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	Update(ctx context.Context, orderID string, u OrderUpdate) (model.Order, error)

	//更新できたらtrue。条件に合わない（他で先に更新された）ならfalse
	ApplyPaymentTransition(ctx context.Context, orderID string, t PaymentTransition) (bool, error)

	//midtrans_order_idあり・payment_status=PENDING・CANCELLED以外を、
	//最後に問い合わせた時刻が古い順（未問い合わせが先頭）に
	ListPendingSync(ctx context.Context) ([]model.Order, error)

	//ポーリングで問い合わせた時刻を記録する
	MarkSyncAttempt(ctx context.Context, orderID string, at time.Time) error
}
