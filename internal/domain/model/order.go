package model

import (
	"strings"
	"time"
)

// 配送側のライフサイクル
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// 決済ゲートウェイから戻せない段階
func (s OrderStatus) IsFulfilled() bool {
	switch s {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCompleted:
		return true
	}
	return false
}

func ParseOrderStatus(raw string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return s, true
	}
	return "", false
}

type Order struct {
	ID     string      `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID int64       `gorm:"not null;index" json:"user_id"`
	Status OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//ゲートウェイ語彙（大文字）。未知の値もそのまま入る
	PaymentStatus PaymentStatus `gorm:"type:varchar(40);not null;default:'PENDING';index" json:"payment_status"`
	PaymentMethod *string       `gorm:"type:varchar(50)" json:"payment_method"`

	//ORDER-{id}-{timestamp}。決済作成ごとに採番
	MidtransOrderID *string `gorm:"type:varchar(128);uniqueIndex" json:"midtrans_order_id"`
	PaymentToken    *string `gorm:"type:varchar(255)" json:"-"`
	PaymentURL      *string `gorm:"type:text" json:"payment_url"`

	//在庫戻しを実行した時刻。一度セットしたら戻さない
	StockRestoredAt *time.Time `gorm:"index" json:"stock_restored_at"`
	//ポーリング同期で最後に問い合わせた時刻。NULLが先頭
	LastSyncedAt    *time.Time `gorm:"index" json:"last_synced_at"`

	Total     int64       `gorm:"not null;default:0" json:"total"`
	Items     []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"not null" json:"updated_at"`
}

func (o Order) GatewayOrderID() string {
	if o.MidtransOrderID == nil {
		return ""
	}
	return *o.MidtransOrderID
}

// 在庫戻し済みか。マーカー導入前の行はpaymentStatusで判断する
func (o Order) StockCompensated() bool {
	return o.StockRestoredAt != nil || o.PaymentStatus.IsCompensated()
}
