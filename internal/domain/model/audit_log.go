package model

import "time"

type AuditAction string

const (
	//決済トランザクションを作成した操作。
	AuditActionCreatePayment AuditAction = "CREATE_PAYMENT"
	//ゲートウェイからの通知を受け取った。
	AuditActionPaymentNotification AuditAction = "PAYMENT_NOTIFICATION"
	//ゲートウェイへ状態を問い合わせて同期した。
	AuditActionPaymentSync AuditAction = "PAYMENT_SYNC"
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
)

type AuditResourceType string

const (
	AuditResourceOrder AuditResourceType = "order"
)

// 監査ログ。
// ActorUserIDが0ならゲートウェイ/システムによる操作。
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;default:0;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   string            `gorm:"type:varchar(64);not null;index" json:"resource_id"`

	//生のトランザクションステータス
	TransactionStatus string `gorm:"type:varchar(40)" json:"transaction_status"`

	BeforeJSON string    `gorm:"type:text" json:"before_json"`
	AfterJSON  string    `gorm:"type:text" json:"after_json"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}
