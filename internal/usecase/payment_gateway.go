package usecase

import (
	"context"
	"time"

	"florist/internal/domain/payment"
)

// ゲートウェイの通知ペイロード。問い合わせ結果も同じ形に揃える
type Notification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	GrossAmount       string `json:"gross_amount"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	TransactionID     string `json:"transaction_id"`
}

func (n Notification) GatewayStatus() payment.GatewayStatus {
	return payment.GatewayStatus{
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
		PaymentType:       n.PaymentType,
	}
}

type TransactionItem struct {
	ID       string
	Name     string
	Price    int64
	Quantity int64
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type CreateTransactionInput struct {
	//ORDER-{id}-{timestamp}
	OrderID     string
	GrossAmount int64
	Items       []TransactionItem
	Customer    Customer
	FinishURL   string
}

type CreateTransactionResult struct {
	Token       string
	RedirectURL string
}

type PaymentGateway interface {
	CreateTransaction(ctx context.Context, in CreateTransactionInput) (CreateTransactionResult, error)
	QueryTransactionStatus(ctx context.Context, gatewayOrderID string) (Notification, error)
}

// nilなら署名は検証しない
type NotificationVerifier interface {
	VerifyNotification(n Notification) bool
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
