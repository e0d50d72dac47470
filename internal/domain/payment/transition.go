// Package payment はゲートウェイの取引ステータスを注文の状態へ写す純粋なロジック。
package payment

import (
	"strings"

	"florist/internal/domain/model"
)

// ゲートウェイの取引ステータス語彙
const (
	TransactionCapture    = "capture"
	TransactionSettlement = "settlement"
	TransactionPending    = "pending"
	TransactionDeny       = "deny"
	TransactionExpire     = "expire"
	TransactionCancel     = "cancel"

	FraudChallenge = "challenge"
	FraudAccept    = "accept"
)

// 通知/問い合わせ結果のうち状態遷移に使う部分
type GatewayStatus struct {
	TransactionStatus string
	FraudStatus       string
	PaymentType       string
}

// 適用しなかった理由
type IgnoreReason string

const (
	IgnoreEmptyStatus     IgnoreReason = "empty_status"
	IgnoreReopenCancelled IgnoreReason = "reopen_cancelled"
)

type StockRestoration struct {
	ProductID int64
	Quantity  int64
}

// Resolveの結果。
// Applied=false のときは何も書き込まない。
type Transition struct {
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	PaymentMethod *string

	RestoreStock bool
	Restorations []StockRestoration

	//出荷以降の注文に届いた通知
	Frozen  bool
	Applied bool
	Ignored IgnoreReason
}

func (t Transition) StatusChanged(current model.Order) bool {
	return t.Status != current.Status
}

type target struct {
	status        model.OrderStatus
	keepStatus    bool
	paymentStatus model.PaymentStatus
	restore       bool
}

func mapGatewayStatus(gs GatewayStatus) target {
	tx := strings.ToLower(strings.TrimSpace(gs.TransactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(gs.FraudStatus))

	switch tx {
	case TransactionCapture:
		switch fraud {
		case FraudChallenge:
			return target{status: model.OrderStatusPending, paymentStatus: model.PaymentStatusChallenge}
		case FraudAccept:
			return target{status: model.OrderStatusProcessing, paymentStatus: model.PaymentStatusPaid}
		}
	case TransactionSettlement:
		return target{status: model.OrderStatusProcessing, paymentStatus: model.PaymentStatusPaid}
	case TransactionPending:
		return target{status: model.OrderStatusPending, paymentStatus: model.PaymentStatusPending}
	case TransactionDeny:
		return target{status: model.OrderStatusCancelled, paymentStatus: model.PaymentStatusDenied, restore: true}
	case TransactionExpire:
		return target{status: model.OrderStatusCancelled, paymentStatus: model.PaymentStatusExpired, restore: true}
	case TransactionCancel:
		return target{status: model.OrderStatusCancelled, paymentStatus: model.PaymentStatusCancelled, restore: true}
	}

	//未知のステータス（fraudが想定外のcaptureも含む）は大文字で素通し
	return target{keepStatus: true, paymentStatus: model.NormalizePaymentStatus(tx)}
}

// Resolve は現在の注文と明細にゲートウェイステータスを当てて次の状態を決める。
func Resolve(current model.Order, items []model.OrderItem, gs GatewayStatus) Transition {
	if strings.TrimSpace(gs.TransactionStatus) == "" {
		return unchanged(current, IgnoreEmptyStatus)
	}
	tg := mapGatewayStatus(gs)

	//終端ガード: 出荷以降はpaymentStatusの記録だけ
	if current.Status.IsFulfilled() {
		t := Transition{
			Status:        current.Status,
			PaymentStatus: tg.paymentStatus,
			PaymentMethod: current.PaymentMethod,
			Frozen:        true,
		}
		t.Applied = t.PaymentStatus != current.PaymentStatus.Normalize()
		return t
	}

	//取り消し済みの注文を遅れて届いたpending/challengeで開き直さない
	if current.Status == model.OrderStatusCancelled && !tg.keepStatus && tg.status == model.OrderStatusPending {
		return unchanged(current, IgnoreReopenCancelled)
	}

	t := Transition{
		Status:        tg.status,
		PaymentStatus: tg.paymentStatus,
		PaymentMethod: current.PaymentMethod,
		Applied:       true,
	}
	if tg.keepStatus {
		t.Status = current.Status
	}
	if pt := strings.TrimSpace(gs.PaymentType); pt != "" {
		t.PaymentMethod = &pt
	}

	//同じ注文で二度目の在庫戻しはしない
	if tg.restore && !current.StockCompensated() {
		t.RestoreStock = true
		t.Restorations = Restorations(items)
	}
	return t
}

func unchanged(current model.Order, reason IgnoreReason) Transition {
	return Transition{
		Status:        current.Status,
		PaymentStatus: current.PaymentStatus,
		PaymentMethod: current.PaymentMethod,
		Ignored:       reason,
	}
}

// 明細ごとに1件ずつ。数量0以下は除外する
func Restorations(items []model.OrderItem) []StockRestoration {
	out := make([]StockRestoration, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		out = append(out, StockRestoration{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
