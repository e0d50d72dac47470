package model

import "strings"

// ゲートウェイ由来の支払い状態。未知の値は大文字化して保持する
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusChallenge PaymentStatus = "CHALLENGE"
	PaymentStatusDenied    PaymentStatus = "DENIED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// 在庫戻し済みを意味する状態
var CompensatedPaymentStatuses = []PaymentStatus{
	PaymentStatusDenied,
	PaymentStatusExpired,
	PaymentStatusCancelled,
}

func NormalizePaymentStatus(raw string) PaymentStatus {
	return PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

func (s PaymentStatus) Normalize() PaymentStatus {
	return NormalizePaymentStatus(string(s))
}

func (s PaymentStatus) IsKnown() bool {
	switch s.Normalize() {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusChallenge,
		PaymentStatusDenied, PaymentStatusExpired, PaymentStatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) IsCompensated() bool {
	n := s.Normalize()
	for _, c := range CompensatedPaymentStatuses {
		if n == c {
			return true
		}
	}
	return false
}

func (s PaymentStatus) IsPending() bool {
	return s.Normalize() == PaymentStatusPending
}
