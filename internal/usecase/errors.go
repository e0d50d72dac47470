package usecase

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	//通知のorder_idがORDER-{id}-{digits}でない（400）
	ErrInvalidNotificationFormat = errors.New("invalid notification format")
	//404
	ErrOrderNotFound = errors.New("order not found")
	//ゲートウェイ問い合わせ失敗。注文は更新しない
	ErrGatewayQuery = errors.New("gateway query failed")
	//同じ注文を同期中。少し待って再試行
	ErrConcurrentSyncSkipped = errors.New("sync already in progress")
	//決済未作成の注文は同期できない
	ErrPaymentNotCreated = errors.New("payment not created")
	//署名検証が有効なときのみ（401）
	ErrInvalidSignature = errors.New("invalid signature")
)

type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 原因のsentinelを保ったままHTTPステータスを付ける
func WrapHTTPError(status int, cause error) error {
	return &HTTPError{
		Status:  status,
		Message: cause.Error(),
		Err:     cause,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

type StockFailure struct {
	ProductID int64
	Quantity  int64
	Err       error
}

// 在庫戻しの一部が失敗した。注文の支払い状態は保存済み
type StockCompensationError struct {
	OrderID  string
	Failures []StockFailure
}

func (e *StockCompensationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("product %d (+%d): %v", f.ProductID, f.Quantity, f.Err))
	}
	return fmt.Sprintf("stock compensation partial failure for order %s: %s", e.OrderID, strings.Join(parts, "; "))
}

func internalError(cause error) error {
	return &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Err: cause}
}
