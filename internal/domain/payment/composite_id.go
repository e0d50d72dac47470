package payment

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var ErrInvalidCompositeID = errors.New("invalid composite transaction id")

// ORDER-{orderId}-{digits}。orderId自体にハイフンが入ってもよい
var compositeIDPattern = regexp.MustCompile(`^ORDER-(.+)-(\d+)$`)

// 決済作成ごとに一意になるようミリ秒を使う
func NewCompositeID(orderID string, now time.Time) string {
	return fmt.Sprintf("ORDER-%s-%d", orderID, now.UnixMilli())
}

func ExtractOrderID(compositeID string) (string, error) {
	m := compositeIDPattern.FindStringSubmatch(compositeID)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCompositeID, compositeID)
	}
	return m[1], nil
}
