package repository

import (
	"context"

	"florist/internal/domain/model"
)

type OrderItemRepository interface {
	//明細と商品（在庫）を一緒に取る
	ListWithProducts(ctx context.Context, orderID string) ([]model.OrderItem, error)
}
