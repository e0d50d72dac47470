package repository

import "context"

type InventoryRepository interface {
	// 在庫戻し（決済失敗など）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
