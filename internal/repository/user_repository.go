package repository

import (
	"context"

	"florist/internal/domain/model"
)

// 認証ミドルウェアと決済作成（顧客情報）から使う
type UserRepository interface {
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
