package usecase

import "florist/internal/domain/model"

// 認証済みの呼び出し元
type Actor struct {
	UserID int64
	Role   model.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// 注文の持ち主か管理者だけ
func CanAccessOrder(actor Actor, order model.Order) bool {
	if actor.UserID <= 0 {
		return false
	}
	return actor.IsAdmin() || order.UserID == actor.UserID
}
