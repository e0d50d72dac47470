package model

// 価格はチェックアウト時点のスナップショット。決済時に商品から読み直さない
type OrderItem struct {
	ID                  int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             string   `gorm:"type:varchar(64);not null;index" json:"order_id"`
	ProductID           int64    `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string   `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64    `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64    `gorm:"not null" json:"quantity"`
	Product             *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}
