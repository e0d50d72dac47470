package model

import (
	"time"

	"gorm.io/gorm"
)

// 在庫戻しに必要な列だけ。カタログ項目はストアフロント側が持つ
type Product struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Stock     int64          `gorm:"not null;check:stock >= 0" json:"stock"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
