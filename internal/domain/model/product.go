package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// stockは必ず条件付きUPDATEで減算する（マイナス在庫を作らない）
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Stock       int64           `gorm:"not null" json:"stock"`
	CategoryID  int64           `gorm:"not null;index" json:"category_id"`
	ImageURL    string          `gorm:"type:varchar(512)" json:"image_url"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}
