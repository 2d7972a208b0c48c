package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの明細。1ユーザー×1商品につき1行（再追加は数量加算）。
// price_snapshotは追加時点の単価。再追加のたびに現在価格で上書きされるが、
// 数量変更（PATCH）では触らない。
type CartItem struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"user_id"`
	ProductID     int64           `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"product_id"`
	Quantity      int64           `gorm:"not null" json:"quantity"`
	PriceSnapshot decimal.Decimal `gorm:"type:numeric(10,2);not null;column:price_snapshot" json:"price_snapshot"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
