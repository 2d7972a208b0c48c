package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// price_snapshotはカート明細の値をそのままコピーする。
// 以後カタログの価格が変わっても絶対に書き換えない。
type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64           `gorm:"not null;index" json:"order_id"`
	ProductID           int64           `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	PriceSnapshot       decimal.Decimal `gorm:"type:numeric(10,2);not null;column:price_snapshot" json:"price_snapshot"`
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
