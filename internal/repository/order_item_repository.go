package repository

import (
	"context"

	"app/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)

	// 商品削除の制限チェックに使う（注文履歴に載っている商品は消せない）
	CountByProductID(ctx context.Context, productID int64) (int64, error)
}
