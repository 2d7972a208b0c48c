package repository

import (
	"context"

	"app/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫が足りるときだけ減らす（足りなければfalse、部分適用なし）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（注文キャンセル）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 在庫の現在値を設定（管理者）
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
