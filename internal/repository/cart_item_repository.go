package repository

import (
	"context"

	"app/internal/domain/model"

	"github.com/shopspring/decimal"
)

type CartItemRepository interface {
	// 作成時刻の昇順
	ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error)

	// 同一(user, product)は数量加算＋スナップショット上書き。
	// 結果の明細を返す。
	UpsertByUserAndProduct(ctx context.Context, userID int64, productID int64, addQty int64, priceSnapshot decimal.Decimal) (model.CartItem, error)

	// 他人の明細は「存在しない」扱い（ErrNotFound）
	FindOwned(ctx context.Context, cartItemID int64, userID int64) (model.CartItem, error)

	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteOwned(ctx context.Context, cartItemID int64, userID int64) error

	// 0件でも成功（冪等）
	DeleteAllByUserID(ctx context.Context, userID int64) error
}
