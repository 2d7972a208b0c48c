package repository

import (
	"context"

	"app/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
}

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (int64, error)

	// 他人の注文は「存在しない」扱い（ErrNotFound）
	FindOwned(ctx context.Context, orderID int64, userID int64) (model.Order, error)

	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	// from → next の条件付き更新。0件更新（先に別の遷移が入った）はErrConflict。
	UpdateStatus(ctx context.Context, orderID int64, from model.OrderStatus, next model.OrderStatus) error
}
