package repository

import (
	"context"

	"app/internal/domain/model"
)

type CategoryRepository interface {
	List(ctx context.Context, page int, limit int) ([]model.Category, int64, error)
	FindByID(ctx context.Context, categoryID int64) (model.Category, error)
	// 名前重複はErrConflict
	Create(ctx context.Context, c model.Category) (model.Category, error)
	Update(ctx context.Context, c model.Category) error
	Delete(ctx context.Context, categoryID int64) error
}
