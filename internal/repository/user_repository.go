package repository

import (
	"context"

	"app/internal/domain/model"
)

type UserRepository interface {
	// email重複はErrConflict
	Create(ctx context.Context, user *model.User) error
	// 見つからなければ (nil, nil)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
