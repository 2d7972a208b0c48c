package usecase

import (
	"context"
	"net/http"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type CategoryUsecase struct {
	categoryRepo repo.CategoryRepository
	productRepo  repo.ProductRepository
}

func NewCategoryUsecase(
	categoryRepo repo.CategoryRepository,
	productRepo repo.ProductRepository,
) *CategoryUsecase {
	return &CategoryUsecase{
		categoryRepo: categoryRepo,
		productRepo:  productRepo,
	}
}

type CategoryListOutput struct {
	Items []model.Category `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

type CategoryInput struct {
	Name        string
	Description string
}

func (u *CategoryUsecase) List(ctx context.Context, page int, limit int) (CategoryListOutput, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	items, total, err := u.categoryRepo.List(ctx, page, limit)
	if err != nil {
		return CategoryListOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return CategoryListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (u *CategoryUsecase) Get(ctx context.Context, categoryID int64) (model.Category, error) {
	if categoryID <= 0 {
		return model.Category{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	c, err := u.categoryRepo.FindByID(ctx, categoryID)
	if err == repo.ErrNotFound {
		return model.Category{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "category not found")
	}
	if err != nil {
		return model.Category{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return c, nil
}

func (u *CategoryUsecase) Create(ctx context.Context, in CategoryInput) (model.Category, error) {
	if strings.TrimSpace(in.Name) == "" {
		return model.Category{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "name must not be empty")
	}

	c, err := u.categoryRepo.Create(ctx, model.Category{
		Name:        in.Name,
		Description: in.Description,
	})
	if err == repo.ErrConflict {
		return model.Category{}, NewHTTPError(http.StatusConflict, CodeConflict, "category name already exists")
	}
	if err != nil {
		return model.Category{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return c, nil
}

func (u *CategoryUsecase) Update(ctx context.Context, categoryID int64, in CategoryInput) (model.Category, error) {
	if categoryID <= 0 {
		return model.Category{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.Category{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "name must not be empty")
	}

	c, err := u.categoryRepo.FindByID(ctx, categoryID)
	if err == repo.ErrNotFound {
		return model.Category{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "category not found")
	}
	if err != nil {
		return model.Category{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	c.Name = in.Name
	c.Description = in.Description

	err = u.categoryRepo.Update(ctx, c)
	if err == repo.ErrConflict {
		return model.Category{}, NewHTTPError(http.StatusConflict, CodeConflict, "category name already exists")
	}
	if err != nil {
		return model.Category{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return c, nil
}

// Delete はカテゴリ削除。商品が紐づいている間は消せない（409）。
func (u *CategoryUsecase) Delete(ctx context.Context, categoryID int64) error {
	if categoryID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	if _, err := u.categoryRepo.FindByID(ctx, categoryID); err != nil {
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, CodeNotFound, "category not found")
		}
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	n, err := u.productRepo.CountByCategoryID(ctx, categoryID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if n > 0 {
		return NewHTTPError(http.StatusConflict, CodeConflict, "category has products")
	}

	if err := u.categoryRepo.Delete(ctx, categoryID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return nil
}
