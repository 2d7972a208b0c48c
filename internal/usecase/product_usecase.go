package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	tx            repo.TransactionManager
	productRepo   repo.ProductRepository
	categoryRepo  repo.CategoryRepository
	orderItemRepo repo.OrderItemRepository
}

func NewProductUsecase(
	tx repo.TransactionManager,
	productRepo repo.ProductRepository,
	categoryRepo repo.CategoryRepository,
	orderItemRepo repo.OrderItemRepository,
) *ProductUsecase {
	return &ProductUsecase{
		tx:            tx,
		productRepo:   productRepo,
		categoryRepo:  categoryRepo,
		orderItemRepo: orderItemRepo,
	}
}

type ProductListInput struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int64
	CategoryID  int64
	ImageURL    string
}

type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	CategoryID  *int64
	ImageURL    *string
}

type SetStockInput struct {
	Stock  int64
	Reason string
}

func (u *ProductUsecase) List(ctx context.Context, in ProductListInput) (ProductListOutput, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 20
	}
	switch in.Sort {
	case "", "price_asc", "price_desc", "newest":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid sort")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "min_price must not be negative")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "min_price exceeds max_price")
	}

	items, total, err := u.productRepo.List(ctx, repo.ProductListQuery{
		Page:       in.Page,
		Limit:      in.Limit,
		Q:          strings.TrimSpace(in.Q),
		CategoryID: in.CategoryID,
		MinPrice:   in.MinPrice,
		MaxPrice:   in.MaxPrice,
		Sort:       in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return ProductListOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

func (u *ProductUsecase) Get(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return model.Product{}, NewHTTPError(http.StatusNotFound, CodeProductNotFound, "product not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return p, nil
}

func (u *ProductUsecase) Create(ctx context.Context, in CreateProductInput) (model.Product, error) {
	if err := validateProductInput(in.Name, in.Price, in.Stock); err != nil {
		return model.Product{}, err
	}

	//カテゴリ実在チェック
	if _, err := u.categoryRepo.FindByID(ctx, in.CategoryID); err != nil {
		if err == repo.ErrNotFound {
			return model.Product{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "category not found")
		}
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		ImageURL:    in.ImageURL,
	})
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return p, nil
}

// Update は部分更新。在庫はここでは触らない（SetStock専用）。
func (u *ProductUsecase) Update(ctx context.Context, productID int64, in UpdateProductInput) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return model.Product{}, NewHTTPError(http.StatusNotFound, CodeProductNotFound, "product not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return model.Product{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "name must not be empty")
		}
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return model.Product{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "price must not be negative")
		}
		p.Price = *in.Price
	}
	if in.CategoryID != nil {
		if _, err := u.categoryRepo.FindByID(ctx, *in.CategoryID); err != nil {
			if err == repo.ErrNotFound {
				return model.Product{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "category not found")
			}
			return model.Product{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		p.CategoryID = *in.CategoryID
	}
	if in.ImageURL != nil {
		p.ImageURL = *in.ImageURL
	}

	if err := u.productRepo.Update(ctx, p); err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return p, nil
}

// Delete は論理削除。注文履歴に載っている商品は消せない（409）。
// カートに入っているだけなら消せる（チェックアウト時に検出される）。
// 参照カウントと削除の間にチェックアウトが割り込めるので、両方を
// 同一トランザクションで行う。
func (u *ProductUsecase) Delete(ctx context.Context, productID int64) error {
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, productID); err != nil {
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusNotFound, CodeProductNotFound, "product not found")
			}
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		n, err := r.OrderItems().CountByProductID(ctx, productID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if n > 0 {
			return NewHTTPError(http.StatusConflict, CodeConflict, "product is referenced by existing orders")
		}

		if err := r.Products().SoftDelete(ctx, productID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		return nil
	})
}

// SetStock は在庫の直接設定。設定・調整履歴・監査ログを
// 1トランザクションで書く。
func (u *ProductUsecase) SetStock(ctx context.Context, actorUserID int64, productID int64, in SetStockInput) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}
	if in.Stock < 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "stock must not be negative")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return model.Product{}, NewHTTPError(http.StatusNotFound, CodeProductNotFound, "product not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Inventory().SetStock(ctx, productID, in.Stock); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: actorUserID,
			Delta:       in.Stock - p.Stock,
			Reason:      in.Reason,
			CreatedAt:   time.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		before, _ := json.Marshal(map[string]int64{"stock": p.Stock})
		after, _ := json.Marshal(map[string]int64{"stock": in.Stock})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    time.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}

	p.Stock = in.Stock
	return p, nil
}

func validateProductInput(name string, price decimal.Decimal, stock int64) error {
	if strings.TrimSpace(name) == "" {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "name must not be empty")
	}
	if price.IsNegative() {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "price must not be negative")
	}
	if stock < 0 {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "stock must not be negative")
	}
	return nil
}
