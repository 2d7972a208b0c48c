package usecase

import (
	"context"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジック。
// カタログはProductRepository越しにしか見ない（具象ストレージ非依存）。
type CartUsecase struct {
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

type ProductSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// price_at_addは明細のスナップショット価格（追加時点の単価）。
// unavailableは商品が削除された明細。合計には入らないが、明細IDを
// 見せることでDELETE /cart/:id で消せるようにする。
type CartItemView struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	Product     ProductSummary  `json:"product"`
	Quantity    int64           `json:"quantity"`
	PriceAtAdd  decimal.Decimal `json:"price_at_add"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Unavailable bool            `json:"unavailable,omitempty"`
}

type CartView struct {
	Items     []CartItemView  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int64           `json:"item_count"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// AddToCart はカートに追加（同一商品は数量加算）。
// 既存行に足すときもスナップショットは現在価格で上書きする。
// 在庫チェックは今回の追加数量だけを見る（カート内の既存数量は足さない）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartItemView, error) {
	if userID <= 0 {
		return CartItemView{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartItemView{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartItemView{}, NewHTTPError(http.StatusBadRequest, CodeInvalidQuantity, "quantity must be at least 1")
	}

	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartItemView{}, NewHTTPError(http.StatusNotFound, CodeProductNotFound, "product not found")
	}
	if err != nil {
		return CartItemView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	if p.Stock < in.Quantity {
		return CartItemView{}, NewHTTPError(http.StatusBadRequest, CodeInsufficientStock, "insufficient stock")
	}

	item, err := u.cartItemRepo.UpsertByUserAndProduct(ctx, userID, in.ProductID, in.Quantity, p.Price)
	if err == repo.ErrConflict {
		//同じ商品が同時に追加された
		return CartItemView{}, NewHTTPError(http.StatusConflict, CodeConflict, "cart conflict, retry")
	}
	if err != nil {
		return CartItemView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return toCartItemView(item, p), nil
}

// GetCart はカート全体＋合計。読み取りのみ。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartView, error) {
	if userID <= 0 {
		return CartView{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	items, err := u.cartItemRepo.ListByUserID(ctx, userID)
	if err != nil {
		return CartView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	views := make([]CartItemView, 0, len(items))
	total := decimal.Zero
	var itemCount int64 = 0

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err == repo.ErrNotFound {
			// 消えた商品の明細はunavailableで見せる。合計・点数からは除外。
			v := toCartItemView(it, model.Product{ID: it.ProductID})
			v.Unavailable = true
			views = append(views, v)
			continue
		}
		if err != nil {
			return CartView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		v := toCartItemView(it, p)
		views = append(views, v)

		total = total.Add(v.Subtotal)
		itemCount += it.Quantity
	}

	return CartView{Items: views, Total: total, ItemCount: itemCount}, nil
}

// 数量変更。スナップショット価格は触らない（追加との非対称は仕様）。
// 他人の明細は404（403にしない。存在を漏らさないため）。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartItemView, error) {
	if userID <= 0 {
		return CartItemView{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartItemView{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}
	if in.Quantity < 1 {
		return CartItemView{}, NewHTTPError(http.StatusBadRequest, CodeInvalidQuantity, "quantity must be at least 1")
	}

	item, err := u.cartItemRepo.FindOwned(ctx, cartItemID, userID)
	if err == repo.ErrNotFound {
		return CartItemView{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "cart item not found")
	}
	if err != nil {
		return CartItemView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	//在庫の再チェック
	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if err == repo.ErrNotFound {
		return CartItemView{}, NewHTTPError(http.StatusBadRequest, CodeProductUnavailable, "product is no longer available")
	}
	if err != nil {
		return CartItemView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if p.Stock < in.Quantity {
		return CartItemView{}, NewHTTPError(http.StatusBadRequest, CodeInsufficientStock, "insufficient stock")
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if err == repo.ErrNotFound {
			return CartItemView{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "cart item not found")
		}
		return CartItemView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	item.Quantity = in.Quantity
	return toCartItemView(item, p), nil
}

// 明細削除。存在しない/他人のものは404。
func (u *CartUsecase) RemoveFromCart(ctx context.Context, userID int64, cartItemID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	err := u.cartItemRepo.DeleteOwned(ctx, cartItemID, userID)
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, CodeNotFound, "cart item not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return nil
}

// カートを空にする。空でも成功（冪等）。
func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	if err := u.cartItemRepo.DeleteAllByUserID(ctx, userID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return nil
}

func toCartItemView(it model.CartItem, p model.Product) CartItemView {
	return CartItemView{
		ID:        it.ID,
		ProductID: it.ProductID,
		Product: ProductSummary{
			ID:       p.ID,
			Name:     p.Name,
			ImageURL: p.ImageURL,
		},
		Quantity:   it.Quantity,
		PriceAtAdd: it.PriceSnapshot,
		Subtotal:   it.PriceSnapshot.Mul(decimal.NewFromInt(it.Quantity)),
	}
}
