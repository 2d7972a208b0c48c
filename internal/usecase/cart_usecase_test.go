package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func price(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestAddToCart_Success(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	p := model.Product{ID: 10, Name: "coffee", Price: price("4.50"), Stock: 5}
	productRepo.On("FindByID", mock.Anything, int64(10)).Return(p, nil)

	//スナップショットには現在価格が渡ること
	cartRepo.On("UpsertByUserAndProduct", mock.Anything, int64(1), int64(10), int64(2), p.Price).
		Return(model.CartItem{ID: 100, UserID: 1, ProductID: 10, Quantity: 2, PriceSnapshot: p.Price}, nil)

	out, err := uc.AddToCart(context.Background(), 1, usecase.AddCartInput{ProductID: 10, Quantity: 2})

	assert.NoError(t, err)
	assert.Equal(t, int64(100), out.ID)
	assert.True(t, out.PriceAtAdd.Equal(price("4.50")))
	assert.True(t, out.Subtotal.Equal(price("9.00")))
	cartRepo.AssertExpectations(t)
}

func TestAddToCart_InvalidQuantity(t *testing.T) {
	uc := usecase.NewCartUsecase(new(CartItemRepoMock), new(ProductRepoMock))

	for _, qty := range []int64{0, -1} {
		_, err := uc.AddToCart(context.Background(), 1, usecase.AddCartInput{ProductID: 10, Quantity: qty})

		he, ok := usecase.AsHTTPError(err)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Status)
		assert.Equal(t, usecase.CodeInvalidQuantity, he.Code)
	}
}

func TestAddToCart_ProductNotFound(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	productRepo.On("FindByID", mock.Anything, int64(99)).Return(model.Product{}, repo.ErrNotFound)

	_, err := uc.AddToCart(context.Background(), 1, usecase.AddCartInput{ProductID: 99, Quantity: 1})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Status)
	assert.Equal(t, usecase.CodeProductNotFound, he.Code)
	cartRepo.AssertNotCalled(t, "UpsertByUserAndProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 在庫チェックは「今回の追加数量」だけを見る。カート内の既存数量は足さない。
func TestAddToCart_StockChecksIncrementOnly(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	p := model.Product{ID: 10, Name: "coffee", Price: price("4.50"), Stock: 3}
	productRepo.On("FindByID", mock.Anything, int64(10)).Return(p, nil)

	//既にカートに3個入っていても、追加3個は在庫3で通る
	cartRepo.On("UpsertByUserAndProduct", mock.Anything, int64(1), int64(10), int64(3), p.Price).
		Return(model.CartItem{ID: 100, UserID: 1, ProductID: 10, Quantity: 6, PriceSnapshot: p.Price}, nil)

	out, err := uc.AddToCart(context.Background(), 1, usecase.AddCartInput{ProductID: 10, Quantity: 3})

	assert.NoError(t, err)
	assert.Equal(t, int64(6), out.Quantity)
}

func TestAddToCart_InsufficientStock(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	productRepo.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, Price: price("4.50"), Stock: 1}, nil)

	_, err := uc.AddToCart(context.Background(), 1, usecase.AddCartInput{ProductID: 10, Quantity: 2})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, usecase.CodeInsufficientStock, he.Code)
}

func TestGetCart_TotalsAndVanishedProduct(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	cartRepo.On("ListByUserID", mock.Anything, int64(1)).Return([]model.CartItem{
		{ID: 1, ProductID: 10, Quantity: 2, PriceSnapshot: price("4.50")},
		{ID: 2, ProductID: 20, Quantity: 1, PriceSnapshot: price("10.00")},
		{ID: 3, ProductID: 30, Quantity: 5, PriceSnapshot: price("1.00")},
	}, nil)

	productRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Product{ID: 10, Name: "coffee"}, nil)
	productRepo.On("FindByID", mock.Anything, int64(20)).Return(model.Product{ID: 20, Name: "mug"}, nil)
	//30は削除済み。明細はunavailableで残り、合計・点数には入らない。
	productRepo.On("FindByID", mock.Anything, int64(30)).Return(model.Product{}, repo.ErrNotFound)

	out, err := uc.GetCart(context.Background(), 1)

	assert.NoError(t, err)
	assert.Len(t, out.Items, 3)
	assert.True(t, out.Total.Equal(price("19.00")))
	assert.Equal(t, int64(3), out.ItemCount)

	//削除済み商品の明細は見える（DELETE /cart/:id で片付けられるように）
	gone := out.Items[2]
	assert.True(t, gone.Unavailable)
	assert.Equal(t, int64(3), gone.ID)
	assert.Equal(t, int64(30), gone.ProductID)
	assert.True(t, gone.PriceAtAdd.Equal(price("1.00")))
	assert.False(t, out.Items[0].Unavailable)
}

// 合計はスナップショット価格で計算される。現在のカタログ価格は無関係。
func TestGetCart_TotalUsesSnapshotPrice(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	cartRepo.On("ListByUserID", mock.Anything, int64(1)).Return([]model.CartItem{
		{ID: 1, ProductID: 10, Quantity: 2, PriceSnapshot: price("4.50")},
	}, nil)

	//値上げ後
	productRepo.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, Name: "coffee", Price: price("9.99")}, nil)

	out, err := uc.GetCart(context.Background(), 1)

	assert.NoError(t, err)
	assert.True(t, out.Total.Equal(price("9.00")))
	assert.True(t, out.Items[0].PriceAtAdd.Equal(price("4.50")))
}

// 数量変更はスナップショットを触らない
func TestUpdateCartItem_KeepsSnapshot(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	cartRepo.On("FindOwned", mock.Anything, int64(100), int64(1)).
		Return(model.CartItem{ID: 100, UserID: 1, ProductID: 10, Quantity: 1, PriceSnapshot: price("4.50")}, nil)
	productRepo.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, Name: "coffee", Price: price("9.99"), Stock: 10}, nil)
	cartRepo.On("UpdateQuantity", mock.Anything, int64(100), int64(3)).Return(nil)

	out, err := uc.UpdateCartItem(context.Background(), 1, 100, usecase.UpdateCartItemInput{Quantity: 3})

	assert.NoError(t, err)
	assert.Equal(t, int64(3), out.Quantity)
	//値上げされていてもスナップショットは変わらない
	assert.True(t, out.PriceAtAdd.Equal(price("4.50")))
}

// 他人の明細は404（403ではない）
func TestUpdateCartItem_OtherUsersItemIs404(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	productRepo := new(ProductRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, productRepo)

	cartRepo.On("FindOwned", mock.Anything, int64(100), int64(2)).
		Return(model.CartItem{}, repo.ErrNotFound)

	_, err := uc.UpdateCartItem(context.Background(), 2, 100, usecase.UpdateCartItemInput{Quantity: 1})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Status)
}

func TestRemoveFromCart_NotFound(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, new(ProductRepoMock))

	cartRepo.On("DeleteOwned", mock.Anything, int64(100), int64(1)).Return(repo.ErrNotFound)

	err := uc.RemoveFromCart(context.Background(), 1, 100)

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Status)
}

// 空のカートをclearしても成功する（冪等）
func TestClearCart_Idempotent(t *testing.T) {
	cartRepo := new(CartItemRepoMock)
	uc := usecase.NewCartUsecase(cartRepo, new(ProductRepoMock))

	cartRepo.On("DeleteAllByUserID", mock.Anything, int64(1)).Return(nil)

	assert.NoError(t, uc.ClearCart(context.Background(), 1))
	assert.NoError(t, uc.ClearCart(context.Background(), 1))
}
