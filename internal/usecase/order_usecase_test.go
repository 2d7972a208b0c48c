package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type orderTestEnv struct {
	cartRepo      *CartItemRepoMock
	productRepo   *ProductRepoMock
	orderRepo     *OrderRepoMock
	orderItemRepo *OrderItemRepoMock
	inventoryRepo *InventoryRepoMock
	tx            *FakeTxManager
	uc            *usecase.OrderUsecase
}

func newOrderTestEnv() *orderTestEnv {
	env := &orderTestEnv{
		cartRepo:      new(CartItemRepoMock),
		productRepo:   new(ProductRepoMock),
		orderRepo:     new(OrderRepoMock),
		orderItemRepo: new(OrderItemRepoMock),
		inventoryRepo: new(InventoryRepoMock),
	}
	env.tx = NewFakeTxManager(
		env.orderRepo, env.orderItemRepo, env.cartRepo,
		env.inventoryRepo, env.productRepo, new(AuditLogRepoMock),
	)
	env.uc = usecase.NewOrderUsecase(env.tx, env.cartRepo, env.productRepo, env.orderRepo, env.orderItemRepo)
	return env
}

func TestPlaceOrder_Success(t *testing.T) {
	env := newOrderTestEnv()

	env.cartRepo.On("ListByUserID", mock.Anything, int64(1)).Return([]model.CartItem{
		{ID: 1, ProductID: 10, Quantity: 2, PriceSnapshot: price("10.00")},
		{ID: 2, ProductID: 20, Quantity: 1, PriceSnapshot: price("15.00")},
	}, nil)

	env.productRepo.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, Name: "coffee", Price: price("12.00"), Stock: 5}, nil)
	env.productRepo.On("FindByID", mock.Anything, int64(20)).
		Return(model.Product{ID: 20, Name: "mug", Price: price("15.00"), Stock: 1}, nil)

	env.orderRepo.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		//合計はスナップショット価格（10.00*2 + 15.00）。現在価格12.00は使わない。
		return o.UserID == 1 && o.Total.Equal(price("35.00")) && o.Status == model.OrderStatusPending
	})).Return(int64(500), nil)

	env.orderItemRepo.On("CreateBulk", mock.Anything, int64(500), mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 2 &&
			items[0].PriceSnapshot.Equal(price("10.00")) &&
			items[0].ProductNameSnapshot == "coffee"
	})).Return(nil)

	env.inventoryRepo.On("DecreaseStockIfEnough", mock.Anything, int64(10), int64(2)).Return(true, nil)
	env.inventoryRepo.On("DecreaseStockIfEnough", mock.Anything, int64(20), int64(1)).Return(true, nil)

	env.cartRepo.On("DeleteAllByUserID", mock.Anything, int64(1)).Return(nil)

	out, err := env.uc.PlaceOrder(context.Background(), 1)

	assert.NoError(t, err)
	assert.Equal(t, int64(500), out.ID)
	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	assert.True(t, out.Total.Equal(price("35.00")))
	assert.Len(t, out.Items, 2)
	assert.True(t, out.Items[0].PriceAtTime.Equal(price("10.00")))
	env.cartRepo.AssertExpectations(t)
	env.inventoryRepo.AssertExpectations(t)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	env := newOrderTestEnv()

	env.cartRepo.On("ListByUserID", mock.Anything, int64(1)).Return([]model.CartItem{}, nil)

	_, err := env.uc.PlaceOrder(context.Background(), 1)

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
	assert.Equal(t, usecase.CodeEmptyCart, he.Code)
	//トランザクションは開かれない
	env.orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlaceOrder_ProductVanished(t *testing.T) {
	env := newOrderTestEnv()

	env.cartRepo.On("ListByUserID", mock.Anything, int64(1)).Return([]model.CartItem{
		{ID: 1, ProductID: 10, Quantity: 1, PriceSnapshot: price("4.50")},
	}, nil)
	env.productRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Product{}, repo.ErrNotFound)

	_, err := env.uc.PlaceOrder(context.Background(), 1)

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, usecase.CodeProductUnavailable, he.Code)
	env.orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlaceOrder_InsufficientStockBeforeTx(t *testing.T) {
	env := newOrderTestEnv()

	env.cartRepo.On("ListByUserID", mock.Anything, int64(1)).Return([]model.CartItem{
		{ID: 1, ProductID: 10, Quantity: 3, PriceSnapshot: price("4.50")},
	}, nil)
	env.productRepo.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, Name: "coffee", Stock: 2}, nil)

	_, err := env.uc.PlaceOrder(context.Background(), 1)

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, usecase.CodeInsufficientStock, he.Code)
}

// 事前チェックは通ったが、tx内の条件付き減算で他の注文に負けたケース。
// 注文全体が失敗し、カートは消されない。
func TestPlaceOrder_ConcurrentDecrementLoss_RollsBack(t *testing.T) {
	env := newOrderTestEnv()

	env.cartRepo.On("ListByUserID", mock.Anything, int64(1)).Return([]model.CartItem{
		{ID: 1, ProductID: 10, Quantity: 1, PriceSnapshot: price("4.50")},
		{ID: 2, ProductID: 20, Quantity: 1, PriceSnapshot: price("10.00")},
	}, nil)

	env.productRepo.On("FindByID", mock.Anything, int64(10)).
		Return(model.Product{ID: 10, Name: "coffee", Stock: 1}, nil)
	env.productRepo.On("FindByID", mock.Anything, int64(20)).
		Return(model.Product{ID: 20, Name: "mug", Stock: 1}, nil)

	env.orderRepo.On("Create", mock.Anything, mock.Anything).Return(int64(500), nil)
	env.orderItemRepo.On("CreateBulk", mock.Anything, int64(500), mock.Anything).Return(nil)

	//1品目は取れたが2品目で負ける
	env.inventoryRepo.On("DecreaseStockIfEnough", mock.Anything, int64(10), int64(1)).Return(true, nil)
	env.inventoryRepo.On("DecreaseStockIfEnough", mock.Anything, int64(20), int64(1)).Return(false, nil)

	_, err := env.uc.PlaceOrder(context.Background(), 1)

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, usecase.CodeInsufficientStock, he.Code)
	assert.Equal(t, 1, env.tx.RollbackCount)
	env.cartRepo.AssertNotCalled(t, "DeleteAllByUserID", mock.Anything, mock.Anything)
}

func TestGetMyOrderDetail_OtherUsersOrderIs404(t *testing.T) {
	env := newOrderTestEnv()

	env.orderRepo.On("FindOwned", mock.Anything, int64(500), int64(2)).
		Return(model.Order{}, repo.ErrNotFound)

	_, err := env.uc.GetMyOrderDetail(context.Background(), 2, 500)

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Status)
}

// 商品が削除されていても、スナップショットだけで明細が出る
func TestGetMyOrderDetail_SnapshotSurvivesProductDeletion(t *testing.T) {
	env := newOrderTestEnv()

	env.orderRepo.On("FindOwned", mock.Anything, int64(500), int64(1)).
		Return(model.Order{ID: 500, UserID: 1, Total: price("4.50"), Status: model.OrderStatusPending}, nil)
	env.orderItemRepo.On("ListByOrderID", mock.Anything, int64(500)).Return([]model.OrderItem{
		{ID: 1, OrderID: 500, ProductID: 10, ProductNameSnapshot: "coffee", Quantity: 1, PriceSnapshot: price("4.50")},
	}, nil)
	env.productRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Product{}, repo.ErrNotFound)

	out, err := env.uc.GetMyOrderDetail(context.Background(), 1, 500)

	assert.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.Equal(t, "coffee", out.Items[0].Product.Name)
	assert.True(t, out.Items[0].PriceAtTime.Equal(price("4.50")))
}

func TestListMyOrders_Pagination(t *testing.T) {
	env := newOrderTestEnv()

	env.orderRepo.On("ListByUserID", mock.Anything, int64(1), 2, 10).
		Return([]model.Order{{ID: 500, UserID: 1, Total: price("4.50")}}, int64(11), nil)
	env.orderItemRepo.On("ListByOrderID", mock.Anything, int64(500)).Return([]model.OrderItem{}, nil)

	out, err := env.uc.ListMyOrders(context.Background(), 1, 2, 10)

	assert.NoError(t, err)
	assert.Equal(t, int64(11), out.Total)
	assert.Equal(t, 2, out.Page)
	assert.Len(t, out.Items, 1)
}
