package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

// OrderUsecase はチェックアウトと注文照会。
// PlaceOrderが唯一の書き込み経路で、注文作成・明細作成・在庫減算・
// カート全消しを1トランザクションで行う。
type OrderUsecase struct {
	tx            repo.TransactionManager
	cartItemRepo  repo.CartItemRepository
	productRepo   repo.ProductRepository
	orderRepo     repo.OrderRepository
	orderItemRepo repo.OrderItemRepository
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
	orderRepo repo.OrderRepository,
	orderItemRepo repo.OrderItemRepository,
) *OrderUsecase {
	return &OrderUsecase{
		tx:            tx,
		cartItemRepo:  cartItemRepo,
		productRepo:   productRepo,
		orderRepo:     orderRepo,
		orderItemRepo: orderItemRepo,
	}
}

// price_at_timeは注文確定時に凍結した単価。以後変わらない。
type OrderItemView struct {
	ProductID   int64           `json:"product_id"`
	Product     ProductSummary  `json:"product"`
	Quantity    int64           `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderView struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	Items     []OrderItemView `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderListView struct {
	Items []OrderView `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// PlaceOrder はカートを注文に変換する。
//
//  1. カートを読む。空なら400（トランザクションは開かない）
//  2. 事前チェック：商品の存在と在庫を再確認（追加からの時間差対策）。
//     これはあくまで早期リターン用で、最終判定ではない。
//  3. 1トランザクション内で 注文作成 → 明細作成 → 条件付き在庫減算 →
//     カート全削除。減算の0件更新（＝在庫不足）で全体をロールバック。
//     同時チェックアウトはこの減算の行ロックで直列化され、負けた側が
//     きれいに失敗する。
//
// 冪等ではない：カートが空でない限り、呼ぶたびに新しい注文ができる。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64) (OrderView, error) {
	if userID <= 0 {
		return OrderView{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	lines, err := u.cartItemRepo.ListByUserID(ctx, userID)
	if err != nil {
		return OrderView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if len(lines) == 0 {
		return OrderView{}, NewHTTPError(http.StatusBadRequest, CodeEmptyCart, "cart is empty")
	}

	//事前チェック（書き込みはまだ何もしない）
	products := make(map[int64]model.Product, len(lines))
	for _, line := range lines {
		p, err := u.productRepo.FindByID(ctx, line.ProductID)
		if err == repo.ErrNotFound {
			return OrderView{}, NewHTTPError(http.StatusBadRequest, CodeProductUnavailable,
				fmt.Sprintf("product %d is no longer available", line.ProductID))
		}
		if err != nil {
			return OrderView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if p.Stock < line.Quantity {
			return OrderView{}, NewHTTPError(http.StatusBadRequest, CodeInsufficientStock,
				fmt.Sprintf("insufficient stock for %s", p.Name))
		}
		products[line.ProductID] = p
	}

	// 合計はカートのスナップショット価格から計算する。
	// カタログの現在価格は使わない。
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.PriceSnapshot.Mul(decimal.NewFromInt(line.Quantity)))
	}

	var out OrderView

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := time.Now()

		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:    userID,
			Total:     total,
			Status:    model.OrderStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		//明細はカートのスナップショットをそのままコピー
		orderItems := make([]model.OrderItem, 0, len(lines))
		for _, line := range lines {
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           line.ProductID,
				ProductNameSnapshot: products[line.ProductID].Name,
				Quantity:            line.Quantity,
				PriceSnapshot:       line.PriceSnapshot,
				CreatedAt:           now,
			})
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		// ここが在庫の最終判定。条件付きUPDATEが0件なら他の注文に
		// 先を越されているので、明細ごとでなく注文全体を失敗させる。
		for _, line := range lines {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusBadRequest, CodeInsufficientStock,
					fmt.Sprintf("insufficient stock for %s", products[line.ProductID].Name))
			}
		}

		// 成功時だけカートが空になる（失敗時はロールバックで残る）
		if err := r.CartItems().DeleteAllByUserID(ctx, userID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		out = toOrderView(model.Order{
			ID:        orderID,
			UserID:    userID,
			Total:     total,
			Status:    model.OrderStatusPending,
			CreatedAt: now,
		}, orderItems, products)
		return nil
	})

	if err != nil {
		return OrderView{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page int, limit int) (OrderListView, error) {
	if userID <= 0 {
		return OrderListView{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	orders, total, err := u.orderRepo.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return OrderListView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v, err := u.materializeOrder(ctx, o)
		if err != nil {
			return OrderListView{}, err
		}
		views = append(views, v)
	}

	return OrderListView{Items: views, Total: total, Page: page, Limit: limit}, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderView, error) {
	if userID <= 0 {
		return OrderView{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderView{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	//他人の注文は「存在しない扱い」
	o, err := u.orderRepo.FindOwned(ctx, orderID, userID)
	if err == repo.ErrNotFound {
		return OrderView{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "order not found")
	}
	if err != nil {
		return OrderView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return u.materializeOrder(ctx, o)
}

// 注文＋明細＋商品サマリをまとめる。商品が消えていても明細の
// スナップショット（名前・価格）だけで表示できる。
func (u *OrderUsecase) materializeOrder(ctx context.Context, o model.Order) (OrderView, error) {
	items, err := u.orderItemRepo.ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	products := make(map[int64]model.Product, len(items))
	for _, it := range items {
		if _, ok := products[it.ProductID]; ok {
			continue
		}
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err != nil {
			continue
		}
		products[it.ProductID] = p
	}

	return toOrderView(o, items, products), nil
}

func toOrderView(o model.Order, items []model.OrderItem, products map[int64]model.Product) OrderView {
	outItems := make([]OrderItemView, 0, len(items))
	for _, it := range items {
		summary := ProductSummary{
			ID:   it.ProductID,
			Name: it.ProductNameSnapshot,
		}
		if p, ok := products[it.ProductID]; ok {
			summary.ImageURL = p.ImageURL
		}

		outItems = append(outItems, OrderItemView{
			ProductID:   it.ProductID,
			Product:     summary,
			Quantity:    it.Quantity,
			PriceAtTime: it.PriceSnapshot,
			Subtotal:    it.PriceSnapshot.Mul(decimal.NewFromInt(it.Quantity)),
		})
	}

	return OrderView{
		ID:        o.ID,
		UserID:    o.UserID,
		Total:     o.Total,
		Status:    string(o.Status),
		Items:     outItems,
		CreatedAt: o.CreatedAt,
	}
}
