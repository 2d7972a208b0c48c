package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 状態遷移表。載っていない遷移は全部409。
var orderStatusTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusProcessing: {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped:    {model.OrderStatusDelivered},
	model.OrderStatusDelivered:  {},
	model.OrderStatusCancelled:  {},
}

func canTransition(from model.OrderStatus, to model.OrderStatus) bool {
	for _, s := range orderStatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AdminOrderUsecase は管理者向けの注文操作。
// キャンセル時の在庫戻し＋状態更新＋監査ログを1トランザクションで行う。
type AdminOrderUsecase struct {
	tx            repo.TransactionManager
	orderRepo     repo.OrderRepository
	orderItemRepo repo.OrderItemRepository
	productRepo   repo.ProductRepository
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	orderRepo repo.OrderRepository,
	orderItemRepo repo.OrderItemRepository,
	productRepo repo.ProductRepository,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{
		tx:            tx,
		orderRepo:     orderRepo,
		orderItemRepo: orderItemRepo,
		productRepo:   productRepo,
	}
}

type AdminOrderListInput struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
}

type UpdateOrderStatusInput struct {
	Status string
}

func (u *AdminOrderUsecase) ListOrders(ctx context.Context, in AdminOrderListInput) (OrderListView, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 20
	}
	if in.Status != "" && !model.OrderStatus(in.Status).Valid() {
		return OrderListView{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid status")
	}

	orders, total, err := u.orderRepo.ListAdmin(ctx, repo.AdminOrderListFilter{
		Page:   in.Page,
		Limit:  in.Limit,
		Status: in.Status,
		UserID: in.UserID,
	})
	if err != nil {
		return OrderListView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v, err := u.materialize(ctx, o)
		if err != nil {
			return OrderListView{}, err
		}
		views = append(views, v)
	}

	return OrderListView{Items: views, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

func (u *AdminOrderUsecase) GetOrder(ctx context.Context, orderID int64) (OrderView, error) {
	if orderID <= 0 {
		return OrderView{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	o, err := u.orderRepo.FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return OrderView{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "order not found")
	}
	if err != nil {
		return OrderView{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return u.materialize(ctx, o)
}

// UpdateStatus は注文の状態を進める。
// 現在状態の読み取り・遷移チェック・更新・在庫戻し・監査ログは全部
// 同一トランザクション。更新は条件付き（status = 読んだ値）なので、
// 同時に同じ遷移が走っても勝つのは1リクエストだけ。負けた側は409で
// 全ロールバックし、在庫は二重に戻らない。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorUserID int64, orderID int64, in UpdateOrderStatusInput) (OrderView, error) {
	if orderID <= 0 {
		return OrderView{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	next := model.OrderStatus(in.Status)
	if !next.Valid() {
		return OrderView{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid status")
	}

	var updated model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, CodeNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		if !canTransition(o.Status, next) {
			return NewHTTPError(http.StatusConflict, CodeConflict,
				fmt.Sprintf("cannot transition order from %s to %s", o.Status, next))
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, o.Status, next); err != nil {
			if err == repo.ErrConflict {
				return NewHTTPError(http.StatusConflict, CodeConflict, "order status changed concurrently")
			}
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		//キャンセルは引き当て済み在庫を返す
		if next == model.OrderStatusCancelled {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
				}
			}
		}

		before, _ := json.Marshal(map[string]string{"status": string(o.Status)})
		after, _ := json.Marshal(map[string]string{"status": string(next)})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    time.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		updated = o
		updated.Status = next
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}

	return u.materialize(ctx, updated)
}

func (u *AdminOrderUsecase) materialize(ctx context.Context, o model.Order) (OrderView, error) {
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
