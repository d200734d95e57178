package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	UserID   int64
	Items    []OrderItemRequest
	Address  string
	PlacedAt time.Time
	// ClearCart empties the user's cart in the same transaction as the order.
	ClearCart bool
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

// PlacedOrder is everything one successful order wrote, in input item order.
type PlacedOrder struct {
	OrderID    uuid.UUID
	Purchases  []models.Purchase
	Deliveries []models.Delivery
	Products   []models.Product
}

// OrderLines is an order's delivery lines with their purchases.
type OrderLines struct {
	OrderID    uuid.UUID
	Deliveries []models.Delivery
	Purchases  []models.Purchase
}

// CustomerID is the customer owning the order's lines.
func (o *OrderLines) CustomerID() int64 {
	if len(o.Deliveries) == 0 {
		return 0
	}
	return o.Deliveries[0].CustomerID
}

func (o *OrderLines) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Deliveries))
	for _, d := range o.Deliveries {
		ids = append(ids, d.ProductID)
	}
	return uniqueSorted(ids)
}

// requiredStock sums requested quantities per product, so repeated lines for one product are
// checked against its stock together.
func requiredStock(items []OrderItemRequest) (map[int64]int, []int64) {
	needed := make(map[int64]int, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, seen := needed[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		needed[item.ProductID] += item.Quantity
	}
	return needed, ids
}

// CreateOrder validates and places an order atomically. All product rows are locked in id
// order, every item is checked against stock before anything is written, and each decrement
// is still conditional. Any failure rolls the whole order back.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*PlacedOrder, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("create order: no items")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("create order: quantity for product %d must be positive", item.ProductID)
		}
	}

	placedAt := req.PlacedAt
	if placedAt.IsZero() {
		placedAt = time.Now()
	}

	needed, ids := requiredStock(req.Items)
	var placed *PlacedOrder

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			req.UserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		locked, err := LockProducts(ctx, tx, ids)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if locked[id].Quantity < needed[id] {
				return database.ErrInsufficientStock
			}
		}

		order := &PlacedOrder{OrderID: uuid.New()}

		for _, item := range req.Items {
			product := locked[item.ProductID]

			if err := DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}

			purchase, err := InsertPurchase(ctx, tx, req.UserID, item.ProductID, item.Quantity, placedAt)
			if err != nil {
				return err
			}

			delivery := &models.Delivery{
				PurchaseID:      purchase.ID,
				CustomerID:      req.UserID,
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				TotalPrice:      product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
				DeliveryAddress: req.Address,
				Status:          models.DeliveryStatusProcessing,
				OrderID:         order.OrderID,
			}
			if err := InsertDelivery(ctx, tx, delivery); err != nil {
				return err
			}

			order.Purchases = append(order.Purchases, *purchase)
			order.Deliveries = append(order.Deliveries, *delivery)
		}

		if req.ClearCart {
			if _, err := ClearCart(ctx, tx, UserCart(req.UserID)); err != nil {
				return err
			}
		}

		for _, id := range ids {
			product := *locked[id]
			product.Quantity -= needed[id]
			order.Products = append(order.Products, product)
		}
		sort.Slice(order.Products, func(i, j int) bool { return order.Products[i].ID < order.Products[j].ID })

		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return placed, nil
}

// GetOrder loads every line of an order. An order with no lines does not exist.
func GetOrder(ctx context.Context, q database.Querier, orderID uuid.UUID) (*OrderLines, error) {
	if orderID == uuid.Nil {
		return nil, database.ErrOrderNotFound
	}

	deliveries, err := ListOrderDeliveries(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	if len(deliveries) == 0 {
		return nil, database.ErrOrderNotFound
	}

	purchaseIDs := make([]int64, 0, len(deliveries))
	for _, d := range deliveries {
		purchaseIDs = append(purchaseIDs, d.PurchaseID)
	}

	purchases, err := GetPurchasesByIDs(ctx, q, purchaseIDs)
	if err != nil {
		return nil, err
	}
	if len(purchases) != len(deliveries) {
		return nil, fmt.Errorf("order %s: %d deliveries reference %d purchases", orderID, len(deliveries), len(purchases))
	}

	return &OrderLines{
		OrderID:    orderID,
		Deliveries: deliveries,
		Purchases:  purchases,
	}, nil
}
