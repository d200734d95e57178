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

const deliveryColumns = `id, purchase_id, customer_id, product_id, quantity, total_price, delivery_address,
	status, order_id, updated_at`

func scanDelivery(row rowScanner, d *models.Delivery) error {
	return row.Scan(
		&d.ID,
		&d.PurchaseID,
		&d.CustomerID,
		&d.ProductID,
		&d.Quantity,
		&d.TotalPrice,
		&d.DeliveryAddress,
		&d.Status,
		&d.OrderID,
		&d.UpdatedAt,
	)
}

func collectDeliveries(rows *sql.Rows) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	for rows.Next() {
		var d models.Delivery
		if err := scanDelivery(rows, &d); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return deliveries, nil
}

// InsertDelivery writes d and fills in its generated id and timestamp.
func InsertDelivery(ctx context.Context, q database.Querier, d *models.Delivery) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO deliveries (purchase_id, customer_id, product_id, quantity, total_price, delivery_address,
		                         status, order_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 RETURNING id, updated_at`,
		d.PurchaseID, d.CustomerID, d.ProductID, d.Quantity, d.TotalPrice, d.DeliveryAddress,
		d.Status, d.OrderID).Scan(&d.ID, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	return nil
}

func GetDelivery(ctx context.Context, q database.Querier, id int64) (*models.Delivery, error) {
	d := &models.Delivery{}

	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`

	if err := scanDelivery(q.QueryRowContext(ctx, query, id), d); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}

	return d, nil
}

func ListOrderDeliveries(ctx context.Context, q database.Querier, orderID uuid.UUID) ([]models.Delivery, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = $1 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("list order deliveries: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

// LockOrderDeliveries locks the lines of an order that are currently in status. A non-zero
// customerID restricts the selection to that customer's lines.
func LockOrderDeliveries(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, status models.DeliveryStatus, customerID int64) ([]models.Delivery, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+deliveryColumns+`
		 FROM deliveries
		 WHERE order_id = $1
		   AND status = $2
		   AND ($3::bigint = 0 OR customer_id = $3)
		 ORDER BY id
		 FOR UPDATE`,
		orderID, status, customerID)
	if err != nil {
		return nil, fmt.Errorf("lock order deliveries: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

func UpdateDeliveryStatus(ctx context.Context, q database.Querier, id int64, status models.DeliveryStatus) (*models.Delivery, error) {
	d := &models.Delivery{}

	query := `
		UPDATE deliveries SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + deliveryColumns

	if err := scanDelivery(q.QueryRowContext(ctx, query, status, id), d); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("update delivery status: %w", err)
	}

	return d, nil
}

// UpdateOrderStatus sets status on every line of an order, whatever its current state.
func UpdateOrderStatus(ctx context.Context, q database.Querier, orderID uuid.UUID, status models.DeliveryStatus) ([]models.Delivery, error) {
	rows, err := q.QueryContext(ctx,
		`UPDATE deliveries SET status = $1, updated_at = NOW()
		 WHERE order_id = $2
		 RETURNING `+deliveryColumns,
		status, orderID)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	defer rows.Close()

	deliveries, err := collectDeliveries(rows)
	if err != nil {
		return nil, err
	}
	sortDeliveries(deliveries)

	return deliveries, nil
}

// ListOrderIDs returns distinct order ids in creation order. A non-zero customerID restricts
// the result to that customer's orders.
func ListOrderIDs(ctx context.Context, q database.Querier, customerID int64) ([]uuid.UUID, error) {
	return queryOrderIDs(ctx, q,
		`SELECT order_id FROM deliveries
		 WHERE ($1::bigint = 0 OR customer_id = $1)
		 GROUP BY order_id
		 ORDER BY MIN(id)`,
		customerID)
}

// ListOrderIDsByStatus returns distinct order ids having at least one line in status.
func ListOrderIDsByStatus(ctx context.Context, q database.Querier, status models.DeliveryStatus) ([]uuid.UUID, error) {
	return queryOrderIDs(ctx, q,
		`SELECT order_id FROM deliveries
		 WHERE status = $1
		 GROUP BY order_id
		 ORDER BY MIN(id)`,
		status)
}

func queryOrderIDs(ctx context.Context, q database.Querier, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list order ids: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		if id == uuid.Nil {
			continue
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// RevenueLine is one revenue-bearing delivery line joined with its product's reference price.
type RevenueLine struct {
	DeliveryID int64
	Quantity   int
	TotalPrice decimal.Decimal
	OldPrice   decimal.Decimal
	Status     models.DeliveryStatus
}

// ListRevenueLines returns non-cancelled, non-refunded lines whose purchase date falls within
// [from, to] by calendar date.
func ListRevenueLines(ctx context.Context, q database.Querier, from, to time.Time) ([]RevenueLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT d.id, d.quantity, d.total_price, p.old_price, d.status
		 FROM deliveries d
		 JOIN purchases pu ON pu.id = d.purchase_id
		 JOIN products p ON p.id = d.product_id
		 WHERE (pu.purchased_at AT TIME ZONE 'UTC')::date >= $1::date
		   AND (pu.purchased_at AT TIME ZONE 'UTC')::date <= $2::date
		   AND d.status NOT IN ($3, $4)
		 ORDER BY d.id`,
		dateParam(from), dateParam(to), models.DeliveryStatusCancelled, models.DeliveryStatusRefunded)
	if err != nil {
		return nil, fmt.Errorf("list revenue lines: %w", err)
	}
	defer rows.Close()

	var lines []RevenueLine
	for rows.Next() {
		var l RevenueLine
		if err := rows.Scan(&l.DeliveryID, &l.Quantity, &l.TotalPrice, &l.OldPrice, &l.Status); err != nil {
			return nil, fmt.Errorf("scan revenue line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func sortDeliveries(deliveries []models.Delivery) {
	sort.Slice(deliveries, func(i, j int) bool { return deliveries[i].ID < deliveries[j].ID })
}

// dateParam renders t as a UTC calendar date; purchase dates are compared in UTC.
func dateParam(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// OrderExists reports whether the order has any line. A non-zero customerID only counts that
// customer's lines.
func OrderExists(ctx context.Context, q database.Querier, orderID uuid.UUID, customerID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM deliveries
		   WHERE order_id = $1 AND ($2::bigint = 0 OR customer_id = $2)
		 )`,
		orderID, customerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order exists: %w", err)
	}
	return exists, nil
}
