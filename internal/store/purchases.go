package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

func InsertPurchase(ctx context.Context, q database.Querier, userID, productID int64, quantity int, at time.Time) (*models.Purchase, error) {
	purchase := &models.Purchase{}

	err := q.QueryRowContext(ctx,
		`INSERT INTO purchases (user_id, product_id, quantity, purchased_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, product_id, quantity, purchased_at`,
		userID, productID, quantity, at).Scan(
		&purchase.ID,
		&purchase.UserID,
		&purchase.ProductID,
		&purchase.Quantity,
		&purchase.Date,
	)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}

	return purchase, nil
}

func GetPurchasesByIDs(ctx context.Context, q database.Querier, ids []int64) ([]models.Purchase, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, product_id, quantity, purchased_at
		 FROM purchases
		 WHERE id = ANY($1)
		 ORDER BY id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get purchases: %w", err)
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		var p models.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.ProductID, &p.Quantity, &p.Date); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return purchases, nil
}

// PurchaseFilter narrows ListPurchaseDetails. Zero values mean "no restriction". From and To
// compare calendar dates, both inclusive.
type PurchaseFilter struct {
	UserID  int64
	OrderID uuid.UUID
	From    time.Time
	To      time.Time
}

const purchaseDetailsSelect = `
	SELECT pu.id, pu.product_id, pu.user_id, COALESCE(p.name, 'Unknown'), pu.quantity, pu.purchased_at,
	       d.id, d.delivery_address, d.total_price, d.status, d.order_id
	FROM purchases pu
	JOIN deliveries d ON d.purchase_id = pu.id
	LEFT JOIN products p ON p.id = pu.product_id`

func scanPurchaseDetails(row rowScanner, pd *models.PurchaseDetails) error {
	return row.Scan(
		&pd.PurchaseID,
		&pd.ProductID,
		&pd.UserID,
		&pd.ProductName,
		&pd.Quantity,
		&pd.Date,
		&pd.DeliveryID,
		&pd.DeliveryAddress,
		&pd.TotalPrice,
		&pd.Status,
		&pd.OrderID,
	)
}

func ListPurchaseDetails(ctx context.Context, q database.Querier, filter PurchaseFilter) ([]models.PurchaseDetails, error) {
	var conds []string
	var args []any

	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("pu.user_id = $%d", len(args)))
	}
	if filter.OrderID != uuid.Nil {
		args = append(args, filter.OrderID)
		conds = append(conds, fmt.Sprintf("d.order_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, dateParam(filter.From))
		conds = append(conds, fmt.Sprintf("(pu.purchased_at AT TIME ZONE 'UTC')::date >= $%d::date", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, dateParam(filter.To))
		conds = append(conds, fmt.Sprintf("(pu.purchased_at AT TIME ZONE 'UTC')::date <= $%d::date", len(args)))
	}

	query := purchaseDetailsSelect
	if len(conds) > 0 {
		query += "\n\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\tORDER BY pu.purchased_at, pu.id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase details: %w", err)
	}
	defer rows.Close()

	var details []models.PurchaseDetails
	for rows.Next() {
		var pd models.PurchaseDetails
		if err := scanPurchaseDetails(rows, &pd); err != nil {
			return nil, fmt.Errorf("scan purchase details: %w", err)
		}
		details = append(details, pd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return details, nil
}

// ListUserPurchasesCursor pages through a user's purchase history, newest first.
func ListUserPurchasesCursor(ctx context.Context, q database.Querier, userID int64, cursor string, limit int) (*CursorPage[models.PurchaseDetails], error) {
	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	query := purchaseDetailsSelect + `
	WHERE pu.user_id = $1
	  AND (pu.purchased_at, pu.id) < ($2, $3)
	ORDER BY pu.purchased_at DESC, pu.id DESC
	LIMIT $4`

	rows, err := q.QueryContext(ctx, query, userID, after.Date, after.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var details []models.PurchaseDetails
	for rows.Next() {
		var pd models.PurchaseDetails
		if err := scanPurchaseDetails(rows, &pd); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		details = append(details, pd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return trimPage(details, limit, func(pd models.PurchaseDetails) PurchaseCursor {
		return PurchaseCursor{Date: pd.Date, ID: pd.PurchaseID}
	}), nil
}
