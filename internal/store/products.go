package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, COALESCE(category_id, 0), name, model, serial_number, description, quantity,
	price, old_price, distributor, warranty_status, image_url, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.CategoryID,
		&product.Name,
		&product.Model,
		&product.SerialNumber,
		&product.Description,
		&product.Quantity,
		&product.Price,
		&product.OldPrice,
		&product.Distributor,
		&product.WarrantyStatus,
		&product.ImageURL,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
}

type CreateProductParams struct {
	CategoryID     int64
	Name           string
	Model          string
	SerialNumber   string
	Description    string
	Quantity       int
	Price          decimal.Decimal
	Distributor    string
	WarrantyStatus models.WarrantyStatus
	ImageURL       string
}

// CreateProduct inserts a product. The old price starts out equal to the price.
func CreateProduct(ctx context.Context, q database.Querier, p CreateProductParams) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (category_id, name, model, serial_number, description, quantity, price, old_price,
		                      distributor, warranty_status, image_url, created_at, updated_at, version)
		VALUES (NULLIF($1, 0), $2, $3, $4, $5, $6, $7, $7, $8, $9, $10, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	err := scanProduct(q.QueryRowContext(ctx, query,
		p.CategoryID, p.Name, p.Model, p.SerialNumber, p.Description, p.Quantity, p.Price,
		p.Distributor, p.WarrantyStatus, p.ImageURL), product)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := scanProduct(q.QueryRowContext(ctx, query, id), product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetProductsByIDs returns the products that exist among ids, ordered by id.
func GetProductsByIDs(ctx context.Context, q database.Querier, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// LockProducts takes row locks on every product in ids, always in ascending id order so that
// concurrent multi-item checkouts cannot deadlock each other. Missing ids yield
// ErrProductNotFound.
func LockProducts(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	unique := uniqueSorted(ids)

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, pq.Array(unique))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}

	locked := make(map[int64]*models.Product, len(products))
	for i := range products {
		locked[products[i].ID] = &products[i]
	}
	if len(locked) != len(unique) {
		return nil, database.ErrProductNotFound
	}

	return locked, nil
}

// DecrementStock removes quantity units from stock, refusing to go below zero.
func DecrementStock(ctx context.Context, q database.Querier, productID int64, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE products
		 SET quantity = quantity - $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2
		   AND quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

// RestoreStock puts quantity units back into sellable stock after a cancellation or refund.
func RestoreStock(ctx context.Context, q database.Querier, productID int64, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE products
		 SET quantity = quantity + $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

// UpdateStockOptimistic sets an absolute stock level, succeeding only if the caller saw the
// current version.
func UpdateStockOptimistic(ctx context.Context, q database.Querier, productID int64, newStock int, version int) (*models.Product, error) {
	product := &models.Product{}

	query := `
		UPDATE products
		SET quantity = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
		RETURNING ` + productColumns

	err := scanProduct(q.QueryRowContext(ctx, query, newStock, productID, version), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := GetProduct(ctx, q, productID); getErr != nil {
				return nil, getErr
			}
			return nil, database.ErrOptimisticLockFailed
		}
		return nil, fmt.Errorf("update stock: %w", err)
	}

	return product, nil
}

// UpdatePrice sets a new list price. It becomes the reference price as well, so later
// discounts are taken from it.
func UpdatePrice(ctx context.Context, q database.Querier, productID int64, price decimal.Decimal) (*models.Product, error) {
	product := &models.Product{}

	query := `
		UPDATE products
		SET price = $1, old_price = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + productColumns

	if err := scanProduct(q.QueryRowContext(ctx, query, price, productID), product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("update price: %w", err)
	}

	return product, nil
}

// ApplyDiscount reprices every listed product to old_price * (1 - percentage/100), rounded
// to cents. A zero old price is first seeded from the current price. Unknown ids are skipped.
func ApplyDiscount(ctx context.Context, q database.Querier, productIDs []int64, percentage decimal.Decimal) ([]models.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	query := `
		UPDATE products
		SET old_price = CASE WHEN old_price = 0 THEN price ELSE old_price END,
		    price = ROUND((CASE WHEN old_price = 0 THEN price ELSE old_price END) * (1 - $1::numeric / 100), 2),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = ANY($2)
		RETURNING ` + productColumns

	rows, err := q.QueryContext(ctx, query, percentage, pq.Array(uniqueSorted(productIDs)))
	if err != nil {
		return nil, fmt.Errorf("apply discount: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	return products, nil
}

// ListProducts pages through the catalog, newest first. A zero categoryID lists everything.
func ListProducts(ctx context.Context, q database.Querier, categoryID int64, page, pageSize int) (*OffsetPage[models.Product], error) {
	var total int64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE ($1::bigint = 0 OR category_id = $1)`,
		categoryID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1::bigint = 0 OR category_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := q.QueryContext(ctx, query, categoryID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(products, total, page, pageSize), nil
}

func collectProducts(rows *sql.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
