package store

import (
	"context"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

// AddToWishlist puts the product on the user's wishlist. Adding a product that is already
// there returns the existing entry.
func AddToWishlist(ctx context.Context, q database.Querier, userID, productID int64) (*models.WishlistItem, error) {
	item := &models.WishlistItem{}
	err := q.QueryRowContext(ctx, `
		WITH added AS (
			INSERT INTO wishlists (user_id, product_id, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id, product_id) DO UPDATE SET user_id = EXCLUDED.user_id
			RETURNING id, user_id, product_id, created_at
		)
		SELECT a.id, a.user_id, a.product_id, p.name, p.price, a.created_at
		FROM added a
		JOIN products p ON p.id = a.product_id`, userID, productID).
		Scan(&item.ID, &item.UserID, &item.ProductID, &item.ProductName, &item.Price, &item.CreatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("add to wishlist: %w", err)
	}
	return item, nil
}

// ListWishlist returns the user's wishlist, most recently added first.
func ListWishlist(ctx context.Context, q database.Querier, userID int64) ([]models.WishlistItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT w.id, w.user_id, w.product_id, p.name, p.price, w.created_at
		FROM wishlists w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC, w.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var items []models.WishlistItem
	for rows.Next() {
		var item models.WishlistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.ProductName, &item.Price, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

func RemoveFromWishlist(ctx context.Context, q database.Querier, userID, productID int64) error {
	result, err := q.ExecContext(ctx,
		`DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("remove from wishlist: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrWishlistItemNotFound
	}
	return nil
}

// ListWishlistSubscribers returns every user with the product on their wishlist and an email
// address to write to.
func ListWishlistSubscribers(ctx context.Context, q database.Querier, productID int64) ([]models.WishlistSubscriber, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT u.id, u.email, u.name
		FROM wishlists w
		JOIN users u ON u.id = w.user_id
		WHERE w.product_id = $1 AND u.email <> ''
		ORDER BY u.id`, productID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []models.WishlistSubscriber
	for rows.Next() {
		var s models.WishlistSubscriber
		if err := rows.Scan(&s.UserID, &s.Email, &s.Name); err != nil {
			return nil, fmt.Errorf("scan wishlist subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return subscribers, nil
}
