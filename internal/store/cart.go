package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

// CartOwner identifies a cart: a signed-in user or an anonymous guest cart, never both.
type CartOwner struct {
	UserID      int64
	GuestCartID uuid.UUID
}

func UserCart(userID int64) CartOwner          { return CartOwner{UserID: userID} }
func GuestCart(guestCartID uuid.UUID) CartOwner { return CartOwner{GuestCartID: guestCartID} }

func (o CartOwner) Validate() error {
	hasUser := o.UserID != 0
	hasGuest := o.GuestCartID != uuid.Nil
	if hasUser == hasGuest {
		return database.ErrInvalidCartOwner
	}
	return nil
}

// where returns the predicate selecting the owner's rows, using placeholder $n.
func (o CartOwner) where(n int) (string, any) {
	if o.UserID != 0 {
		return fmt.Sprintf("user_id = $%d", n), o.UserID
	}
	return fmt.Sprintf("guest_cart_id = $%d", n), o.GuestCartID
}

// conflictTarget names the partial unique index that backs upserts for the owner kind.
func (o CartOwner) conflictTarget() string {
	if o.UserID != 0 {
		return "(user_id, product_id) WHERE user_id IS NOT NULL"
	}
	return "(guest_cart_id, product_id) WHERE guest_cart_id IS NOT NULL"
}

func (o CartOwner) columns() (userID, guestCartID any) {
	if o.UserID != 0 {
		return o.UserID, nil
	}
	return nil, o.GuestCartID
}

const cartColumns = `id, user_id, guest_cart_id, product_id, quantity, created_at, updated_at`

func scanCartItem(row rowScanner, item *models.CartItem) error {
	var userID sql.NullInt64
	var guestID uuid.NullUUID

	if err := row.Scan(&item.ID, &userID, &guestID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return err
	}

	if userID.Valid {
		id := userID.Int64
		item.UserID = &id
	}
	if guestID.Valid {
		id := guestID.UUID
		item.GuestCartID = &id
	}

	return nil
}

func GetCart(ctx context.Context, q database.Querier, owner CartOwner) ([]models.CartItem, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	cond, arg := owner.where(1)
	rows, err := q.QueryContext(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE `+cond+` ORDER BY id`,
		arg)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := scanCartItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// AddCartItem adds quantity units of a product to the cart, creating the line on first add.
func AddCartItem(ctx context.Context, q database.Querier, owner CartOwner, productID int64, quantity int) (*models.CartItem, error) {
	return upsertCartItem(ctx, q, owner, productID, quantity, "cart_items.quantity + EXCLUDED.quantity")
}

// SetCartItemQuantity replaces the quantity of a cart line. A quantity of zero or less removes
// the line and returns nil.
func SetCartItemQuantity(ctx context.Context, q database.Querier, owner CartOwner, productID int64, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, RemoveCartItem(ctx, q, owner, productID)
	}
	return upsertCartItem(ctx, q, owner, productID, quantity, "EXCLUDED.quantity")
}

func upsertCartItem(ctx context.Context, q database.Querier, owner CartOwner, productID int64, quantity int, merge string) (*models.CartItem, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	userID, guestID := owner.columns()
	query := `
		INSERT INTO cart_items (user_id, guest_cart_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT ` + owner.conflictTarget() + `
		DO UPDATE SET quantity = ` + merge + `, updated_at = NOW()
		RETURNING ` + cartColumns

	item := &models.CartItem{}
	if err := scanCartItem(q.QueryRowContext(ctx, query, userID, guestID, productID, quantity), item); err != nil {
		return nil, fmt.Errorf("upsert cart item: %w", err)
	}

	return item, nil
}

func RemoveCartItem(ctx context.Context, q database.Querier, owner CartOwner, productID int64) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	cond, arg := owner.where(1)
	if _, err := q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE `+cond+` AND product_id = $2`,
		arg, productID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	return nil
}

// ClearCart empties the cart and reports how many lines were removed.
func ClearCart(ctx context.Context, q database.Querier, owner CartOwner) (int64, error) {
	if err := owner.Validate(); err != nil {
		return 0, err
	}

	cond, arg := owner.where(1)
	result, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE `+cond, arg)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return removed, nil
}

// MergeGuestCart moves a guest cart onto a user. Quantities are summed where the user already
// holds the product, and the guest rows are deleted. Run it inside a transaction.
func MergeGuestCart(ctx context.Context, tx *sql.Tx, guestCartID uuid.UUID, userID int64) (int64, error) {
	if userID == 0 || guestCartID == uuid.Nil {
		return 0, database.ErrInvalidCartOwner
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, guest_cart_id, product_id, quantity, created_at, updated_at)
		 SELECT $2::bigint, NULL::uuid, product_id, quantity, NOW(), NOW()
		 FROM cart_items
		 WHERE guest_cart_id = $1
		 ON CONFLICT (user_id, product_id) WHERE user_id IS NOT NULL
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`,
		guestCartID, userID)
	if err != nil {
		return 0, fmt.Errorf("merge guest cart: %w", err)
	}

	merged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE guest_cart_id = $1`, guestCartID); err != nil {
		return 0, fmt.Errorf("delete guest cart: %w", err)
	}

	return merged, nil
}
