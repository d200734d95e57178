package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// Service manages shopping carts for signed-in users and anonymous guests. Cart lines never
// reserve stock; availability is decided at checkout.
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewService(db *sql.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger}
}

func (s *Service) Items(ctx context.Context, owner store.CartOwner) ([]models.CartItem, error) {
	return store.GetCart(ctx, s.db, owner)
}

// Add puts quantity more units of an existing product into the cart.
func (s *Service) Add(ctx context.Context, owner store.CartOwner, productID int64, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if _, err := store.GetProduct(ctx, s.db, productID); err != nil {
		return nil, err
	}
	return store.AddCartItem(ctx, s.db, owner, productID, quantity)
}

// Update sets a line's quantity. Zero removes the line and returns nil.
func (s *Service) Update(ctx context.Context, owner store.CartOwner, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity > 0 {
		if _, err := store.GetProduct(ctx, s.db, productID); err != nil {
			return nil, err
		}
	}
	return store.SetCartItemQuantity(ctx, s.db, owner, productID, quantity)
}

func (s *Service) Remove(ctx context.Context, owner store.CartOwner, productID int64) error {
	return store.RemoveCartItem(ctx, s.db, owner, productID)
}

func (s *Service) Clear(ctx context.Context, owner store.CartOwner) (int64, error) {
	return store.ClearCart(ctx, s.db, owner)
}

// Merge moves a guest cart onto a user after sign-in and returns the user's resulting cart.
func (s *Service) Merge(ctx context.Context, guestCartID uuid.UUID, userID int64) ([]models.CartItem, error) {
	var merged int64
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		merged, err = store.MergeGuestCart(ctx, tx, guestCartID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("guest cart merged",
		zap.String("guest_cart_id", guestCartID.String()),
		zap.Int64("user_id", userID),
		zap.Int64("lines", merged),
	)

	return store.GetCart(ctx, s.db, store.UserCart(userID))
}
