package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

// AddToWishlist puts a product on the user's wishlist. Adding it twice is a no-op.
func (s *Service) AddToWishlist(ctx context.Context, userID, productID int64) (*models.WishlistItem, error) {
	if userID == 0 {
		return nil, ErrForbidden
	}

	item, err := store.AddToWishlist(ctx, s.db, userID, productID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("wishlist updated", zap.Int64("user_id", userID), zap.Int64("product_id", productID))
	return item, nil
}

func (s *Service) Wishlist(ctx context.Context, userID int64) ([]models.WishlistItem, error) {
	if userID == 0 {
		return nil, ErrForbidden
	}
	items, err := store.ListWishlist(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.WishlistItem{}
	}
	return items, nil
}

func (s *Service) RemoveFromWishlist(ctx context.Context, userID, productID int64) error {
	if userID == 0 {
		return ErrForbidden
	}
	return store.RemoveFromWishlist(ctx, s.db, userID, productID)
}
