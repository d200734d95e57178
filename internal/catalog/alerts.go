package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/notify"
	"github.com/safar/go-storefront/internal/store"
)

// priceDrop is a repriced product and the price shoppers saw before.
type priceDrop struct {
	product models.Product
	was     decimal.Decimal
}

// mailContext detaches post-commit notification from request cancellation and bounds it.
func (s *Service) mailContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.mailTimeout)
}

// sendDiscountAlerts mails every user wishlisting a repriced product. The prices are already
// committed, so failures are logged and never returned.
func (s *Service) sendDiscountAlerts(ctx context.Context, drops []priceDrop) {
	if len(drops) == 0 {
		return
	}
	ctx, cancel := s.mailContext(ctx)
	defer cancel()

	for _, drop := range drops {
		logger := s.logger.With(zap.Int64("product_id", drop.product.ID))

		subscribers, err := store.ListWishlistSubscribers(ctx, s.db, drop.product.ID)
		if err != nil {
			logger.Error("discount alerts skipped, wishlist lookup failed", zap.Error(err))
			continue
		}

		for _, sub := range subscribers {
			err := s.mailer.Send(ctx, notify.Email{
				To:      sub.Email,
				Subject: discountAlertSubject(drop.product.Name),
				Body:    discountAlertBody(sub.Name, drop, s.signature),
			})
			if err != nil {
				logger.Error("discount alert failed", zap.Int64("user_id", sub.UserID), zap.Error(err))
			}
		}

		if len(subscribers) > 0 {
			logger.Info("discount alerts sent", zap.Int("recipients", len(subscribers)))
		}
	}
}

func discountAlertSubject(productName string) string {
	return "Discount Alert: " + productName
}

func discountAlertBody(name string, drop priceDrop, signature string) string {
	return fmt.Sprintf("Hi %s,\n\nGood news! The product %q on your wishlist has a new discounted price.\n\n"+
		"Old Price: $%s\nNew Price: $%s\n\nVisit our store now and grab the deal before it's gone!\n\n"+
		"Best regards,\n%s",
		name, drop.product.Name, drop.was.StringFixed(2), drop.product.Price.StringFixed(2), signature)
}
