package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/notify"
	"github.com/safar/go-storefront/internal/store"
)

type CheckoutItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type CheckoutRequest struct {
	Items           []CheckoutItem
	DeliveryAddress string
	FirstName       string
	LastName        string
}

// MakePurchase buys quantity units of one product for the actor and returns the new order id.
// On any failure the returned id is uuid.Nil.
func (s *Service) MakePurchase(ctx context.Context, actor Actor, productID int64, quantity int) (uuid.UUID, error) {
	if err := requireRole(actor); err != nil {
		return uuid.Nil, err
	}
	if quantity <= 0 {
		return uuid.Nil, ErrInvalidQuantity
	}

	placed, err := store.CreateOrder(ctx, s.db, store.CreateOrderRequest{
		UserID:   actor.UserID,
		Items:    []store.OrderItemRequest{{ProductID: productID, Quantity: quantity}},
		Address:  s.defaultAddress,
		PlacedAt: s.now(),
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("purchase placed",
		zap.String("order_id", placed.OrderID.String()),
		zap.Int64("user_id", actor.UserID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
	)

	return placed.OrderID, nil
}

// Checkout places every item as one order sharing a single order id, clears the actor's cart
// and then mails an invoice. Stock shortage on any item fails the whole checkout with no
// writes. Invoice and mail failures are logged and do not affect the result.
func (s *Service) Checkout(ctx context.Context, actor Actor, req CheckoutRequest) (uuid.UUID, error) {
	if err := requireRole(actor); err != nil {
		return uuid.Nil, err
	}
	if len(req.Items) == 0 {
		return uuid.Nil, ErrEmptyCheckout
	}

	items := make([]store.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return uuid.Nil, ErrInvalidQuantity
		}
		items = append(items, store.OrderItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		address = s.homeAddress(ctx, actor.UserID)
	}

	placed, err := store.CreateOrder(ctx, s.db, store.CreateOrderRequest{
		UserID:    actor.UserID,
		Items:     items,
		Address:   address,
		PlacedAt:  s.now(),
		ClearCart: true,
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("checkout placed",
		zap.String("order_id", placed.OrderID.String()),
		zap.Int64("user_id", actor.UserID),
		zap.Int("lines", len(placed.Deliveries)),
	)

	s.sendInvoice(ctx, actor.UserID, placed, req.FirstName, req.LastName)

	return placed.OrderID, nil
}

// homeAddress falls back to the configured default when the user has none on file.
func (s *Service) homeAddress(ctx context.Context, userID int64) string {
	user, err := store.GetUser(ctx, s.db, userID)
	if err != nil || strings.TrimSpace(user.HomeAddress) == "" {
		return s.defaultAddress
	}
	return user.HomeAddress
}

func (s *Service) sendInvoice(ctx context.Context, userID int64, placed *store.PlacedOrder, firstName, lastName string) {
	ctx, cancel := s.mailContext(ctx)
	defer cancel()

	logger := s.logger.With(zap.String("order_id", placed.OrderID.String()))

	user, err := store.GetUser(ctx, s.db, userID)
	if err != nil {
		logger.Error("invoice skipped, user lookup failed", zap.Error(err))
		return
	}

	pdf, err := s.renderer.Render(&models.Invoice{
		OrderID:    placed.OrderID,
		User:       *user,
		FirstName:  firstName,
		LastName:   lastName,
		Purchases:  placed.Purchases,
		Deliveries: placed.Deliveries,
		Products:   placed.Products,
		IssuedAt:   s.now(),
	})
	if err != nil {
		logger.Error("invoice render failed", zap.Error(err))
		return
	}

	err = s.mailer.Send(ctx, notify.Email{
		To:      user.Email,
		Subject: invoiceSubject,
		Body:    "Thank you for your order. Your invoice is attached.\n\n" + s.signature,
		Attachments: []notify.Attachment{{
			Filename:    "invoice-" + placed.OrderID.String() + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	})
	if err != nil {
		logger.Error("invoice email failed", zap.String("to", user.Email), zap.Error(err))
	}
}
