package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type InvoiceRequest struct {
	OrderID   uuid.UUID
	UserID    int64
	FirstName string
	LastName  string
}

func (s *Service) AllPurchases(ctx context.Context, actor Actor) ([]models.PurchaseDetails, error) {
	if err := requireRole(actor, models.RoleSalesManager, models.RoleProductManager); err != nil {
		return nil, err
	}
	return store.ListPurchaseDetails(ctx, s.db, store.PurchaseFilter{})
}

// MyPurchases pages through the actor's own purchases, newest first.
func (s *Service) MyPurchases(ctx context.Context, actor Actor, cursor string, limit int) (*store.CursorPage[models.PurchaseDetails], error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return store.ListUserPurchasesCursor(ctx, s.db, actor.UserID, cursor, limit)
}

func (s *Service) MyOrders(ctx context.Context, actor Actor) ([]uuid.UUID, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	return store.ListOrderIDs(ctx, s.db, actor.UserID)
}

func (s *Service) AllOrders(ctx context.Context, actor Actor) ([]uuid.UUID, error) {
	if err := requireRole(actor, models.RoleProductManager); err != nil {
		return nil, err
	}
	return store.ListOrderIDs(ctx, s.db, 0)
}

// OrderDetails returns the purchase details of one order. Customers only see their own orders.
func (s *Service) OrderDetails(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.PurchaseDetails, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if orderID == uuid.Nil {
		return nil, database.ErrOrderNotFound
	}

	details, err := store.ListPurchaseDetails(ctx, s.db, store.PurchaseFilter{
		OrderID: orderID,
		UserID:  ownerFilter(actor),
	})
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, database.ErrOrderNotFound
	}
	return details, nil
}

// InvoiceByOrder renders the invoice of an existing order. Customers may only request
// invoices for their own orders and under their own user id.
func (s *Service) InvoiceByOrder(ctx context.Context, actor Actor, req InvoiceRequest) ([]byte, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}

	userID := req.UserID
	if !actor.Role.IsStaff() {
		if userID != 0 && userID != actor.UserID {
			return nil, ErrForbidden
		}
		userID = actor.UserID
	}

	order, err := store.GetOrder(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() && order.CustomerID() != actor.UserID {
		return nil, database.ErrOrderNotFound
	}
	if userID == 0 {
		userID = order.CustomerID()
	}

	user, err := store.GetUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	products, err := store.GetProductsByIDs(ctx, s.db, order.ProductIDs())
	if err != nil {
		return nil, err
	}

	return s.renderer.Render(&models.Invoice{
		OrderID:    order.OrderID,
		User:       *user,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Purchases:  order.Purchases,
		Deliveries: order.Deliveries,
		Products:   products,
		IssuedAt:   s.now(),
	})
}
