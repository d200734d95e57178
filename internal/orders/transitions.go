package orders

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/notify"
	"github.com/safar/go-storefront/internal/store"
)

// Cancel moves every Processing line of the order to Cancelled and returns their units to
// stock. Lines in other states are left as they are.
func (s *Service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	if err := requireRole(actor); err != nil {
		return err
	}

	var cancelled []models.Delivery
	err := database.WithRetry(ctx, s.db, s.txOptions("cancel"), func(tx *sql.Tx) error {
		var err error
		cancelled, err = transitionLines(ctx, tx, orderID, ownerFilter(actor),
			models.DeliveryStatusProcessing, models.DeliveryStatusCancelled, ErrNotCancellable)
		return err
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("order cancelled",
		zap.String("order_id", orderID.String()),
		zap.Int64("actor_id", actor.UserID),
		zap.Int("lines", len(cancelled)),
	)
	return nil
}

// RequestRefund moves every Delivered line of the order to RefundRequested. Every one of those
// lines must have been purchased within the refund window, otherwise nothing changes.
func (s *Service) RequestRefund(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	if err := requireRole(actor); err != nil {
		return err
	}

	now := s.now()
	customerID := ownerFilter(actor)

	err := database.WithRetry(ctx, s.db, s.txOptions("request_refund"), func(tx *sql.Tx) error {
		lines, err := store.LockOrderDeliveries(ctx, tx, orderID, models.DeliveryStatusDelivered, customerID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return noMatchingLines(ctx, tx, orderID, customerID, ErrRefundNotEligible)
		}

		purchaseIDs := make([]int64, 0, len(lines))
		for _, d := range lines {
			purchaseIDs = append(purchaseIDs, d.PurchaseID)
		}
		purchases, err := store.GetPurchasesByIDs(ctx, tx, purchaseIDs)
		if err != nil {
			return err
		}
		if len(purchases) != len(lines) {
			return fmt.Errorf("order %s: %d delivered lines reference %d purchases", orderID, len(lines), len(purchases))
		}
		for _, p := range purchases {
			if !withinRefundWindow(now, p.Date, s.refundWindow) {
				return ErrRefundWindowExpired
			}
		}

		for _, d := range lines {
			if _, err := store.UpdateDeliveryStatus(ctx, tx, d.ID, models.DeliveryStatusRefundRequested); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("refund requested", zap.String("order_id", orderID.String()), zap.Int64("actor_id", actor.UserID))
	return nil
}

// ApproveRefund moves every RefundRequested line of the order to Refunded, returns the units
// to stock and then mails each customer. Mail failures are logged only.
func (s *Service) ApproveRefund(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	if err := requireRole(actor, models.RoleSalesManager); err != nil {
		return err
	}

	var refunded []models.Delivery
	err := database.WithRetry(ctx, s.db, s.txOptions("approve_refund"), func(tx *sql.Tx) error {
		var err error
		refunded, err = transitionLines(ctx, tx, orderID, 0,
			models.DeliveryStatusRefundRequested, models.DeliveryStatusRefunded, ErrRefundNotRequested)
		return err
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("refund approved",
		zap.String("order_id", orderID.String()),
		zap.Int64("actor_id", actor.UserID),
		zap.Int("lines", len(refunded)),
	)

	s.sendRefundEmails(ctx, orderID, refunded)
	return nil
}

// transitionLines locks the order's lines in status from, moves them to status to and returns
// their units to stock, one restore per product in id order.
func transitionLines(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, customerID int64,
	from, to models.DeliveryStatus, noneErr error) ([]models.Delivery, error) {

	lines, err := store.LockOrderDeliveries(ctx, tx, orderID, from, customerID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, noMatchingLines(ctx, tx, orderID, customerID, noneErr)
	}

	updated := make([]models.Delivery, 0, len(lines))
	for _, d := range lines {
		u, err := store.UpdateDeliveryStatus(ctx, tx, d.ID, to)
		if err != nil {
			return nil, err
		}
		updated = append(updated, *u)
	}

	for _, r := range restorations(lines) {
		if err := store.RestoreStock(ctx, tx, r.productID, r.quantity); err != nil {
			return nil, fmt.Errorf("restore stock for product %d: %w", r.productID, err)
		}
	}

	return updated, nil
}

type restoration struct {
	productID int64
	quantity  int
}

func restorations(lines []models.Delivery) []restoration {
	byProduct := make(map[int64]int, len(lines))
	for _, d := range lines {
		byProduct[d.ProductID] += d.Quantity
	}

	out := make([]restoration, 0, len(byProduct))
	for id, qty := range byProduct {
		out = append(out, restoration{productID: id, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}

func withinRefundWindow(now, purchasedAt time.Time, window time.Duration) bool {
	return now.Sub(purchasedAt) <= window
}

func (s *Service) sendRefundEmails(ctx context.Context, orderID uuid.UUID, lines []models.Delivery) {
	ctx, cancel := s.mailContext(ctx)
	defer cancel()

	users := make(map[int64]*models.User)
	for _, d := range lines {
		logger := s.logger.With(zap.String("order_id", orderID.String()), zap.Int64("delivery_id", d.ID))

		user, ok := users[d.CustomerID]
		if !ok {
			var err error
			user, err = store.GetUser(ctx, s.db, d.CustomerID)
			if err != nil {
				logger.Error("refund email skipped, user lookup failed", zap.Error(err))
				continue
			}
			users[d.CustomerID] = user
		}
		if user.Email == "" {
			continue
		}

		err := s.mailer.Send(ctx, notify.Email{
			To:      user.Email,
			Subject: refundApprovedSubject,
			Body:    refundApprovedBody(user.Name, orderID, d, s.signature),
		})
		if err != nil {
			logger.Error("refund email failed", zap.String("to", user.Email), zap.Error(err))
		}
	}
}

func refundApprovedBody(name string, orderID uuid.UUID, d models.Delivery, signature string) string {
	return fmt.Sprintf("Hello %s,\n\nYour refund for order ID %s has been approved. "+
		"The amount $%s will be refunded to you shortly.\n\nBest regards,\n%s",
		name, orderID, d.TotalPrice.StringFixed(2), signature)
}

// ForceOrderStatus sets every line of the order to status without any transition check and
// without stock compensation. It is the administrative override used to advance fulfilment.
func (s *Service) ForceOrderStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status int) ([]models.Delivery, error) {
	if err := requireRole(actor, models.RoleProductManager); err != nil {
		return nil, err
	}
	target, err := models.ParseDeliveryStatus(status)
	if err != nil {
		return nil, ErrInvalidStatus
	}

	updated, err := store.UpdateOrderStatus(ctx, s.db, orderID, target)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, database.ErrOrderNotFound
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("order status forced",
		zap.String("order_id", orderID.String()),
		zap.String("status", target.String()),
		zap.Int64("actor_id", actor.UserID),
	)
	return updated, nil
}

// ForceDeliveryStatus is ForceOrderStatus for a single line.
func (s *Service) ForceDeliveryStatus(ctx context.Context, actor Actor, deliveryID int64, status int) (*models.Delivery, error) {
	if err := requireRole(actor, models.RoleProductManager); err != nil {
		return nil, err
	}
	target, err := models.ParseDeliveryStatus(status)
	if err != nil {
		return nil, ErrInvalidStatus
	}

	updated, err := store.UpdateDeliveryStatus(ctx, s.db, deliveryID, target)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)

	s.logger.Info("delivery status forced",
		zap.Int64("delivery_id", deliveryID),
		zap.String("status", target.String()),
		zap.Int64("actor_id", actor.UserID),
	)
	return updated, nil
}
