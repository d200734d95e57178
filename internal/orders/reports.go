package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

// RevenueReport sums the price snapshots of every live line purchased within [from, to] by
// calendar date. Cost is the product's reference price times the cost ratio times quantity,
// a fixed modelling assumption rather than a real cost basis.
func (s *Service) RevenueReport(ctx context.Context, actor Actor, from, to time.Time) (*models.RevenueReport, error) {
	if err := requireRole(actor, models.RoleSalesManager); err != nil {
		return nil, err
	}
	if truncateDate(from).After(truncateDate(to)) {
		return nil, ErrInvalidDateRange
	}

	report, generation, ok := s.cache.Get(ctx, from, to)
	if ok {
		return report, nil
	}

	lines, err := store.ListRevenueLines(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}

	report = summarizeRevenue(lines, s.costRatio)
	report.StartDate = from
	report.EndDate = to

	s.cache.Set(ctx, generation, report)
	s.logger.Debug("revenue report computed",
		zap.Time("start_date", from),
		zap.Time("end_date", to),
		zap.Int("lines", len(lines)),
	)

	return report, nil
}

func summarizeRevenue(lines []store.RevenueLine, costRatio decimal.Decimal) *models.RevenueReport {
	revenue := decimal.Zero
	cost := decimal.Zero

	for _, l := range lines {
		if !l.Status.CountsAsRevenue() {
			continue
		}
		revenue = revenue.Add(l.TotalPrice)
		cost = cost.Add(l.OldPrice.Mul(costRatio).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	return &models.RevenueReport{
		TotalRevenue: revenue,
		TotalCost:    cost,
		Profit:       revenue.Sub(cost),
	}
}

func truncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RefundRequestedOrders lists orders with at least one line awaiting refund approval.
func (s *Service) RefundRequestedOrders(ctx context.Context, actor Actor) ([]uuid.UUID, error) {
	if err := requireRole(actor, models.RoleSalesManager); err != nil {
		return nil, err
	}
	return store.ListOrderIDsByStatus(ctx, s.db, models.DeliveryStatusRefundRequested)
}

// PurchasesByDateRange lists purchase details within [from, to] by calendar date.
func (s *Service) PurchasesByDateRange(ctx context.Context, actor Actor, from, to time.Time) ([]models.PurchaseDetails, error) {
	if err := requireRole(actor, models.RoleSalesManager); err != nil {
		return nil, err
	}
	if truncateDate(from).After(truncateDate(to)) {
		return nil, ErrInvalidDateRange
	}
	return store.ListPurchaseDetails(ctx, s.db, store.PurchaseFilter{From: from, To: to})
}
