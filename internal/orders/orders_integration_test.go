//go:build integration

package orders_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/safar/go-storefront/internal/cache"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/notify"
	"github.com/safar/go-storefront/internal/orders"
	"github.com/safar/go-storefront/internal/store"
	"github.com/safar/go-storefront/internal/testutil"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Email
	err  error
}

func (m *recordingMailer) Send(_ context.Context, email notify.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return m.err
}

type failingRenderer struct{}

func (failingRenderer) Render(*models.Invoice) ([]byte, error) {
	return nil, errors.New("renderer offline")
}

type env struct {
	db      *sql.DB
	svc     *orders.Service
	mailer  *recordingMailer
	clock   *time.Time
	cust    orders.Actor
	sales   orders.Actor
	product orders.Actor
}

func newEnv(t *testing.T, opts ...orders.Option) *env {
	t.Helper()
	db := testutil.SetupPostgres(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := &env{db: db, mailer: &recordingMailer{}, clock: &now}

	base := []orders.Option{
		orders.WithMailer(e.mailer),
		orders.WithClock(func() time.Time { return *e.clock }),
	}
	e.svc = orders.NewService(db, append(base, opts...)...)

	c := testutil.CreateUser(t, db, "customer@example.com", models.RoleCustomer)
	s := testutil.CreateUser(t, db, "sales@example.com", models.RoleSalesManager)
	p := testutil.CreateUser(t, db, "products@example.com", models.RoleProductManager)
	e.cust = orders.Actor{UserID: c.ID, Role: c.Role}
	e.sales = orders.Actor{UserID: s.ID, Role: s.Role}
	e.product = orders.Actor{UserID: p.ID, Role: p.Role}

	return e
}

func (e *env) deliver(t *testing.T, orderID uuid.UUID) {
	t.Helper()
	_, err := e.svc.ForceOrderStatus(context.Background(), e.product, orderID, int(models.DeliveryStatusDelivered))
	require.NoError(t, err)
}

func TestMakePurchaseScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 5, "10.00")

	orderID, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 3)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, orderID)
	assert.Equal(t, 2, testutil.ProductQuantity(t, e.db, a.ID))

	deliveries, err := store.ListOrderDeliveries(ctx, e.db, orderID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "30.00", deliveries[0].TotalPrice.StringFixed(2))
	assert.Equal(t, models.DeliveryStatusProcessing, deliveries[0].Status)
	assert.Equal(t, "Default Address", deliveries[0].DeliveryAddress)

	orderID, err = e.svc.MakePurchase(ctx, e.cust, a.ID, 3)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
	assert.Equal(t, uuid.Nil, orderID)
	assert.Equal(t, 2, testutil.ProductQuantity(t, e.db, a.ID))

	_, err = e.svc.MakePurchase(ctx, e.cust, 99999, 1)
	assert.ErrorIs(t, err, database.ErrProductNotFound)
}

func TestCheckoutAtomicity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	products := make([]*models.Product, 5)
	for i := range products {
		products[i] = testutil.CreateProduct(t, e.db, "P"+string(rune('1'+i)), 10, "5.00")
	}

	items := []orders.CheckoutItem{
		{ProductID: products[0].ID, Quantity: 1},
		{ProductID: products[1].ID, Quantity: 2},
		{ProductID: products[2].ID, Quantity: 11},
		{ProductID: products[3].ID, Quantity: 1},
		{ProductID: products[4].ID, Quantity: 1},
	}

	orderID, err := e.svc.Checkout(ctx, e.cust, orders.CheckoutRequest{Items: items, DeliveryAddress: "1 Main St"})
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
	assert.Equal(t, uuid.Nil, orderID)

	for _, p := range products {
		assert.Equal(t, 10, testutil.ProductQuantity(t, e.db, p.ID))
	}
	assert.Zero(t, testutil.CountRows(t, e.db, "purchases"))
	assert.Zero(t, testutil.CountRows(t, e.db, "deliveries"))
	assert.Empty(t, e.mailer.sent)
}

func TestCheckoutFailsWhenLaterItemExceedsStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 5, "10.00")
	b := testutil.CreateProduct(t, e.db, "B", 10, "10.00")

	_, err := e.svc.Checkout(ctx, e.cust, orders.CheckoutRequest{
		Items: []orders.CheckoutItem{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 100}},
	})
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
	assert.Equal(t, 5, testutil.ProductQuantity(t, e.db, a.ID))
}

func TestCheckoutGroupsLinesAndSnapshotsPrices(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 10, "10.00")
	b := testutil.CreateProduct(t, e.db, "B", 10, "2.50")
	c := testutil.CreateProduct(t, e.db, "C", 10, "1.00")

	_, err := store.AddCartItem(ctx, e.db, store.UserCart(e.cust.UserID), a.ID, 1)
	require.NoError(t, err)

	orderID, err := e.svc.Checkout(ctx, e.cust, orders.CheckoutRequest{
		Items: []orders.CheckoutItem{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: b.ID, Quantity: 2},
			{ProductID: c.ID, Quantity: 3},
		},
		DeliveryAddress: "42 Elm St",
		FirstName:       "Ada",
		LastName:        "Lovelace",
	})
	require.NoError(t, err)

	_, err = store.UpdatePrice(ctx, e.db, a.ID, decimal.RequireFromString("99.00"))
	require.NoError(t, err)

	deliveries, err := store.ListOrderDeliveries(ctx, e.db, orderID)
	require.NoError(t, err)
	require.Len(t, deliveries, 3)

	totals := []string{}
	for _, d := range deliveries {
		assert.Equal(t, orderID, d.OrderID)
		assert.Equal(t, "42 Elm St", d.DeliveryAddress)
		totals = append(totals, d.TotalPrice.StringFixed(2))
	}
	assert.Equal(t, []string{"10.00", "5.00", "3.00"}, totals)

	cart, err := store.GetCart(ctx, e.db, store.UserCart(e.cust.UserID))
	require.NoError(t, err)
	assert.Empty(t, cart)

	require.Len(t, e.mailer.sent, 1)
	assert.Equal(t, "customer@example.com", e.mailer.sent[0].To)
	require.Len(t, e.mailer.sent[0].Attachments, 1)
	assert.Equal(t, "application/pdf", e.mailer.sent[0].Attachments[0].ContentType)
}

func TestCheckoutSurvivesNotificationFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	e := newEnv(t, orders.WithInvoiceRenderer(failingRenderer{}), orders.WithLogger(zap.New(core)))
	a := testutil.CreateProduct(t, e.db, "A", 3, "1.00")

	orderID, err := e.svc.Checkout(context.Background(), e.cust, orders.CheckoutRequest{
		Items: []orders.CheckoutItem{{ProductID: a.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, orderID)
	assert.Equal(t, 2, testutil.ProductQuantity(t, e.db, a.ID))
	assert.Equal(t, 1, logs.FilterMessage("invoice render failed").Len())

	e.mailer.err = errors.New("broker down")
	e.svc = orders.NewService(e.db, orders.WithMailer(e.mailer), orders.WithLogger(zap.New(core)))
	_, err = e.svc.Checkout(context.Background(), e.cust, orders.CheckoutRequest{
		Items: []orders.CheckoutItem{{ProductID: a.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("invoice email failed").Len())
}

func TestCancelIsIdempotentAndRestoresStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 10, "1.00")

	orderID, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, testutil.ProductQuantity(t, e.db, a.ID))

	require.NoError(t, e.svc.Cancel(ctx, e.cust, orderID))
	assert.Equal(t, 10, testutil.ProductQuantity(t, e.db, a.ID))

	assert.ErrorIs(t, e.svc.Cancel(ctx, e.cust, orderID), orders.ErrNotCancellable)
	assert.Equal(t, 10, testutil.ProductQuantity(t, e.db, a.ID))

	assert.ErrorIs(t, e.svc.Cancel(ctx, e.cust, uuid.New()), database.ErrOrderNotFound)
}

func TestConcurrentCancelRestoresOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 10, "1.00")

	orderID, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- e.svc.Cancel(ctx, e.cust, orderID)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, orders.ErrNotCancellable)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 10, testutil.ProductQuantity(t, e.db, a.ID))
}

func TestCancelLeavesNonProcessingLines(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 10, "1.00")
	b := testutil.CreateProduct(t, e.db, "B", 10, "1.00")

	orderID, err := e.svc.Checkout(ctx, e.cust, orders.CheckoutRequest{
		Items: []orders.CheckoutItem{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	deliveries, err := store.ListOrderDeliveries(ctx, e.db, orderID)
	require.NoError(t, err)
	_, err = e.svc.ForceDeliveryStatus(ctx, e.product, deliveries[0].ID, int(models.DeliveryStatusInDelivery))
	require.NoError(t, err)

	require.NoError(t, e.svc.Cancel(ctx, e.cust, orderID))

	deliveries, err = store.ListOrderDeliveries(ctx, e.db, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusInDelivery, deliveries[0].Status)
	assert.Equal(t, models.DeliveryStatusCancelled, deliveries[1].Status)
	assert.Equal(t, 9, testutil.ProductQuantity(t, e.db, a.ID))
	assert.Equal(t, 10, testutil.ProductQuantity(t, e.db, b.ID))
}

func TestCustomersCannotTouchForeignOrders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 10, "1.00")
	other := testutil.CreateUser(t, e.db, "other@example.com", models.RoleCustomer)
	intruder := orders.Actor{UserID: other.ID, Role: models.RoleCustomer}

	orderID, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, e.svc.Cancel(ctx, intruder, orderID), database.ErrOrderNotFound)
	_, err = e.svc.OrderDetails(ctx, intruder, orderID)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
	_, err = e.svc.InvoiceByOrder(ctx, intruder, orders.InvoiceRequest{OrderID: orderID})
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
	_, err = e.svc.InvoiceByOrder(ctx, intruder, orders.InvoiceRequest{OrderID: orderID, UserID: e.cust.UserID})
	assert.ErrorIs(t, err, orders.ErrForbidden)

	pdf, err := e.svc.InvoiceByOrder(ctx, e.cust, orders.InvoiceRequest{OrderID: orderID, FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRefundWindowBoundary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 10, "1.00")
	start := *e.clock

	onTime, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 1)
	require.NoError(t, err)
	late, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 1)
	require.NoError(t, err)
	e.deliver(t, onTime)
	e.deliver(t, late)

	*e.clock = start.Add(31 * 24 * time.Hour)
	assert.ErrorIs(t, e.svc.RequestRefund(ctx, e.cust, late), orders.ErrRefundWindowExpired)

	*e.clock = start.Add(30 * 24 * time.Hour)
	require.NoError(t, e.svc.RequestRefund(ctx, e.cust, onTime))

	deliveries, err := store.ListOrderDeliveries(ctx, e.db, onTime)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusRefundRequested, deliveries[0].Status)

	deliveries, err = store.ListOrderDeliveries(ctx, e.db, late)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, deliveries[0].Status)
}

func TestRefundRequiresDeliveredLines(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 10, "1.00")

	orderID, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, e.svc.RequestRefund(ctx, e.cust, orderID), orders.ErrRefundNotEligible)
	assert.ErrorIs(t, e.svc.ApproveRefund(ctx, e.sales, orderID), orders.ErrRefundNotRequested)
	assert.ErrorIs(t, e.svc.RequestRefund(ctx, e.cust, uuid.New()), database.ErrOrderNotFound)
}

func TestStockConservationThroughRefund(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 20, "12.50")

	refunded, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 3)
	require.NoError(t, err)
	cancelled, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 5)
	require.NoError(t, err)
	kept, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, testutil.ProductQuantity(t, e.db, a.ID))

	require.NoError(t, e.svc.Cancel(ctx, e.cust, cancelled))
	e.deliver(t, refunded)
	e.deliver(t, kept)
	require.NoError(t, e.svc.RequestRefund(ctx, e.cust, refunded))

	ids, err := e.svc.RefundRequestedOrders(ctx, e.sales)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{refunded}, ids)

	require.NoError(t, e.svc.ApproveRefund(ctx, e.sales, refunded))
	assert.ErrorIs(t, e.svc.ApproveRefund(ctx, e.sales, refunded), orders.ErrRefundNotRequested)

	// 20 - 3 - 5 - 2 + 5 + 3
	assert.Equal(t, 18, testutil.ProductQuantity(t, e.db, a.ID))

	require.Len(t, e.mailer.sent, 1)
	assert.Equal(t, "Your refund has been approved", e.mailer.sent[0].Subject)
	assert.Contains(t, e.mailer.sent[0].Body, "$37.50")

	report, err := e.svc.RevenueReport(ctx, e.sales, *e.clock, *e.clock)
	require.NoError(t, err)
	assert.Equal(t, "25.00", report.TotalRevenue.StringFixed(2))
	assert.Equal(t, "12.50", report.TotalCost.StringFixed(2))
	assert.Equal(t, "12.50", report.Profit.StringFixed(2))
}

func TestForceStatusAndReads(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 10, "1.00")

	orderID, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 1)
	require.NoError(t, err)

	updated, err := e.svc.ForceOrderStatus(ctx, e.product, orderID, int(models.DeliveryStatusInDelivery))
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, models.DeliveryStatusInDelivery, updated[0].Status)

	_, err = e.svc.ForceOrderStatus(ctx, e.product, uuid.New(), 1)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
	_, err = e.svc.ForceDeliveryStatus(ctx, e.product, 99999, 1)
	assert.ErrorIs(t, err, database.ErrDeliveryNotFound)

	mine, err := e.svc.MyOrders(ctx, e.cust)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{orderID}, mine)

	all, err := e.svc.AllOrders(ctx, e.product)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{orderID}, all)

	details, err := e.svc.OrderDetails(ctx, e.sales, orderID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "A", details[0].ProductName)

	page, err := e.svc.MyPurchases(ctx, e.cust, "", 0)
	require.NoError(t, err)
	assert.False(t, page.HasMore)

	ranged, err := e.svc.PurchasesByDateRange(ctx, e.sales, e.clock.AddDate(0, 0, -1), *e.clock)
	require.NoError(t, err)
	assert.Len(t, ranged, 1)

	ranged, err = e.svc.PurchasesByDateRange(ctx, e.sales, e.clock.AddDate(0, 0, 1), e.clock.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, ranged)
}

func TestCheckoutWithoutAddressUsesHomeAddress(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 5, "2.00")
	items := []orders.CheckoutItem{{ProductID: a.ID, Quantity: 1}}

	orderID, err := e.svc.Checkout(ctx, e.cust, orders.CheckoutRequest{Items: items})
	require.NoError(t, err)
	deliveries, err := store.ListOrderDeliveries(ctx, e.db, orderID)
	require.NoError(t, err)
	assert.Equal(t, "Default Address", deliveries[0].DeliveryAddress)

	_, err = store.UpdateHomeAddress(ctx, e.db, e.cust.UserID, "7 Elm Rd", 1)
	require.NoError(t, err)

	orderID, err = e.svc.Checkout(ctx, e.cust, orders.CheckoutRequest{Items: items})
	require.NoError(t, err)
	deliveries, err = store.ListOrderDeliveries(ctx, e.db, orderID)
	require.NoError(t, err)
	assert.Equal(t, "7 Elm Rd", deliveries[0].DeliveryAddress)
}

func TestCachedRevenueReportFollowsOrderChanges(t *testing.T) {
	reports := cache.NewReportCache(testutil.SetupRedis(t), time.Hour, nil)
	e := newEnv(t, orders.WithReportCache(reports))
	ctx := context.Background()
	a := testutil.CreateProduct(t, e.db, "A", 10, "10.00")

	first, err := e.svc.MakePurchase(ctx, e.cust, a.ID, 2)
	require.NoError(t, err)

	report, err := e.svc.RevenueReport(ctx, e.sales, *e.clock, *e.clock)
	require.NoError(t, err)
	assert.Equal(t, "20.00", report.TotalRevenue.StringFixed(2))

	_, err = e.svc.MakePurchase(ctx, e.cust, a.ID, 1)
	require.NoError(t, err)
	report, err = e.svc.RevenueReport(ctx, e.sales, *e.clock, *e.clock)
	require.NoError(t, err)
	assert.Equal(t, "30.00", report.TotalRevenue.StringFixed(2))

	require.NoError(t, e.svc.Cancel(ctx, e.cust, first))
	report, err = e.svc.RevenueReport(ctx, e.sales, *e.clock, *e.clock)
	require.NoError(t, err)
	assert.Equal(t, "10.00", report.TotalRevenue.StringFixed(2))
}
