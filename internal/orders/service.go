package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/invoice"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/notify"
	"github.com/safar/go-storefront/internal/store"
)

const (
	defaultRefundWindow   = 30 * 24 * time.Hour
	defaultAddress        = "Default Address"
	defaultMailTimeout    = 10 * time.Second
	defaultMailSignature  = "Storefront Team"
	refundApprovedSubject = "Your refund has been approved"
	invoiceSubject        = "Your invoice"
)

var defaultCostRatio = decimal.RequireFromString("0.5")

var (
	ErrNotCancellable      = errors.New("order has no lines awaiting processing")
	ErrRefundNotEligible   = errors.New("order has no delivered lines to refund")
	ErrRefundWindowExpired = errors.New("refund window has expired")
	ErrRefundNotRequested  = errors.New("order has no lines with a pending refund request")
	ErrInvalidStatus       = errors.New("unknown delivery status")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrEmptyCheckout       = errors.New("checkout has no items")
	ErrInvalidDateRange    = errors.New("start date is after end date")
	ErrForbidden           = errors.New("operation not permitted for this role")
)

// Actor is the already-authenticated caller of an engine operation.
type Actor struct {
	UserID int64
	Role   models.Role
}

// InvoiceRenderer turns an order into a printable document.
type InvoiceRenderer interface {
	Render(inv *models.Invoice) ([]byte, error)
}

// ReportCache stores computed revenue reports. Implementations must treat failures as misses.
// Get returns the generation the lookup ran under; Set stores the report under that generation
// and Invalidate starts a new one, so reports computed before a change are never served again.
type ReportCache interface {
	Get(ctx context.Context, from, to time.Time) (*models.RevenueReport, int64, bool)
	Set(ctx context.Context, generation int64, report *models.RevenueReport)
	Invalidate(ctx context.Context)
}

type noopCache struct{}

func (noopCache) Get(context.Context, time.Time, time.Time) (*models.RevenueReport, int64, bool) {
	return nil, 0, false
}

func (noopCache) Set(context.Context, int64, *models.RevenueReport) {}

func (noopCache) Invalidate(context.Context) {}

type Service struct {
	db       *sql.DB
	renderer InvoiceRenderer
	mailer   notify.Mailer
	cache    ReportCache
	logger   *zap.Logger
	now      func() time.Time

	refundWindow   time.Duration
	costRatio      decimal.Decimal
	defaultAddress string
	mailTimeout    time.Duration
	signature      string
}

type Option func(*Service)

func WithInvoiceRenderer(r InvoiceRenderer) Option {
	return func(s *Service) { s.renderer = r }
}

func WithMailer(m notify.Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

func WithReportCache(c ReportCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock injects the time source used for purchase dates and the refund window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRefundWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refundWindow = d
		}
	}
}

// WithCostRatio sets the share of a product's reference price counted as cost in revenue
// reports.
func WithCostRatio(ratio float64) Option {
	return func(s *Service) {
		if ratio >= 0 && ratio <= 1 {
			s.costRatio = decimal.NewFromFloat(ratio)
		}
	}
}

func WithDefaultAddress(address string) Option {
	return func(s *Service) {
		if address != "" {
			s.defaultAddress = address
		}
	}
}

func WithMailTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.mailTimeout = d
		}
	}
}

func WithMailSignature(signature string) Option {
	return func(s *Service) {
		if signature != "" {
			s.signature = signature
		}
	}
}

func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:             db,
		now:            time.Now,
		refundWindow:   defaultRefundWindow,
		costRatio:      defaultCostRatio,
		defaultAddress: defaultAddress,
		mailTimeout:    defaultMailTimeout,
		signature:      defaultMailSignature,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.renderer == nil {
		s.renderer = invoice.NewPDFRenderer()
	}
	if s.mailer == nil {
		s.mailer = notify.NewLogMailer(s.logger)
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}

	return s
}

func (s *Service) txOptions(op string) database.TxOptions {
	return database.DefaultTxOptions().Logged(func(attempt int, class database.ErrorClass, err error) {
		s.logger.Warn("retrying transaction",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Stringer("class", class),
			zap.Error(err),
		)
	})
}

func requireRole(actor Actor, roles ...models.Role) error {
	if actor.UserID == 0 {
		return ErrForbidden
	}
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// ownerFilter limits customers to their own orders. Staff see every order.
func ownerFilter(actor Actor) int64 {
	if actor.Role.IsStaff() {
		return 0
	}
	return actor.UserID
}

// noMatchingLines tells "order does not exist for this caller" apart from "order exists but
// no line is in the required state".
func noMatchingLines(ctx context.Context, q database.Querier, orderID uuid.UUID, customerID int64, stateErr error) error {
	exists, err := store.OrderExists(ctx, q, orderID, customerID)
	if err != nil {
		return err
	}
	if !exists {
		return database.ErrOrderNotFound
	}
	return stateErr
}

// mailContext detaches post-commit notification from request cancellation and bounds it.
func (s *Service) mailContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.mailTimeout)
}
