package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/notify"
	"github.com/safar/go-storefront/internal/store"
)

const (
	defaultMailTimeout   = 10 * time.Second
	defaultMailSignature = "Storefront Team"
)

var (
	ErrForbidden       = errors.New("operation not permitted for this role")
	ErrInvalidProduct  = errors.New("product name is required and stock and price must not be negative")
	ErrInvalidStock    = errors.New("stock must not be negative")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidDiscount = errors.New("discount percentage must be between 0 and 100, exclusive")
	ErrInvalidCategory = errors.New("category name is required")
)

var hundred = decimal.NewFromInt(100)

// ReportInvalidator retires cached revenue reports. Repricing changes the reference price
// that report costs are computed from.
type ReportInvalidator interface {
	Invalidate(ctx context.Context)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) {}

// Service manages the product catalog. Product managers own products, stock and categories;
// sales managers own prices and discounts. Any signed-in user keeps a wishlist and is mailed
// when a product on it gets cheaper.
type Service struct {
	db          *sql.DB
	logger      *zap.Logger
	mailer      notify.Mailer
	reports     ReportInvalidator
	mailTimeout time.Duration
	signature   string
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMailer sets where discount alerts go.
func WithMailer(m notify.Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

func WithReportInvalidator(r ReportInvalidator) Option {
	return func(s *Service) { s.reports = r }
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
		db:          db,
		mailTimeout: defaultMailTimeout,
		signature:   defaultMailSignature,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.mailer == nil {
		s.mailer = notify.NewLogMailer(s.logger)
	}
	if s.reports == nil {
		s.reports = noopInvalidator{}
	}
	return s
}

func requireRole(role models.Role, allowed models.Role) error {
	if role != allowed {
		return ErrForbidden
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, role models.Role, p store.CreateProductParams) (*models.Product, error) {
	if err := requireRole(role, models.RoleProductManager); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.Quantity < 0 || p.Price.IsNegative() {
		return nil, ErrInvalidProduct
	}

	product, err := store.CreateProduct(ctx, s.db, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return store.GetProduct(ctx, s.db, id)
}

func (s *Service) ListProducts(ctx context.Context, categoryID int64, page, pageSize int) (*store.OffsetPage[models.Product], error) {
	page, pageSize = store.Paging(page, pageSize)
	return store.ListProducts(ctx, s.db, categoryID, page, pageSize)
}

// SetStock overwrites a product's stock level. version must match the product's current
// version or ErrOptimisticLockFailed is returned.
func (s *Service) SetStock(ctx context.Context, role models.Role, productID int64, quantity, version int) (*models.Product, error) {
	if err := requireRole(role, models.RoleProductManager); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, ErrInvalidStock
	}

	product, err := store.UpdateStockOptimistic(ctx, s.db, productID, quantity, version)
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock updated",
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("version", product.Version),
	)
	return product, nil
}

// SetPrice sets a new list price. When it is lower than the price it replaces, wishlisting
// users are sent a discount alert.
func (s *Service) SetPrice(ctx context.Context, role models.Role, productID int64, price decimal.Decimal) (*models.Product, error) {
	if err := requireRole(role, models.RoleSalesManager); err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	previous, err := store.GetProduct(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}

	product, err := store.UpdatePrice(ctx, s.db, productID, price)
	if err != nil {
		return nil, err
	}
	s.reports.Invalidate(ctx)

	s.logger.Info("price updated", zap.Int64("product_id", productID), zap.String("price", price.String()))

	if price.LessThan(previous.Price) {
		s.sendDiscountAlerts(ctx, []priceDrop{{product: *product, was: previous.Price}})
	}
	return product, nil
}

// ApplyDiscount reprices the listed products relative to their reference price and sends
// discount alerts to the users wishlisting them.
func (s *Service) ApplyDiscount(ctx context.Context, role models.Role, productIDs []int64, percentage decimal.Decimal) ([]models.Product, error) {
	if err := requireRole(role, models.RoleSalesManager); err != nil {
		return nil, err
	}
	if !percentage.IsPositive() || percentage.GreaterThanOrEqual(hundred) {
		return nil, ErrInvalidDiscount
	}

	products, err := store.ApplyDiscount(ctx, s.db, productIDs, percentage)
	if err != nil {
		return nil, err
	}

	s.reports.Invalidate(ctx)

	s.logger.Info("discount applied",
		zap.Int("requested", len(productIDs)),
		zap.Int("updated", len(products)),
		zap.String("percentage", percentage.String()),
	)

	drops := make([]priceDrop, 0, len(products))
	for _, p := range products {
		drops = append(drops, priceDrop{product: p, was: p.OldPrice})
	}
	s.sendDiscountAlerts(ctx, drops)
	return products, nil
}

func (s *Service) CreateCategory(ctx context.Context, role models.Role, name string) (*models.Category, error) {
	if err := requireRole(role, models.RoleProductManager); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidCategory
	}
	return store.CreateCategory(ctx, s.db, name)
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := store.ListCategories(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}
