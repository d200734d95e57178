package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/accounts"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/cache"
	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/httpapi"
	"github.com/safar/go-storefront/internal/logging"
	"github.com/safar/go-storefront/internal/notify"
	"github.com/safar/go-storefront/internal/orders"
	"github.com/safar/go-storefront/internal/reviews"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := database.NewConnection(context.Background(), &cfg.Database, logger.Named("database"))
	if err != nil {
		return err
	}
	defer db.Close()

	serviceOpts := []orders.Option{
		orders.WithLogger(logger.Named("orders")),
		orders.WithRefundWindow(time.Duration(cfg.Orders.RefundWindowDays) * 24 * time.Hour),
		orders.WithCostRatio(cfg.Orders.CostRatio),
		orders.WithDefaultAddress(cfg.Orders.DefaultAddress),
		orders.WithMailTimeout(cfg.Orders.MailTimeout),
		orders.WithMailSignature(cfg.Mail.Signature),
	}

	var reports *cache.ReportCache
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, revenue reports are not cached", zap.Error(err))
		} else {
			defer client.Close()
			reports = cache.NewReportCache(client, cfg.Redis.ReportTTL, logger.Named("cache"))
			serviceOpts = append(serviceOpts, orders.WithReportCache(reports))
			logger.Info("revenue report cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	var mailer notify.Mailer = notify.NewLogMailer(logger.Named("mail"))
	if cfg.AMQP.URL != "" {
		amqpMailer, err := notify.DialAMQPMailer(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.Mail.From, logger.Named("mail"))
		if err != nil {
			return err
		}
		defer amqpMailer.Close()
		mailer = amqpMailer
		logger.Info("mail delivery via rabbitmq", zap.String("exchange", cfg.AMQP.Exchange))
	}
	serviceOpts = append(serviceOpts, orders.WithMailer(mailer))

	catalogOpts := []catalog.Option{
		catalog.WithLogger(logger.Named("catalog")),
		catalog.WithMailer(mailer),
		catalog.WithMailTimeout(cfg.Orders.MailTimeout),
		catalog.WithMailSignature(cfg.Mail.Signature),
	}
	if reports != nil {
		catalogOpts = append(catalogOpts, catalog.WithReportInvalidator(reports))
	}

	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)

	purchases := httpapi.NewPurchaseHandlers(orders.NewService(db, serviceOpts...))
	guestCookie := httpapi.GuestCookie{
		Name:   cfg.Auth.GuestCookieName,
		TTL:    cfg.Auth.GuestCookieTTL,
		Secure: cfg.Auth.SecureCookies,
	}
	cartService := cart.NewService(db, logger.Named("cart"))
	carts := httpapi.NewCartHandlers(cartService, guestCookie)
	products := httpapi.NewCatalogHandlers(catalog.NewService(db, catalogOpts...))
	productReviews := httpapi.NewReviewHandlers(reviews.NewService(db, logger.Named("reviews")))
	users := httpapi.NewUserHandlers(accounts.NewService(db, logger.Named("accounts")), authenticator, cfg.Auth.TokenTTL).
		WithGuestCartMerge(cartService, guestCookie)

	router := httpapi.NewRouter(
		httpapi.WithTimeout(cfg.Server.WriteTimeout),
		httpapi.WithMiddlewares(
			authenticator.Authenticate,
			logging.RequestLogger(logger),
			logging.Recoverer(logger),
		),
		httpapi.WithHealthHandlers(httpapi.NewHealthHandlers(db)),
		httpapi.WithPurchaseRoutes(purchases.Routes),
		httpapi.WithCartRoutes(carts.Routes),
		httpapi.WithProductRoutes(products.ProductRoutes),
		httpapi.WithReviewRoutes(productReviews.Routes),
		httpapi.WithCategoryRoutes(products.CategoryRoutes),
		httpapi.WithUserRoutes(users.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(ctx)
}
