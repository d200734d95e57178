package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	timeout     time.Duration
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers

	purchases  RouteRegistrar
	cart       RouteRegistrar
	products   RouteRegistrar
	reviews    RouteRegistrar
	categories RouteRegistrar
	users      RouteRegistrar
}

type Option func(*routerConfig)

const defaultTimeout = 30 * time.Second

// NewRouter builds the chi router with shared middleware. Route groups that were not
// configured are not mounted.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.Use(middleware.Timeout(cfg.timeout))

	if cfg.health == nil {
		cfg.health = NewHealthHandlers(nil)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "route_not_found", fmt.Sprintf("no route for %s", req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	// mount registers every configured registrar on one sub-router for path.
	mount := func(path string, registrars ...RouteRegistrar) {
		var set []RouteRegistrar
		for _, reg := range registrars {
			if reg != nil {
				set = append(set, reg)
			}
		}
		if len(set) == 0 {
			return
		}
		r.Route(path, func(sub chi.Router) {
			for _, reg := range set {
				reg(sub)
			}
		})
	}
	mount("/purchases", cfg.purchases)
	mount("/cart", cfg.cart)
	mount("/products", cfg.products, cfg.reviews)
	mount("/categories", cfg.categories)
	mount("/users", cfg.users)

	return r
}

// WithMiddlewares appends middleware that runs after request id and real IP resolution, in
// the order given.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cfg *routerConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

func WithPurchaseRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.purchases = reg
	}
}

func WithCartRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.cart = reg
	}
}

func WithProductRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.products = reg
	}
}

// WithReviewRoutes adds comment and rating routes to /products.
func WithReviewRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.reviews = reg
	}
}

func WithCategoryRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.categories = reg
	}
}

func WithUserRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.users = reg
	}
}
