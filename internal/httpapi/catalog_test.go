package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

type stubCatalog struct {
	CatalogService

	createCategory func(ctx context.Context, role models.Role, name string) (*models.Category, error)
	addToWishlist  func(ctx context.Context, userID, productID int64) (*models.WishlistItem, error)
	removeWishlist func(ctx context.Context, userID, productID int64) error
}

func (s *stubCatalog) CreateCategory(ctx context.Context, role models.Role, name string) (*models.Category, error) {
	return s.createCategory(ctx, role, name)
}

func (s *stubCatalog) AddToWishlist(ctx context.Context, userID, productID int64) (*models.WishlistItem, error) {
	return s.addToWishlist(ctx, userID, productID)
}

func (s *stubCatalog) RemoveFromWishlist(ctx context.Context, userID, productID int64) error {
	return s.removeWishlist(ctx, userID, productID)
}

func catalogRouter(svc CatalogService) chi.Router {
	h := NewCatalogHandlers(svc)
	router := chi.NewRouter()
	router.Route("/products", h.ProductRoutes)
	router.Route("/categories", h.CategoryRoutes)
	return router
}

func TestCreateCategoryDuplicateConflicts(t *testing.T) {
	svc := &stubCatalog{createCategory: func(_ context.Context, _ models.Role, name string) (*models.Category, error) {
		if name == "Lighting" {
			return nil, database.ErrCategoryExists
		}
		return &models.Category{ID: 2, Name: name}, nil
	}}
	router := catalogRouter(svc)

	req := signedIn(httptest.NewRequest(http.MethodPost, "/categories", bytes.NewBufferString(`{"name":"Lighting"}`)), 1, models.RoleProductManager)
	rec := serve(router, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "category_exists", decodeBody(t, rec)["error"])

	req = signedIn(httptest.NewRequest(http.MethodPost, "/categories", bytes.NewBufferString(`{"name":"Seating"}`)), 1, models.RoleProductManager)
	assert.Equal(t, http.StatusCreated, serve(router, req).Code)
}

func TestWishlistRoutes(t *testing.T) {
	var gotUser, gotProduct int64
	svc := &stubCatalog{
		addToWishlist: func(_ context.Context, userID, productID int64) (*models.WishlistItem, error) {
			gotUser, gotProduct = userID, productID
			return &models.WishlistItem{ID: 1, UserID: userID, ProductID: productID}, nil
		},
		removeWishlist: func(_ context.Context, _, productID int64) error {
			if productID == 9 {
				return database.ErrWishlistItemNotFound
			}
			return nil
		},
	}
	router := catalogRouter(svc)

	rec := serve(router, signedIn(httptest.NewRequest(http.MethodPost, "/products/5/wishlist", nil), 3, models.RoleCustomer))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(3), gotUser)
	assert.Equal(t, int64(5), gotProduct)

	rec = serve(router, signedIn(httptest.NewRequest(http.MethodDelete, "/products/5/wishlist", nil), 3, models.RoleCustomer))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, signedIn(httptest.NewRequest(http.MethodDelete, "/products/9/wishlist", nil), 3, models.RoleCustomer))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "wishlist_item_not_found", decodeBody(t, rec)["error"])

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/products/5/wishlist", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
