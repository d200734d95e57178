package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

type stubCarts struct {
	CartService

	items func(ctx context.Context, owner store.CartOwner) ([]models.CartItem, error)
	add   func(ctx context.Context, owner store.CartOwner, productID int64, quantity int) (*models.CartItem, error)
	merge func(ctx context.Context, guestCartID uuid.UUID, userID int64) ([]models.CartItem, error)
}

func (s *stubCarts) Items(ctx context.Context, owner store.CartOwner) ([]models.CartItem, error) {
	return s.items(ctx, owner)
}

func (s *stubCarts) Add(ctx context.Context, owner store.CartOwner, productID int64, quantity int) (*models.CartItem, error) {
	return s.add(ctx, owner, productID, quantity)
}

func (s *stubCarts) Merge(ctx context.Context, guestCartID uuid.UUID, userID int64) ([]models.CartItem, error) {
	return s.merge(ctx, guestCartID, userID)
}

var testCookie = GuestCookie{Name: "GuestCartId", TTL: 7 * 24 * time.Hour, Secure: true}

func cartRouter(svc CartService) chi.Router {
	router := chi.NewRouter()
	router.Route("/cart", NewCartHandlers(svc, testCookie).Routes)
	return router
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestGuestCartMintsCookie(t *testing.T) {
	var seen store.CartOwner
	svc := &stubCarts{
		items: func(_ context.Context, owner store.CartOwner) ([]models.CartItem, error) {
			seen = owner
			return nil, nil
		},
	}

	rec := serve(cartRouter(svc), httptest.NewRequest(http.MethodGet, "/cart", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"items_count":0}`, rec.Body.String())

	cookie := findCookie(rec, "GuestCartId")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
	assert.Equal(t, cookie.Value, seen.GuestCartID.String())
	assert.Zero(t, seen.UserID)
}

func TestGuestCartReusesCookie(t *testing.T) {
	guestID := uuid.New()
	svc := &stubCarts{
		add: func(_ context.Context, owner store.CartOwner, productID int64, quantity int) (*models.CartItem, error) {
			assert.Equal(t, store.GuestCart(guestID), owner)
			return &models.CartItem{ProductID: productID, Quantity: quantity, GuestCartID: &guestID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBufferString(`{"productId":3,"quantity":2}`))
	req.AddCookie(&http.Cookie{Name: "GuestCartId", Value: guestID.String()})
	rec := serve(cartRouter(svc), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, findCookie(rec, "GuestCartId"))
}

func TestSignedInCartIgnoresGuestCookie(t *testing.T) {
	svc := &stubCarts{
		items: func(_ context.Context, owner store.CartOwner) ([]models.CartItem, error) {
			assert.Equal(t, store.UserCart(7), owner)
			return []models.CartItem{{ProductID: 1, Quantity: 1}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: "GuestCartId", Value: uuid.NewString()})
	rec := serve(cartRouter(svc), signedIn(req, 7, models.RoleCustomer))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["items_count"])
}

func TestAddItemRejectsBadQuantity(t *testing.T) {
	svc := &stubCarts{
		add: func(context.Context, store.CartOwner, int64, int) (*models.CartItem, error) {
			return nil, cart.ErrInvalidQuantity
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBufferString(`{"productId":3,"quantity":0}`))
	rec := serve(cartRouter(svc), signedIn(req, 7, models.RoleCustomer))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMergeExpiresGuestCookie(t *testing.T) {
	guestID := uuid.New()
	svc := &stubCarts{
		merge: func(_ context.Context, gotGuest uuid.UUID, userID int64) ([]models.CartItem, error) {
			assert.Equal(t, guestID, gotGuest)
			assert.Equal(t, int64(7), userID)
			return []models.CartItem{{ProductID: 1, Quantity: 4}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/cart/merge", nil)
	req.AddCookie(&http.Cookie{Name: "GuestCartId", Value: guestID.String()})
	rec := serve(cartRouter(svc), signedIn(req, 7, models.RoleCustomer))

	require.Equal(t, http.StatusOK, rec.Code)
	cookie := findCookie(rec, "GuestCartId")
	require.NotNil(t, cookie)
	assert.Negative(t, cookie.MaxAge)
}

func TestMergeRequiresSignIn(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/cart/merge", nil)
	req.AddCookie(&http.Cookie{Name: "GuestCartId", Value: uuid.NewString()})
	rec := serve(cartRouter(&stubCarts{}), req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
