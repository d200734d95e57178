package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-storefront/internal/accounts"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

type stubAccounts struct {
	AccountService

	register      func(ctx context.Context, email, name, password string) (*models.User, error)
	login         func(ctx context.Context, email, password string) (*models.User, error)
	updateAddress func(ctx context.Context, callerID int64, address string, version int) (*models.User, error)
}

func (s *stubAccounts) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	return s.register(ctx, email, name, password)
}

func (s *stubAccounts) Login(ctx context.Context, email, password string) (*models.User, error) {
	return s.login(ctx, email, password)
}

func (s *stubAccounts) UpdateAddress(ctx context.Context, callerID int64, address string, version int) (*models.User, error) {
	return s.updateAddress(ctx, callerID, address, version)
}

type fixedIssuer string

func (f fixedIssuer) IssueToken(int64, models.Role, time.Duration) (string, error) {
	return string(f), nil
}

func userRouter(svc AccountService, tokens TokenIssuer) chi.Router {
	router := chi.NewRouter()
	router.Route("/users", NewUserHandlers(svc, tokens, time.Hour).Routes)
	return router
}

func TestRegisterReturnsToken(t *testing.T) {
	var gotPassword string
	svc := &stubAccounts{register: func(_ context.Context, email, name, password string) (*models.User, error) {
		gotPassword = password
		return &models.User{ID: 9, Email: email, Name: name, Role: models.RoleCustomer}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/users",
		bytes.NewBufferString(`{"email":"ada@example.com","name":"Ada","password":"correct horse"}`))
	rec := serve(userRouter(svc, fixedIssuer("signed")), req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "signed", body["token"])
	assert.Equal(t, "ada@example.com", body["user"].(map[string]any)["email"])
	assert.Equal(t, "correct horse", gotPassword)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc := &stubAccounts{register: func(context.Context, string, string, string) (*models.User, error) {
		return nil, accounts.ErrEmailTaken
	}}

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(`{"email":"ada@example.com","name":"Ada"}`))
	rec := serve(userRouter(svc, nil), req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email_taken", decodeBody(t, rec)["error"])
}

func TestUpdateAddressUsesCaller(t *testing.T) {
	var gotCaller int64
	svc := &stubAccounts{updateAddress: func(_ context.Context, callerID int64, address string, version int) (*models.User, error) {
		gotCaller = callerID
		if version != 2 {
			return nil, database.ErrOptimisticLockFailed
		}
		return &models.User{ID: callerID, HomeAddress: address, Version: version + 1}, nil
	}}
	router := userRouter(svc, nil)

	req := signedIn(httptest.NewRequest(http.MethodPut, "/users/me/address",
		bytes.NewBufferString(`{"address":"1 Main St","version":2}`)), 4, models.RoleCustomer)
	rec := serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), gotCaller)
	assert.Equal(t, "1 Main St", decodeBody(t, rec)["home_address"])

	req = signedIn(httptest.NewRequest(http.MethodPut, "/users/me/address",
		bytes.NewBufferString(`{"address":"1 Main St","version":1}`)), 4, models.RoleCustomer)
	assert.Equal(t, http.StatusConflict, serve(router, req).Code)
}

func TestUpdateAddressRequiresSignIn(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/users/me/address", bytes.NewBufferString(`{"address":"x"}`))
	assert.Equal(t, http.StatusUnauthorized, serve(userRouter(&stubAccounts{}, nil), req).Code)
}

func loginAs(user *models.User) *stubAccounts {
	return &stubAccounts{login: func(_ context.Context, email, password string) (*models.User, error) {
		if email != user.Email || password != "correct horse" {
			return nil, accounts.ErrInvalidCredentials
		}
		return user, nil
	}}
}

func loginRequestWithGuestCart(guestID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/users/login",
		bytes.NewBufferString(`{"email":"ada@example.com","password":"correct horse"}`))
	if guestID != uuid.Nil {
		req.AddCookie(&http.Cookie{Name: "GuestCartId", Value: guestID.String()})
	}
	return req
}

func TestLoginIssuesTokenAndMergesGuestCart(t *testing.T) {
	user := &models.User{ID: 5, Email: "ada@example.com", Role: models.RoleCustomer}
	guestID := uuid.New()

	var mergedGuest uuid.UUID
	var mergedUser int64
	carts := &stubCarts{merge: func(_ context.Context, guestCartID uuid.UUID, userID int64) ([]models.CartItem, error) {
		mergedGuest, mergedUser = guestCartID, userID
		return []models.CartItem{{ProductID: 3, Quantity: 2}}, nil
	}}

	router := chi.NewRouter()
	router.Route("/users", NewUserHandlers(loginAs(user), fixedIssuer("signed"), time.Hour).
		WithGuestCartMerge(carts, testCookie).Routes)

	rec := serve(router, loginRequestWithGuestCart(guestID))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "signed", body["token"])
	assert.Len(t, body["cart"], 1)
	assert.Equal(t, guestID, mergedGuest)
	assert.Equal(t, int64(5), mergedUser)

	cookie := findCookie(rec, "GuestCartId")
	require.NotNil(t, cookie)
	assert.Negative(t, cookie.MaxAge)
}

func TestLoginWithoutGuestCookieSkipsMerge(t *testing.T) {
	user := &models.User{ID: 5, Email: "ada@example.com", Role: models.RoleCustomer}
	carts := &stubCarts{}

	router := chi.NewRouter()
	router.Route("/users", NewUserHandlers(loginAs(user), fixedIssuer("signed"), time.Hour).
		WithGuestCartMerge(carts, testCookie).Routes)

	rec := serve(router, loginRequestWithGuestCart(uuid.Nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decodeBody(t, rec), "cart")
	assert.Nil(t, findCookie(rec, "GuestCartId"))
}

func TestLoginKeepsGuestCookieWhenMergeFails(t *testing.T) {
	user := &models.User{ID: 5, Email: "ada@example.com", Role: models.RoleCustomer}
	carts := &stubCarts{merge: func(context.Context, uuid.UUID, int64) ([]models.CartItem, error) {
		return nil, errors.New("database unavailable")
	}}

	router := chi.NewRouter()
	router.Route("/users", NewUserHandlers(loginAs(user), fixedIssuer("signed"), time.Hour).
		WithGuestCartMerge(carts, testCookie).Routes)

	rec := serve(router, loginRequestWithGuestCart(uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "signed", decodeBody(t, rec)["token"])
	assert.Nil(t, findCookie(rec, "GuestCartId"))
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	user := &models.User{ID: 5, Email: "ada@example.com", Role: models.RoleCustomer}

	req := httptest.NewRequest(http.MethodPost, "/users/login",
		bytes.NewBufferString(`{"email":"ada@example.com","password":"wrong"}`))
	rec := serve(userRouter(loginAs(user), fixedIssuer("signed")), req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "invalid_credentials", body["error"])
	assert.NotContains(t, body, "token")
}
