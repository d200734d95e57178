package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

type CartService interface {
	Items(ctx context.Context, owner store.CartOwner) ([]models.CartItem, error)
	Add(ctx context.Context, owner store.CartOwner, productID int64, quantity int) (*models.CartItem, error)
	Update(ctx context.Context, owner store.CartOwner, productID int64, quantity int) (*models.CartItem, error)
	Remove(ctx context.Context, owner store.CartOwner, productID int64) error
	Clear(ctx context.Context, owner store.CartOwner) (int64, error)
	Merge(ctx context.Context, guestCartID uuid.UUID, userID int64) ([]models.CartItem, error)
}

// GuestCookie configures the cookie that carries an anonymous visitor's cart id.
type GuestCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

func (c GuestCookie) withDefaults() GuestCookie {
	if c.Name == "" {
		c.Name = "GuestCartId"
	}
	if c.TTL <= 0 {
		c.TTL = 7 * 24 * time.Hour
	}
	return c
}

// cartID reads the guest cart id from the request, if a well-formed one is present.
func (c GuestCookie) cartID(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c GuestCookie) set(w http.ResponseWriter, id uuid.UUID) {
	http.SetCookie(w, c.cookie(id.String(), int(c.TTL.Seconds())))
}

func (c GuestCookie) expire(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c GuestCookie) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

type CartHandlers struct {
	carts  CartService
	cookie GuestCookie
}

func NewCartHandlers(carts CartService, cookie GuestCookie) *CartHandlers {
	return &CartHandlers{carts: carts, cookie: cookie.withDefaults()}
}

func (h *CartHandlers) Routes(r chi.Router) {
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{productId}", h.updateItem)
	r.Delete("/items/{productId}", h.removeItem)
	r.With(auth.RequireRoles()).Post("/merge", h.merge)
}

type cartResponse struct {
	Items      []models.CartItem `json:"items"`
	ItemsCount int               `json:"items_count"`
}

func newCartResponse(items []models.CartItem) cartResponse {
	items = nonNil(items)
	return cartResponse{Items: items, ItemsCount: len(items)}
}

// owner resolves whose cart the request addresses. Signed-in users always use their own cart;
// anonymous visitors get a guest cart id, minted and handed out as a cookie on first use.
func (h *CartHandlers) owner(w http.ResponseWriter, r *http.Request) store.CartOwner {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return store.UserCart(identity.UserID)
	}

	if id, ok := h.cookie.cartID(r); ok {
		return store.GuestCart(id)
	}

	id := uuid.New()
	h.cookie.set(w, id)
	return store.GuestCart(id)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.carts.Items(r.Context(), h.owner(w, r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newCartResponse(items))
}

type cartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	item, err := h.carts.Add(r.Context(), h.owner(w, r), req.ProductID, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req cartQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	item, err := h.carts.Update(r.Context(), h.owner(w, r), productID, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.carts.Remove(r.Context(), h.owner(w, r), productID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	if _, err := h.carts.Clear(r.Context(), h.owner(w, r)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// merge folds the visitor's guest cart into the signed-in user's cart and retires the guest
// cookie. Without a guest cookie it simply returns the user's cart.
func (h *CartHandlers) merge(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	guestID, ok := h.cookie.cartID(r)
	if !ok {
		items, err := h.carts.Items(r.Context(), store.UserCart(identity.UserID))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newCartResponse(items))
		return
	}

	items, err := h.carts.Merge(r.Context(), guestID, identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.cookie.expire(w)
	writeJSON(w, http.StatusOK, newCartResponse(items))
}
