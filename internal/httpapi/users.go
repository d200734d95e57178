package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/logging"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

type AccountService interface {
	Register(ctx context.Context, email, name, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	Get(ctx context.Context, callerID int64, role models.Role, userID int64) (*models.User, error)
	List(ctx context.Context, role models.Role, page, pageSize int) (*store.OffsetPage[models.User], error)
	UpdateAddress(ctx context.Context, callerID int64, address string, version int) (*models.User, error)
}

type TokenIssuer interface {
	IssueToken(userID int64, role models.Role, ttl time.Duration) (string, error)
}

// CartMerger folds a guest cart into a user's cart.
type CartMerger interface {
	Merge(ctx context.Context, guestCartID uuid.UUID, userID int64) ([]models.CartItem, error)
}

type UserHandlers struct {
	accounts AccountService
	tokens   TokenIssuer
	tokenTTL time.Duration

	carts  CartMerger
	cookie GuestCookie
}

// NewUserHandlers wires the account endpoints. With a nil issuer registration and login
// return no token.
func NewUserHandlers(accounts AccountService, tokens TokenIssuer, tokenTTL time.Duration) *UserHandlers {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &UserHandlers{accounts: accounts, tokens: tokens, tokenTTL: tokenTTL}
}

// WithGuestCartMerge makes login fold the visitor's guest cart, named by cookie, into the
// account's cart.
func (h *UserHandlers) WithGuestCartMerge(carts CartMerger, cookie GuestCookie) *UserHandlers {
	h.carts = carts
	h.cookie = cookie.withDefaults()
	return h
}

func (h *UserHandlers) Routes(r chi.Router) {
	r.Post("/", h.register)
	r.Post("/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles())
		r.Get("/me", h.me)
		r.Put("/me/address", h.updateAddress)
		r.Get("/{userId}", h.getUser)
		r.With(auth.RequireRoles(models.RoleSalesManager, models.RoleProductManager)).Get("/", h.listUsers)
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type registerResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  *models.User      `json:"user"`
	Token string            `json:"token,omitempty"`
	Cart  []models.CartItem `json:"cart,omitempty"`
}

func (h *UserHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, err := h.issue(user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{User: user, Token: token})
}

// login checks the password, issues a token and, when the visitor carries a guest cart
// cookie, merges that cart into the account. A failed merge keeps the cookie so the client
// can retry through POST /cart/merge.
func (h *UserHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, err := h.issue(user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := loginResponse{User: user, Token: token}
	if h.carts != nil {
		if guestID, ok := h.cookie.cartID(r); ok {
			items, err := h.carts.Merge(r.Context(), guestID, user.ID)
			if err != nil {
				logging.FromContext(r.Context()).Warn("guest cart merge on login failed",
					zap.Int64("user_id", user.ID),
					zap.Error(err),
				)
			} else {
				h.cookie.expire(w)
				resp.Cart = nonNil(items)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandlers) issue(user *models.User) (string, error) {
	if h.tokens == nil {
		return "", nil
	}
	return h.tokens.IssueToken(user.ID, user.Role, h.tokenTTL)
}

func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	h.writeUser(w, r, identity, identity.UserID)
}

type addressRequest struct {
	Address string `json:"address"`
	Version int    `json:"version"`
}

func (h *UserHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	user, err := h.accounts.UpdateAddress(r.Context(), identity.UserID, req.Address, req.Version)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := int64Param(r, "userId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	h.writeUser(w, r, identity, userID)
}

func (h *UserHandlers) writeUser(w http.ResponseWriter, r *http.Request, identity *auth.Identity, userID int64) {
	user, err := h.accounts.Get(r.Context(), identity.UserID, identity.Role, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.accounts.List(r.Context(), roleOf(r), queryInt(r, "page", 1), queryInt(r, "page_size", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}
