package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/accounts"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/logging"
	"github.com/safar/go-storefront/internal/orders"
	"github.com/safar/go-storefront/internal/reviews"
	"github.com/safar/go-storefront/internal/store"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "invalid_request", message)
}

// classify maps a service error onto an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrForbidden),
		errors.Is(err, catalog.ErrForbidden),
		errors.Is(err, accounts.ErrForbidden),
		errors.Is(err, reviews.ErrForbidden):
		return http.StatusForbidden, "forbidden"

	case errors.Is(err, orders.ErrNotCancellable):
		return http.StatusNotFound, "not_cancellable"
	case errors.Is(err, database.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, database.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, database.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, database.ErrDeliveryNotFound):
		return http.StatusNotFound, "delivery_not_found"
	case errors.Is(err, database.ErrCategoryNotFound):
		return http.StatusNotFound, "category_not_found"
	case errors.Is(err, database.ErrCommentNotFound):
		return http.StatusNotFound, "comment_not_found"
	case errors.Is(err, database.ErrWishlistItemNotFound):
		return http.StatusNotFound, "wishlist_item_not_found"

	case errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"

	case errors.Is(err, database.ErrOptimisticLockFailed):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, accounts.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, database.ErrCategoryExists):
		return http.StatusConflict, "category_exists"
	case errors.Is(err, database.ErrCommentModerated):
		return http.StatusConflict, "comment_already_moderated"
	case errors.Is(err, reviews.ErrAlreadyCommented):
		return http.StatusConflict, "already_commented"
	case errors.Is(err, reviews.ErrAlreadyRated):
		return http.StatusConflict, "already_rated"

	case errors.Is(err, database.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient_stock"
	case errors.Is(err, orders.ErrRefundWindowExpired):
		return http.StatusBadRequest, "refund_window_expired"
	case errors.Is(err, orders.ErrRefundNotEligible):
		return http.StatusBadRequest, "refund_not_eligible"
	case errors.Is(err, orders.ErrRefundNotRequested):
		return http.StatusBadRequest, "refund_not_requested"
	case errors.Is(err, reviews.ErrNotDelivered):
		return http.StatusBadRequest, "not_delivered"
	case errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrEmptyCheckout),
		errors.Is(err, orders.ErrInvalidDateRange),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, catalog.ErrInvalidStock),
		errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, catalog.ErrInvalidDiscount),
		errors.Is(err, catalog.ErrInvalidCategory),
		errors.Is(err, accounts.ErrInvalidEmail),
		errors.Is(err, accounts.ErrInvalidName),
		errors.Is(err, accounts.ErrInvalidAddress),
		errors.Is(err, accounts.ErrWeakPassword),
		errors.Is(err, reviews.ErrInvalidComment),
		errors.Is(err, reviews.ErrInvalidRating),
		errors.Is(err, reviews.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidCursor),
		errors.Is(err, database.ErrInvalidCartOwner):
		return http.StatusBadRequest, "invalid_request"
	}

	return http.StatusInternalServerError, "internal_server_error"
}

// writeServiceError answers with the classified status. Internal failures are logged and
// their details withheld from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	writeClassified(w, r, err, status, code)
}

// writeClientError is writeServiceError for endpoints that report every business failure,
// missing entities included, as 400.
func writeClientError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusNotFound || status == http.StatusConflict {
		status = http.StatusBadRequest
	}
	writeClassified(w, r, err, status, code)
}

func writeClassified(w http.ResponseWriter, r *http.Request, err error, status int, code string) {
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		message = "internal server error"
	}
	writeError(w, status, code, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func actorFrom(r *http.Request) orders.Actor {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return orders.Actor{}
	}
	return orders.Actor{UserID: identity.UserID, Role: identity.Role}
}

func int64Param(r *http.Request, name string) (int64, error) {
	value, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return value, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	value, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID", name)
	}
	return value, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// parseDate accepts a calendar date (2006-01-02) or a full RFC 3339 timestamp. Either way the
// result is midnight UTC of the calendar date as written, so a timestamp keeps its own
// offset's day.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()
	from, err := parseDate(query.Get("startDate"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("startDate must be a date (YYYY-MM-DD)")
	}
	to, err := parseDate(query.Get("endDate"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("endDate must be a date (YYYY-MM-DD)")
	}
	return from, to, nil
}
