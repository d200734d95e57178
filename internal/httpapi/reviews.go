package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

type ReviewService interface {
	AddComment(ctx context.Context, userID, productID int64, body string) (*models.Comment, error)
	ProductComments(ctx context.Context, productID int64) ([]models.Comment, error)
	Comments(ctx context.Context, role models.Role, status models.CommentStatus, page, pageSize int) (*store.OffsetPage[models.Comment], error)
	Moderate(ctx context.Context, role models.Role, moderatorID, commentID int64, status models.CommentStatus) (*models.Comment, error)
	AddRating(ctx context.Context, userID, productID int64, score int) (*models.Rating, error)
	ProductRatings(ctx context.Context, productID int64) (*models.RatingSummary, error)
}

type ReviewHandlers struct {
	reviews ReviewService
}

func NewReviewHandlers(svc ReviewService) *ReviewHandlers {
	return &ReviewHandlers{reviews: svc}
}

// Routes registers comment and rating endpoints. They live under /products next to the
// catalog routes.
func (h *ReviewHandlers) Routes(r chi.Router) {
	r.Get("/{productId}/comments", h.productComments)
	r.Get("/{productId}/ratings", h.productRatings)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles())
		r.Post("/{productId}/comments", h.addComment)
		r.Post("/{productId}/ratings", h.addRating)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(models.RoleProductManager))
		r.Get("/comments", h.listComments)
		r.Put("/comments/{commentId}/approve", h.moderate(models.CommentStatusApproved))
		r.Put("/comments/{commentId}/disapprove", h.moderate(models.CommentStatusDisapproved))
	})
}

func (h *ReviewHandlers) productComments(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	comments, err := h.reviews.ProductComments(r.Context(), productID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(comments))
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *ReviewHandlers) addComment(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	comment, err := h.reviews.AddComment(r.Context(), identity.UserID, productID, req.Body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

func (h *ReviewHandlers) listComments(w http.ResponseWriter, r *http.Request) {
	page, err := h.reviews.Comments(r.Context(), roleOf(r),
		models.CommentStatus(r.URL.Query().Get("status")),
		queryInt(r, "page", 1),
		queryInt(r, "page_size", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *ReviewHandlers) moderate(status models.CommentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID, err := int64Param(r, "commentId")
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		identity, _ := auth.IdentityFromContext(r.Context())
		comment, err := h.reviews.Moderate(r.Context(), identity.Role, identity.UserID, commentID, status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, comment)
	}
}

func (h *ReviewHandlers) productRatings(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	summary, err := h.reviews.ProductRatings(r.Context(), productID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type ratingRequest struct {
	Score int `json:"score"`
}

func (h *ReviewHandlers) addRating(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req ratingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	rating, err := h.reviews.AddRating(r.Context(), identity.UserID, productID, req.Score)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rating)
}
