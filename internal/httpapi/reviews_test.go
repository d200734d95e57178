package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/reviews"
)

type stubReviews struct {
	ReviewService

	addComment      func(ctx context.Context, userID, productID int64, body string) (*models.Comment, error)
	productComments func(ctx context.Context, productID int64) ([]models.Comment, error)
	moderate        func(ctx context.Context, role models.Role, moderatorID, commentID int64, status models.CommentStatus) (*models.Comment, error)
	addRating       func(ctx context.Context, userID, productID int64, score int) (*models.Rating, error)
}

func (s *stubReviews) AddComment(ctx context.Context, userID, productID int64, body string) (*models.Comment, error) {
	return s.addComment(ctx, userID, productID, body)
}

func (s *stubReviews) ProductComments(ctx context.Context, productID int64) ([]models.Comment, error) {
	return s.productComments(ctx, productID)
}

func (s *stubReviews) Moderate(ctx context.Context, role models.Role, moderatorID, commentID int64, status models.CommentStatus) (*models.Comment, error) {
	return s.moderate(ctx, role, moderatorID, commentID, status)
}

func (s *stubReviews) AddRating(ctx context.Context, userID, productID int64, score int) (*models.Rating, error) {
	return s.addRating(ctx, userID, productID, score)
}

func reviewRouter(svc ReviewService) chi.Router {
	router := chi.NewRouter()
	router.Route("/products", NewReviewHandlers(svc).Routes)
	return router
}

func TestProductCommentsArePublic(t *testing.T) {
	svc := &stubReviews{productComments: func(_ context.Context, productID int64) ([]models.Comment, error) {
		assert.Equal(t, int64(4), productID)
		return nil, nil
	}}

	rec := serve(reviewRouter(svc), httptest.NewRequest(http.MethodGet, "/products/4/comments", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAddComment(t *testing.T) {
	tests := []struct {
		name     string
		signedIn bool
		err      error
		status   int
		code     string
	}{
		{name: "created", signedIn: true, status: http.StatusCreated},
		{name: "anonymous", status: http.StatusUnauthorized, code: "unauthenticated"},
		{name: "not delivered", signedIn: true, err: reviews.ErrNotDelivered, status: http.StatusBadRequest, code: "not_delivered"},
		{name: "duplicate", signedIn: true, err: reviews.ErrAlreadyCommented, status: http.StatusConflict, code: "already_commented"},
		{name: "markup only", signedIn: true, err: reviews.ErrInvalidComment, status: http.StatusBadRequest, code: "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubReviews{addComment: func(_ context.Context, userID, productID int64, body string) (*models.Comment, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &models.Comment{ID: 1, UserID: userID, ProductID: productID, Body: body, Status: models.CommentStatusPending}, nil
			}}

			req := httptest.NewRequest(http.MethodPost, "/products/4/comments", bytes.NewBufferString(`{"body":"Bright lamp"}`))
			if tt.signedIn {
				req = signedIn(req, 7, models.RoleCustomer)
			}
			rec := serve(reviewRouter(svc), req)

			require.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			if tt.code != "" {
				assert.Equal(t, tt.code, body["error"])
				return
			}
			assert.Equal(t, "pending", body["status"])
			assert.Equal(t, float64(7), body["user_id"])
		})
	}
}

func TestModerateComment(t *testing.T) {
	var gotStatus models.CommentStatus
	var gotModerator int64
	svc := &stubReviews{moderate: func(_ context.Context, _ models.Role, moderatorID, commentID int64, status models.CommentStatus) (*models.Comment, error) {
		if commentID == 404 {
			return nil, database.ErrCommentNotFound
		}
		if commentID == 409 {
			return nil, database.ErrCommentModerated
		}
		gotStatus, gotModerator = status, moderatorID
		return &models.Comment{ID: commentID, Status: status}, nil
	}}
	router := reviewRouter(svc)

	rec := serve(router, signedIn(httptest.NewRequest(http.MethodPut, "/products/comments/3/approve", nil), 2, models.RoleProductManager))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CommentStatusApproved, gotStatus)
	assert.Equal(t, int64(2), gotModerator)

	rec = serve(router, signedIn(httptest.NewRequest(http.MethodPut, "/products/comments/3/disapprove", nil), 2, models.RoleProductManager))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CommentStatusDisapproved, gotStatus)

	rec = serve(router, signedIn(httptest.NewRequest(http.MethodPut, "/products/comments/404/approve", nil), 2, models.RoleProductManager))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, signedIn(httptest.NewRequest(http.MethodPut, "/products/comments/409/disapprove", nil), 2, models.RoleProductManager))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "comment_already_moderated", decodeBody(t, rec)["error"])

	rec = serve(router, signedIn(httptest.NewRequest(http.MethodPut, "/products/comments/3/approve", nil), 2, models.RoleSalesManager))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddRating(t *testing.T) {
	svc := &stubReviews{addRating: func(_ context.Context, userID, productID int64, score int) (*models.Rating, error) {
		if score > 5 {
			return nil, reviews.ErrInvalidRating
		}
		return &models.Rating{ID: 1, UserID: userID, ProductID: productID, Score: score}, nil
	}}
	router := reviewRouter(svc)

	rec := serve(router, signedIn(httptest.NewRequest(http.MethodPost, "/products/4/ratings", bytes.NewBufferString(`{"score":4}`)), 7, models.RoleCustomer))
	require.Equal(t, http.StatusCreated, rec.Code)
	var rating models.Rating
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rating))
	assert.Equal(t, 4, rating.Score)
	assert.Equal(t, int64(4), rating.ProductID)

	rec = serve(router, signedIn(httptest.NewRequest(http.MethodPost, "/products/4/ratings", bytes.NewBufferString(`{"score":9}`)), 7, models.RoleCustomer))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
