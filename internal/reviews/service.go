// Package reviews handles customer feedback on products: comments that go through product
// manager moderation before they are shown, and 1 to 5 star ratings that are public at once.
// Only customers with a delivered line of a product may review it, once each.
package reviews

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

const (
	maxCommentRunes = 2000
	minScore        = 1
	maxScore        = 5
)

var (
	ErrForbidden        = errors.New("operation not permitted for this role")
	ErrInvalidComment   = errors.New("comment must contain between 1 and 2000 characters of text")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrInvalidStatus    = errors.New("comment status must be pending, approved or disapproved")
	ErrNotDelivered     = errors.New("only customers who received the product can review it")
	ErrAlreadyCommented = errors.New("product already has a comment by this user")
	ErrAlreadyRated     = errors.New("product already has a rating by this user")
)

type Service struct {
	db        *sql.DB
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
}

func NewService(db *sql.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger, sanitizer: bluemonday.StrictPolicy()}
}

// sanitize strips all markup from a comment body. What remains is HTML-escaped text.
func (s *Service) sanitize(body string) (string, error) {
	clean := strings.TrimSpace(s.sanitizer.Sanitize(body))
	if clean == "" || utf8.RuneCountInString(clean) > maxCommentRunes {
		return "", ErrInvalidComment
	}
	return clean, nil
}

// AddComment stores a pending comment by userID. It is hidden until a product manager
// approves it.
func (s *Service) AddComment(ctx context.Context, userID, productID int64, body string) (*models.Comment, error) {
	if userID == 0 {
		return nil, ErrForbidden
	}
	clean, err := s.sanitize(body)
	if err != nil {
		return nil, err
	}
	if err := s.requireDelivered(ctx, userID, productID); err != nil {
		return nil, err
	}

	comment, err := store.CreateComment(ctx, s.db, productID, userID, clean)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyCommented
		}
		return nil, err
	}

	s.logger.Info("comment submitted",
		zap.Int64("comment_id", comment.ID),
		zap.Int64("product_id", productID),
		zap.Int64("user_id", userID),
	)
	return comment, nil
}

// ProductComments returns the approved comments of a product.
func (s *Service) ProductComments(ctx context.Context, productID int64) ([]models.Comment, error) {
	comments, err := store.ListProductComments(ctx, s.db, productID, models.CommentStatusApproved)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// Comments pages through comments in one moderation status for product managers. An empty
// status means the pending queue.
func (s *Service) Comments(ctx context.Context, role models.Role, status models.CommentStatus, page, pageSize int) (*store.OffsetPage[models.Comment], error) {
	if role != models.RoleProductManager {
		return nil, ErrForbidden
	}
	if status == "" {
		status = models.CommentStatusPending
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	page, pageSize = store.Paging(page, pageSize)
	return store.ListCommentsByStatus(ctx, s.db, status, page, pageSize)
}

// Moderate approves or disapproves a pending comment. Repeating the decision is a no-op.
func (s *Service) Moderate(ctx context.Context, role models.Role, moderatorID, commentID int64, status models.CommentStatus) (*models.Comment, error) {
	if role != models.RoleProductManager {
		return nil, ErrForbidden
	}
	if status != models.CommentStatusApproved && status != models.CommentStatusDisapproved {
		return nil, ErrInvalidStatus
	}

	comment, err := store.ModerateComment(ctx, s.db, commentID, status, moderatorID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("comment moderated",
		zap.Int64("comment_id", commentID),
		zap.String("status", string(comment.Status)),
		zap.Int64("moderator_id", moderatorID),
	)
	return comment, nil
}

// AddRating records userID's score for a product.
func (s *Service) AddRating(ctx context.Context, userID, productID int64, score int) (*models.Rating, error) {
	if userID == 0 {
		return nil, ErrForbidden
	}
	if score < minScore || score > maxScore {
		return nil, ErrInvalidRating
	}
	if err := s.requireDelivered(ctx, userID, productID); err != nil {
		return nil, err
	}

	rating, err := store.CreateRating(ctx, s.db, productID, userID, score)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}

	s.logger.Info("product rated",
		zap.Int64("product_id", productID),
		zap.Int64("user_id", userID),
		zap.Int("score", score),
	)
	return rating, nil
}

func (s *Service) ProductRatings(ctx context.Context, productID int64) (*models.RatingSummary, error) {
	return store.GetRatingSummary(ctx, s.db, productID)
}

// requireDelivered checks the product exists before checking the user's deliveries, so an
// unknown product reports as not found rather than as not delivered.
func (s *Service) requireDelivered(ctx context.Context, userID, productID int64) error {
	if _, err := store.GetProduct(ctx, s.db, productID); err != nil {
		return err
	}
	ok, err := store.HasDeliveredProduct(ctx, s.db, userID, productID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotDelivered
	}
	return nil
}
