package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

const commentColumns = `id, product_id, user_id, body, status, moderated_by, moderated_at, created_at, updated_at`

func scanComment(row rowScanner) (*models.Comment, error) {
	var (
		c           models.Comment
		moderatedBy sql.NullInt64
		moderatedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.ProductID, &c.UserID, &c.Body, &c.Status,
		&moderatedBy, &moderatedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if moderatedBy.Valid {
		c.ModeratedBy = &moderatedBy.Int64
	}
	if moderatedAt.Valid {
		c.ModeratedAt = &moderatedAt.Time
	}
	return &c, nil
}

// HasDeliveredProduct reports whether the user has at least one delivered line of the product.
func HasDeliveredProduct(ctx context.Context, q database.Querier, userID, productID int64) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM deliveries
			WHERE customer_id = $1 AND product_id = $2 AND status = $3
		)`, userID, productID, models.DeliveryStatusDelivered).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check delivered product: %w", err)
	}
	return ok, nil
}

// CreateComment stores a pending comment. A second comment by the same user on the same
// product is a unique violation.
func CreateComment(ctx context.Context, q database.Querier, productID, userID int64, body string) (*models.Comment, error) {
	comment, err := scanComment(q.QueryRowContext(ctx, `
		INSERT INTO comments (product_id, user_id, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING `+commentColumns, productID, userID, body, models.CommentStatusPending))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

func GetComment(ctx context.Context, q database.Querier, id int64) (*models.Comment, error) {
	comment, err := scanComment(q.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, database.ErrCommentNotFound
	case err != nil:
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return comment, nil
}

// ListProductComments returns the product's comments in the given status, oldest first.
func ListProductComments(ctx context.Context, q database.Querier, productID int64, status models.CommentStatus) ([]models.Comment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE product_id = $1 AND status = $2
		ORDER BY created_at, id`, productID, status)
	if err != nil {
		return nil, fmt.Errorf("list product comments: %w", err)
	}
	return collectComments(rows)
}

// ListCommentsByStatus pages through every comment in status, oldest first, so a moderation
// queue is worked in arrival order.
func ListCommentsByStatus(ctx context.Context, q database.Querier, status models.CommentStatus, page, pageSize int) (*OffsetPage[models.Comment], error) {
	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	comments, err := collectComments(rows)
	if err != nil {
		return nil, err
	}
	return newOffsetPage(comments, total, page, pageSize), nil
}

func collectComments(rows *sql.Rows) ([]models.Comment, error) {
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return comments, nil
}

// ModerateComment moves a pending comment to status. Repeating the decision already taken
// returns the comment unchanged; any other change to a moderated comment is
// ErrCommentModerated.
func ModerateComment(ctx context.Context, q database.Querier, id int64, status models.CommentStatus, moderatorID int64) (*models.Comment, error) {
	comment, err := scanComment(q.QueryRowContext(ctx, `
		UPDATE comments
		SET status = $2, moderated_by = $3, moderated_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING `+commentColumns, id, status, moderatorID, models.CommentStatusPending))
	if err == nil {
		return comment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("moderate comment: %w", err)
	}

	current, err := GetComment(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	return nil, database.ErrCommentModerated
}

// CreateRating stores a score. A second rating by the same user on the same product is a
// unique violation.
func CreateRating(ctx context.Context, q database.Querier, productID, userID int64, score int) (*models.Rating, error) {
	r := &models.Rating{}
	err := q.QueryRowContext(ctx, `
		INSERT INTO ratings (product_id, user_id, score, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, product_id, user_id, score, created_at`, productID, userID, score).
		Scan(&r.ID, &r.ProductID, &r.UserID, &r.Score, &r.CreatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("create rating: %w", err)
	}
	return r, nil
}

// GetRatingSummary returns every rating of the product, newest first, with their mean.
func GetRatingSummary(ctx context.Context, q database.Querier, productID int64) (*models.RatingSummary, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, user_id, score, created_at
		FROM ratings
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	summary := &models.RatingSummary{ProductID: productID, Ratings: []models.Rating{}}
	total := 0
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Score, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		total += r.Score
		summary.Ratings = append(summary.Ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	summary.Count = len(summary.Ratings)
	if summary.Count > 0 {
		summary.Average = decimal.NewFromInt(int64(total)).
			DivRound(decimal.NewFromInt(int64(summary.Count)), 2)
	}
	return summary, nil
}
