package store

import (
	"context"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

func CreateCategory(ctx context.Context, q database.Querier, name string) (*models.Category, error) {
	category := &models.Category{}

	err := q.QueryRowContext(ctx,
		`INSERT INTO categories (name, created_at) VALUES ($1, NOW())
		 RETURNING id, name, created_at`,
		name).Scan(&category.ID, &category.Name, &category.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrCategoryExists
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func ListCategories(ctx context.Context, q database.Querier) ([]models.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}
