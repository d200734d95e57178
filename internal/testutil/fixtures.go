//go:build integration

package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

func CreateUser(t *testing.T, db *sql.DB, email string, role models.Role) *models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), db, store.NewUser{
		Email: email,
		Name:  "Test " + string(role),
		Role:  role,
	})
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func CreateProduct(t *testing.T, db *sql.DB, name string, quantity int, price string) *models.Product {
	t.Helper()
	product, err := store.CreateProduct(context.Background(), db, store.CreateProductParams{
		Name:           name,
		Model:          name + "-m",
		SerialNumber:   name + "-sn",
		Quantity:       quantity,
		Price:          decimal.RequireFromString(price),
		Distributor:    "Acme",
		WarrantyStatus: models.WarrantyValid,
	})
	if err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	return product
}

func ProductQuantity(t *testing.T, db *sql.DB, id int64) int {
	t.Helper()
	product, err := store.GetProduct(context.Background(), db, id)
	if err != nil {
		t.Fatalf("Failed to get product: %v", err)
	}
	return product.Quantity
}

func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
