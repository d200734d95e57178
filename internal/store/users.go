package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

const userColumns = `id, email, name, role, home_address, created_at, updated_at, version`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.HomeAddress, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// NewUser is a row to insert. An empty PasswordHash leaves the account without password
// login; such users can only be given tokens out of band.
type NewUser struct {
	Email        string
	Name         string
	Role         models.Role
	PasswordHash string
}

// CreateUser inserts a user with an empty home address. A duplicate email surfaces as a
// unique violation; see database.IsUniqueViolation.
func CreateUser(ctx context.Context, q database.Querier, u NewUser) (*models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, `
		INSERT INTO users (email, name, role, password_hash, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING `+userColumns, u.Email, u.Name, u.Role, u.PasswordHash))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetUserCredentials returns the user with the given email, matched case-insensitively, and
// its stored password hash.
func GetUserCredentials(ctx context.Context, q database.Querier, email string) (*models.User, string, error) {
	var (
		u    models.User
		hash string
	)
	err := q.QueryRowContext(ctx, `
		SELECT `+userColumns+`, password_hash
		FROM users
		WHERE lower(email) = lower($1)`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.HomeAddress, &u.CreatedAt, &u.UpdatedAt, &u.Version, &hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, "", database.ErrUserNotFound
	case err != nil:
		return nil, "", fmt.Errorf("get user credentials: %w", err)
	}
	return &u, hash, nil
}

func GetUser(ctx context.Context, q database.Querier, id int64) (*models.User, error) {
	return findUser(ctx, q, "id = $1", id)
}

// GetUserByEmail matches case-insensitively.
func GetUserByEmail(ctx context.Context, q database.Querier, email string) (*models.User, error) {
	return findUser(ctx, q, "lower(email) = lower($1)", email)
}

func findUser(ctx context.Context, q database.Querier, where string, arg any) (*models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, database.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateHomeAddress sets the address used when a checkout names none. version must match the
// stored row or ErrOptimisticLockFailed is returned.
func UpdateHomeAddress(ctx context.Context, q database.Querier, id int64, address string, version int) (*models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, `
		UPDATE users
		SET home_address = $2, updated_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $3
		RETURNING `+userColumns, id, address, version))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update home address: %w", err)
	}

	if _, err := GetUser(ctx, q, id); err != nil {
		return nil, err
	}
	return nil, database.ErrOptimisticLockFailed
}

func ListUsers(ctx context.Context, q database.Querier, page, pageSize int) (*OffsetPage[models.User], error) {
	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, page, pageSize), nil
}
