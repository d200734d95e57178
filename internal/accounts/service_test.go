package accounts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/safar/go-storefront/internal/models"
)

func TestRegisterValidatesInput(t *testing.T) {
	svc := NewService(nil, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "Ada", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Register(ctx, "ada@example.com", "   ", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.Register(ctx, "ada@example.com", "Ada", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.Register(ctx, "ada@example.com", "Ada", strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestLoginRejectsBlankCredentials(t *testing.T) {
	svc := NewService(nil, nil)

	_, err := svc.Login(context.Background(), " ", "secret-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "ada@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCustomersOnlySeeThemselves(t *testing.T) {
	svc := NewService(nil, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, 1, models.RoleCustomer, 2)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.List(ctx, models.RoleCustomer, 1, 20)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateAddressValidation(t *testing.T) {
	svc := NewService(nil, nil)
	ctx := context.Background()

	_, err := svc.UpdateAddress(ctx, 0, "1 Main St", 1)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateAddress(ctx, 7, " \t", 1)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
