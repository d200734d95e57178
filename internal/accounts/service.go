package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

var (
	ErrForbidden      = errors.New("operation not permitted for this role")
	ErrInvalidEmail   = errors.New("a valid email address is required")
	ErrInvalidName    = errors.New("name is required")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalidAddress = errors.New("address must not be blank")
	ErrWeakPassword   = errors.New("password must be between 8 and 72 bytes")

	ErrInvalidCredentials = errors.New("invalid email or password")
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

// dummyHash is compared against when the email is unknown so a miss costs as much as a
// wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-unknown-user"), bcrypt.DefaultCost)

type Service struct {
	db         *sql.DB
	logger     *zap.Logger
	bcryptCost int
}

func NewService(db *sql.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

// Register creates a customer account that signs in with password.
func (s *Service) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if name == "" {
		return nil, ErrInvalidName
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := store.CreateUser(ctx, s.db, store.NewUser{
		Email:        email,
		Name:         name,
		Role:         models.RoleCustomer,
		PasswordHash: string(hash),
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login checks the password of the account registered under email. Unknown emails, accounts
// without a password and wrong passwords all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, hash, err := store.GetUserCredentials(ctx, s.db, email)
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	case hash == "":
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Info("login rejected", zap.Int64("user_id", user.ID))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	return user, nil
}

// Get returns a user to themselves or to staff.
func (s *Service) Get(ctx context.Context, callerID int64, role models.Role, userID int64) (*models.User, error) {
	if callerID != userID && !role.IsStaff() {
		return nil, ErrForbidden
	}
	return store.GetUser(ctx, s.db, userID)
}

func (s *Service) List(ctx context.Context, role models.Role, page, pageSize int) (*store.OffsetPage[models.User], error) {
	if !role.IsStaff() {
		return nil, ErrForbidden
	}
	page, pageSize = store.Paging(page, pageSize)
	return store.ListUsers(ctx, s.db, page, pageSize)
}

// UpdateAddress changes the caller's own home address. Checkouts without an explicit address
// ship there.
func (s *Service) UpdateAddress(ctx context.Context, callerID int64, address string, version int) (*models.User, error) {
	if callerID == 0 {
		return nil, ErrForbidden
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}

	user, err := store.UpdateHomeAddress(ctx, s.db, callerID, address, version)
	if err != nil {
		return nil, err
	}

	s.logger.Info("home address updated", zap.Int64("user_id", callerID), zap.Int("version", user.Version))
	return user, nil
}
