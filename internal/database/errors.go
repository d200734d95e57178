package database

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the store and the retry loop care about.
const (
	codeSerializationFailure pq.ErrorCode = "40001"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeLockNotAvailable     pq.ErrorCode = "55P03"
	codeUniqueViolation      pq.ErrorCode = "23505"
	codeForeignKeyViolation  pq.ErrorCode = "23503"
)

// ErrorClass tells the retry loop whether a failed transaction is worth running again.
type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassDeadlock:
		return "deadlock"
	case ErrorClassSerialization:
		return "serialization"
	default:
		return "permanent"
	}
}

func (c ErrorClass) Retryable() bool {
	return c != ErrorClassPermanent
}

// ClassifyError maps err to an ErrorClass. Anything that is not a Postgres concurrency
// failure, including domain sentinels and sql.ErrNoRows, is permanent.
func ClassifyError(err error) ErrorClass {
	code, ok := pqCode(err)
	if !ok {
		return ErrorClassPermanent
	}
	switch code {
	case codeSerializationFailure:
		return ErrorClassSerialization
	case codeDeadlockDetected:
		return ErrorClassDeadlock
	case codeLockNotAvailable:
		return ErrorClassTransient
	default:
		return ErrorClassPermanent
	}
}

func IsRetryable(err error) bool {
	return ClassifyError(err).Retryable()
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	code, ok := pqCode(err)
	return ok && code == codeUniqueViolation
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key violation.
func IsForeignKeyViolation(err error) bool {
	code, ok := pqCode(err)
	return ok && code == codeForeignKeyViolation
}

func pqCode(err error) (pq.ErrorCode, bool) {
	var pqErr *pq.Error
	if err == nil || !errors.As(err, &pqErr) {
		return "", false
	}
	return pqErr.Code, true
}

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCategoryExists       = errors.New("category already exists")
	ErrOrderNotFound        = errors.New("order not found")
	ErrDeliveryNotFound     = errors.New("delivery not found")
	ErrCommentNotFound      = errors.New("comment not found")
	ErrCommentModerated     = errors.New("comment already moderated")
	ErrWishlistItemNotFound = errors.New("product is not on the wishlist")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrOptimisticLockFailed = errors.New("optimistic lock failed")
	ErrInvalidCartOwner     = errors.New("cart owner must be exactly one of user or guest cart")
)
