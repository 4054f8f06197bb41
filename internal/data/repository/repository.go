package repository

import (
	"context"
	"errors"

	"storefront/pkg/database"

	"go.uber.org/zap"
)

var (
	// ErrInsufficientStock is returned by a guarded stock decrement that would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrTokenAlreadyUsed is returned when a token was consumed by a concurrent request.
	ErrTokenAlreadyUsed = errors.New("token already used")
	// ErrTokenNotFound is returned by MarkUsed when the token row no longer exists.
	ErrTokenNotFound = errors.New("token not found")
	// ErrDuplicateEmail is returned when the unique email constraint rejects an insert.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotFound is returned by updates and deletes that matched no row.
	ErrNotFound = errors.New("record not found")
)

// Transactor groups repository calls into one atomic unit of work.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repository struct {
	User    UserRepository
	Product ProductRepository
	Order   OrderRepository
	Token   VerificationTokenRepository
	Tx      Transactor
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User:    NewUserRepository(db, log),
		Product: NewProductRepository(db, log),
		Order:   NewOrderRepository(db, log),
		Token:   NewVerificationTokenRepository(db, log),
		Tx:      database.NewTxManager(db),
	}
}
