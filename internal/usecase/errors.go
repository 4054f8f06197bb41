package usecase

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindForbidden
	KindAuth
	KindExpired
	KindAlreadyUsed
	KindInsufficientStock
	KindStoreUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindAuth:
		return "auth"
	case KindExpired:
		return "expired"
	case KindAlreadyUsed:
		return "already_used"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}

// ErrAlreadyVerified is wrapped by the conflict returned when a verified
// account asks for another verification email.
var ErrAlreadyVerified = errors.New("email already verified")

// AppError carries a client-safe Message. Err holds the internal cause and
// is only meant for logs.
type AppError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func ValidationError(message string, fields map[string]string) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Fields: fields}
}

func ConflictError(message string, cause error) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Err: cause}
}

func NotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func ForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func AuthError(message string) *AppError {
	return &AppError{Kind: KindAuth, Message: message}
}

func ExpiredError(message string) *AppError {
	return &AppError{Kind: KindExpired, Message: message}
}

func AlreadyUsedError(message string) *AppError {
	return &AppError{Kind: KindAlreadyUsed, Message: message}
}

func InsufficientStockError(message string) *AppError {
	return &AppError{Kind: KindInsufficientStock, Message: message}
}

func StoreUnavailable(cause error) *AppError {
	return &AppError{Kind: KindStoreUnavailable, Message: "service temporarily unavailable", Err: cause}
}
