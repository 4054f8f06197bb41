package usecase

import (
	"crypto/rand"
	"io"
	"time"

	"storefront/internal/data/entity"
	"storefront/pkg/utils"
)

// TokenIssuer produces opaque single-use tokens. Uniqueness is left to the
// store's unique constraint.
type TokenIssuer struct {
	random io.Reader
	bytes  int
}

func NewTokenIssuer() *TokenIssuer {
	return &TokenIssuer{random: rand.Reader, bytes: utils.DefaultTokenBytes}
}

func (ti *TokenIssuer) Issue() (string, error) {
	return utils.GenerateTokenFrom(ti.random, ti.bytes)
}

// ExpiryFrom returns now plus minutes.
func ExpiryFrom(now time.Time, minutes int) time.Time {
	return now.Add(time.Duration(minutes) * time.Minute)
}

// IsExpired is strict: a token is still valid at exactly expiresAt.
func IsExpired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}

// TokenState is where a presented token sits in its lifecycle. A superseded
// token is deleted, so it reads as TokenUnknown.
type TokenState int

const (
	TokenValid TokenState = iota
	TokenUnknown
	TokenWrongType
	TokenExpired
	TokenConsumed
)

func (s TokenState) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenUnknown:
		return "unknown"
	case TokenWrongType:
		return "wrong_type"
	case TokenExpired:
		return "expired"
	case TokenConsumed:
		return "consumed"
	}
	return "invalid"
}

// ClassifyToken checks existence, then type, then expiry, then use.
func ClassifyToken(tok *entity.VerificationToken, want entity.TokenType, now time.Time) TokenState {
	switch {
	case tok == nil:
		return TokenUnknown
	case tok.Type != want:
		return TokenWrongType
	case IsExpired(tok.ExpiresAt, now):
		return TokenExpired
	case tok.IsUsed:
		return TokenConsumed
	default:
		return TokenValid
	}
}

// tokenStateError maps a non-valid state to the error returned to callers.
func tokenStateError(state TokenState) error {
	switch state {
	case TokenUnknown:
		return NotFoundError("invalid or unknown token")
	case TokenWrongType:
		return ValidationError("token type mismatch", nil)
	case TokenExpired:
		return ExpiredError("token has expired")
	case TokenConsumed:
		return AlreadyUsedError("token has already been used")
	}
	return nil
}
