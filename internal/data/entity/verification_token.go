package entity

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeEmailVerification TokenType = "email_verification"
	TokenTypePasswordReset     TokenType = "password_reset"
)

type VerificationToken struct {
	BaseSimple
	UserID    uuid.UUID  `db:"user_id"`
	Email     string     `db:"email"`
	Token     string     `db:"token"`
	Type      TokenType  `db:"type"`
	ExpiresAt time.Time  `db:"expires_at"`
	IsUsed    bool       `db:"is_used"`
	UsedAt    *time.Time `db:"used_at"`
}
