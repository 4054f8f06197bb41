package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// ScopeAccess marks a full credential.
	ScopeAccess = "access"
	// ScopeTemporary marks the short-lived credential handed out at registration.
	ScopeTemporary = "temporary"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	Scope  string    `json:"scope"`
	jwt.RegisteredClaims
}

// IssuedCredential is a signed bearer token with its expiry.
type IssuedCredential struct {
	Token     string
	Scope     string
	ExpiresAt time.Time
}

type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
	tempTTL   time.Duration
	issuer    string
	now       func() time.Time
}

func NewJWTManager(cfg JWTConfig, issuer string) *JWTManager {
	accessTTL := time.Duration(cfg.ExpiryHours) * time.Hour
	if accessTTL <= 0 {
		accessTTL = 7 * 24 * time.Hour
	}
	tempTTL := time.Duration(cfg.TempExpiryMinutes) * time.Minute
	if tempTTL <= 0 {
		tempTTL = time.Hour
	}
	return &JWTManager{
		secret:    []byte(cfg.Secret),
		accessTTL: accessTTL,
		tempTTL:   tempTTL,
		issuer:    issuer,
		now:       time.Now,
	}
}

// IssueAccess signs a full credential for the user.
func (m *JWTManager) IssueAccess(userID uuid.UUID, role string) (*IssuedCredential, error) {
	return m.issue(userID, role, ScopeAccess, m.accessTTL)
}

// IssueTemporary signs a short-lived credential for a freshly registered user.
func (m *JWTManager) IssueTemporary(userID uuid.UUID, role string) (*IssuedCredential, error) {
	return m.issue(userID, role, ScopeTemporary, m.tempTTL)
}

func (m *JWTManager) issue(userID uuid.UUID, role, scope string, ttl time.Duration) (*IssuedCredential, error) {
	now := m.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Role:   role,
		Scope:  scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", scope, err)
	}

	return &IssuedCredential{Token: signed, Scope: scope, ExpiresAt: expiresAt}, nil
}

// Parse validates the signature and expiry of a bearer token.
func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
