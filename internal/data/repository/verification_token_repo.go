package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/data/entity"
	"storefront/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type VerificationTokenRepository interface {
	Create(ctx context.Context, token *entity.VerificationToken) error
	FindByToken(ctx context.Context, token string) (*entity.VerificationToken, error)

	// MarkUsed flips is_used only if it is still false, so exactly one
	// caller can consume a token. It returns ErrTokenNotFound when the row
	// was deleted and ErrTokenAlreadyUsed when another caller got there first.
	MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error

	// DeleteUnused removes the user's outstanding tokens of the given type.
	DeleteUnused(ctx context.Context, userID uuid.UUID, tokenType entity.TokenType) (int64, error)
}

type verificationTokenRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewVerificationTokenRepository(db database.PgxIface, log *zap.Logger) VerificationTokenRepository {
	return &verificationTokenRepository{
		db:  db,
		log: log.With(zap.String("repository", "verification_token")),
	}
}

func (r *verificationTokenRepository) Create(ctx context.Context, token *entity.VerificationToken) error {
	query := `
		INSERT INTO verification_tokens (id, user_id, email, token, type,
		                                 expires_at, is_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := database.Conn(ctx, r.db).Exec(ctx, query,
		token.ID,
		token.UserID,
		token.Email,
		token.Token,
		token.Type,
		token.ExpiresAt,
		token.IsUsed,
		token.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create verification token",
			zap.Error(err),
			zap.String("user_id", token.UserID.String()),
			zap.String("type", string(token.Type)),
		)
		return fmt.Errorf("create %s token: %w", token.Type, err)
	}

	return nil
}

func (r *verificationTokenRepository) FindByToken(ctx context.Context, token string) (*entity.VerificationToken, error) {
	query := `
		SELECT id, user_id, email, token, type, expires_at, is_used, used_at, created_at
		FROM verification_tokens
		WHERE token = $1
	`

	var vt entity.VerificationToken
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, token).Scan(
		&vt.ID,
		&vt.UserID,
		&vt.Email,
		&vt.Token,
		&vt.Type,
		&vt.ExpiresAt,
		&vt.IsUsed,
		&vt.UsedAt,
		&vt.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		// the token value is a credential, keep it out of the logs
		r.log.Error("Failed to find verification token", zap.Error(err))
		return nil, fmt.Errorf("find verification token: %w", err)
	}

	return &vt, nil
}

func (r *verificationTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	query := `
		UPDATE verification_tokens
		SET is_used = TRUE, used_at = $2
		WHERE id = $1 AND is_used = FALSE
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, id, usedAt)
	if err != nil {
		r.log.Error("Failed to mark token used",
			zap.Error(err),
			zap.String("token_id", id.String()),
		)
		return fmt.Errorf("mark token %s used: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return r.missedMarkUsed(ctx, id)
	}

	return nil
}

// missedMarkUsed tells a superseded (deleted) token apart from a consumed one.
func (r *verificationTokenRepository) missedMarkUsed(ctx context.Context, id uuid.UUID) error {
	var isUsed bool
	err := database.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT is_used FROM verification_tokens WHERE id = $1`, id,
	).Scan(&isUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTokenNotFound
	}
	if err != nil {
		r.log.Error("Failed to re-read token",
			zap.Error(err),
			zap.String("token_id", id.String()),
		)
		return fmt.Errorf("read token %s: %w", id.String(), err)
	}
	return ErrTokenAlreadyUsed
}

func (r *verificationTokenRepository) DeleteUnused(ctx context.Context, userID uuid.UUID, tokenType entity.TokenType) (int64, error) {
	query := `
		DELETE FROM verification_tokens
		WHERE user_id = $1 AND type = $2 AND is_used = FALSE
	`

	result, err := database.Conn(ctx, r.db).Exec(ctx, query, userID, tokenType)
	if err != nil {
		r.log.Error("Failed to delete unused tokens",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("type", string(tokenType)),
		)
		return 0, fmt.Errorf("delete unused %s tokens: %w", tokenType, err)
	}

	return result.RowsAffected(), nil
}
