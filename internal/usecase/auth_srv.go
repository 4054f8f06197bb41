package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/data/entity"
	"storefront/internal/data/repository"
	"storefront/internal/dto/request"
	"storefront/internal/dto/response"
	"storefront/internal/notify"
	"storefront/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PasswordResetSentMessage is returned for every reset request so callers
// cannot tell whether the address is registered.
const PasswordResetSentMessage = "If email exists, password reset link has been sent"

type AuthService interface {
	Register(ctx context.Context, req *request.RegisterRequest) (*response.AuthResponse, error)
	VerifyEmail(ctx context.Context, req *request.VerifyEmailRequest) (*response.AuthResponse, error)
	Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error)
	RequestPasswordReset(ctx context.Context, req *request.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *request.ResetPasswordRequest) error
	ResendVerification(ctx context.Context, req *request.ResendVerificationRequest) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}

type CredentialIssuer interface {
	IssueAccess(userID uuid.UUID, role string) (*utils.IssuedCredential, error)
	IssueTemporary(userID uuid.UUID, role string) (*utils.IssuedCredential, error)
}

type authService struct {
	repo     *repository.Repository
	hasher   PasswordHasher
	creds    CredentialIssuer
	tokens   *TokenIssuer
	notifier notify.Notifier
	expiry   utils.TokenConfig
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewAuthService(
	repo *repository.Repository,
	hasher PasswordHasher,
	creds CredentialIssuer,
	tokens *TokenIssuer,
	notifier notify.Notifier,
	config *utils.Config,
	log *zap.Logger,
) AuthService {
	return &authService{
		repo:     repo,
		hasher:   hasher,
		creds:    creds,
		tokens:   tokens,
		notifier: notifier,
		expiry:   config.Token,
		timeout:  config.Database.QueryTimeout,
		now:      time.Now,
		log:      log.With(zap.String("service", "auth")),
	}
}

func (s *authService) Register(ctx context.Context, req *request.RegisterRequest) (*response.AuthResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, ValidationError("validation failed", errs)
	}
	if req.Password != req.ConfirmPassword {
		return nil, ValidationError("passwords do not match", map[string]string{
			"confirm_password": "must match password",
		})
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	email := strings.TrimSpace(req.Email)
	existing, err := s.repo.User.FindByEmail(ctx, email)
	if err != nil {
		return nil, StoreUnavailable(err)
	}
	if existing != nil {
		return nil, ConflictError("email already registered", repository.ErrDuplicateEmail)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, &AppError{Kind: KindInternal, Message: "failed to process password", Err: err}
	}

	now := s.now()
	user := &entity.User{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:          strings.TrimSpace(req.Name),
		Email:         email,
		PasswordHash:  hash,
		Role:          entity.RoleCustomer,
		EmailVerified: false,
	}

	var token string
	err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.User.Create(txCtx, user); err != nil {
			return err
		}
		token, err = s.reissueToken(txCtx, user, entity.TokenTypeEmailVerification)
		return err
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, ConflictError("email already registered", err)
	}
	if err != nil {
		return nil, StoreUnavailable(err)
	}

	s.notify(ctx, notify.KindVerification, user, token)

	cred, err := s.creds.IssueTemporary(user.ID, string(user.Role))
	if err != nil {
		s.log.Error("Failed to issue temporary credential",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
		)
		return nil, &AppError{Kind: KindInternal, Message: "failed to issue credential", Err: err}
	}

	s.log.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
	)

	return authResponse(user, cred), nil
}

func (s *authService) VerifyEmail(ctx context.Context, req *request.VerifyEmailRequest) (*response.AuthResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, ValidationError("validation failed", errs)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	var user *entity.User
	err := s.consumeToken(ctx, req.Token, entity.TokenTypeEmailVerification, func(txCtx context.Context, u *entity.User) error {
		u.EmailVerified = true
		u.UpdatedAt = s.now()
		user = u
		return s.repo.User.Update(txCtx, u)
	})
	if err != nil {
		return nil, err
	}

	cred, err := s.creds.IssueAccess(user.ID, string(user.Role))
	if err != nil {
		s.log.Error("Failed to issue access credential",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
		)
		return nil, &AppError{Kind: KindInternal, Message: "failed to issue credential", Err: err}
	}

	s.log.Info("Email verified", zap.String("user_id", user.ID.String()))

	return authResponse(user, cred), nil
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, ValidationError("validation failed", errs)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.User.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, StoreUnavailable(err)
	}
	if user == nil {
		s.log.Warn("Login for unknown email", zap.String("email", req.Email))
		return nil, NotFoundError("user not found")
	}

	ok, err := s.hasher.Verify(user.PasswordHash, req.Password)
	if err != nil {
		s.log.Error("Failed to verify password",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
		)
	}
	if !ok {
		s.log.Warn("Invalid password", zap.String("user_id", user.ID.String()))
		return nil, AuthError("invalid credentials")
	}

	cred, err := s.creds.IssueAccess(user.ID, string(user.Role))
	if err != nil {
		s.log.Error("Failed to issue access credential",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
		)
		return nil, &AppError{Kind: KindInternal, Message: "failed to issue credential", Err: err}
	}

	s.log.Info("User logged in", zap.String("user_id", user.ID.String()))

	return authResponse(user, cred), nil
}

// RequestPasswordReset returns nil for unknown addresses as well.
func (s *authService) RequestPasswordReset(ctx context.Context, req *request.ForgotPasswordRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return ValidationError("validation failed", errs)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.User.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return StoreUnavailable(err)
	}
	if user == nil {
		s.log.Info("Password reset requested for unknown email")
		return nil
	}

	var token string
	err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		token, err = s.reissueToken(txCtx, user, entity.TokenTypePasswordReset)
		return err
	})
	if err != nil {
		return StoreUnavailable(err)
	}

	s.notify(ctx, notify.KindPasswordReset, user, token)
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req *request.ResetPasswordRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return ValidationError("validation failed", errs)
	}
	if req.Password != req.ConfirmPassword {
		return ValidationError("passwords do not match", map[string]string{
			"confirm_password": "must match password",
		})
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return &AppError{Kind: KindInternal, Message: "failed to process password", Err: err}
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	return s.consumeToken(ctx, req.Token, entity.TokenTypePasswordReset, func(txCtx context.Context, u *entity.User) error {
		u.PasswordHash = hash
		u.UpdatedAt = s.now()
		if err := s.repo.User.Update(txCtx, u); err != nil {
			return err
		}
		s.log.Info("Password reset", zap.String("user_id", u.ID.String()))
		return nil
	})
}

func (s *authService) ResendVerification(ctx context.Context, req *request.ResendVerificationRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return ValidationError("validation failed", errs)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.User.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return StoreUnavailable(err)
	}
	if user == nil {
		return NotFoundError("user not found")
	}
	if user.EmailVerified {
		return ConflictError("email already verified", ErrAlreadyVerified)
	}

	var token string
	err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		token, err = s.reissueToken(txCtx, user, entity.TokenTypeEmailVerification)
		return err
	})
	if err != nil {
		return StoreUnavailable(err)
	}

	s.notify(ctx, notify.KindVerification, user, token)
	return nil
}

// reissueToken deletes the user's unused tokens of tokenType and stores a
// fresh one. Run it inside a transaction.
func (s *authService) reissueToken(ctx context.Context, user *entity.User, tokenType entity.TokenType) (string, error) {
	deleted, err := s.repo.Token.DeleteUnused(ctx, user.ID, tokenType)
	if err != nil {
		return "", err
	}
	if deleted > 0 {
		s.log.Debug("Superseded unused tokens",
			zap.String("user_id", user.ID.String()),
			zap.String("type", string(tokenType)),
			zap.Int64("count", deleted),
		)
	}

	value, err := s.tokens.Issue()
	if err != nil {
		return "", err
	}

	minutes := s.expiry.VerificationExpiryMinutes
	if tokenType == entity.TokenTypePasswordReset {
		minutes = s.expiry.ResetExpiryMinutes
	}

	now := s.now()
	token := &entity.VerificationToken{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: now,
		},
		UserID:    user.ID,
		Email:     user.Email,
		Token:     value,
		Type:      tokenType,
		ExpiresAt: ExpiryFrom(now, minutes),
	}

	if err := s.repo.Token.Create(ctx, token); err != nil {
		return "", err
	}
	return value, nil
}

// consumeToken validates the token, then marks it used and applies fn to
// its owner in one transaction. A concurrent consumer loses at MarkUsed.
func (s *authService) consumeToken(
	ctx context.Context,
	value string,
	tokenType entity.TokenType,
	fn func(txCtx context.Context, user *entity.User) error,
) error {
	tok, err := s.repo.Token.FindByToken(ctx, value)
	if err != nil {
		return StoreUnavailable(err)
	}

	now := s.now()
	if state := ClassifyToken(tok, tokenType, now); state != TokenValid {
		s.log.Warn("Rejected token",
			zap.String("type", string(tokenType)),
			zap.Stringer("state", state),
		)
		return tokenStateError(state)
	}

	err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Token.MarkUsed(txCtx, tok.ID, now); err != nil {
			return err
		}

		user, err := s.repo.User.FindByID(txCtx, tok.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return NotFoundError("user not found")
		}
		return fn(txCtx, user)
	})

	var appErr *AppError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTokenAlreadyUsed):
		return tokenStateError(TokenConsumed)
	case errors.Is(err, repository.ErrTokenNotFound):
		// superseded by a reissue after the lookup above
		return tokenStateError(TokenUnknown)
	case errors.As(err, &appErr):
		return appErr
	default:
		return StoreUnavailable(err)
	}
}

// notify never fails the calling flow. It detaches from the store deadline
// and request cancellation; notifiers bound their own sends.
func (s *authService) notify(ctx context.Context, kind notify.Kind, user *entity.User, token string) {
	if err := s.notifier.Notify(context.WithoutCancel(ctx), kind, user.Email, token, user.Name); err != nil {
		s.log.Error("Failed to send notification",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("user_id", user.ID.String()),
		)
	}
}

func authResponse(user *entity.User, cred *utils.IssuedCredential) *response.AuthResponse {
	return &response.AuthResponse{
		Token:     cred.Token,
		Scope:     cred.Scope,
		ExpiresAt: cred.ExpiresAt,
		User:      response.UserToResponse(user),
	}
}

// withStoreTimeout bounds every store call made with the returned context.
func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
