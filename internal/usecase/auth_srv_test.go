package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/data/entity"
	"storefront/internal/dto/request"
	"storefront/internal/notify"
	"storefront/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *utils.Config {
	return &utils.Config{
		App:      utils.AppConfig{Name: "storefront-test", FrontendURL: "http://localhost:5173"},
		Database: utils.DatabaseConfig{QueryTimeout: 5 * time.Second},
		JWT:      utils.JWTConfig{Secret: "test-secret", ExpiryHours: 168, TempExpiryMinutes: 60},
		Token:    utils.TokenConfig{VerificationExpiryMinutes: 15, ResetExpiryMinutes: 15},
		Order:    utils.OrderConfig{CommitRetries: 3},
	}
}

type authFixture struct {
	svc      *authService
	store    *fakeStore
	notifier *fakeNotifier
	jwt      *utils.JWTManager
	clock    *time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	cfg := testConfig()
	jwt := utils.NewJWTManager(cfg.JWT, cfg.App.Name)

	svc := NewAuthService(
		store.repository(),
		utils.NewBcryptHasher(bcrypt.MinCost),
		jwt,
		NewTokenIssuer(),
		notifier,
		cfg,
		zap.NewNop(),
	).(*authService)

	clock := time.Now()
	svc.now = func() time.Time { return clock }

	return &authFixture{svc: svc, store: store, notifier: notifier, jwt: jwt, clock: &clock}
}

func (f *authFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *authFixture) register(t *testing.T, email string) *entity.User {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), &request.RegisterRequest{
		Name:            "Ada",
		Email:           email,
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	require.NoError(t, err)

	id, err := uuid.Parse(resp.User.ID)
	require.NoError(t, err)
	return f.store.user(id)
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Register(ctx, &request.RegisterRequest{
		Name:            "Ada Lovelace",
		Email:           "ada@example.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	require.NoError(t, err)

	t.Run("returns temporary credential and unverified projection", func(t *testing.T) {
		assert.Equal(t, utils.ScopeTemporary, resp.Scope)
		assert.False(t, resp.User.IsEmailVerified)
		assert.Equal(t, "ada@example.com", resp.User.Email)

		claims, err := f.jwt.Parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, utils.ScopeTemporary, claims.Scope)
		assert.Equal(t, resp.User.ID, claims.UserID.String())
	})

	t.Run("stores hashed password", func(t *testing.T) {
		user := f.store.user(uuid.MustParse(resp.User.ID))
		require.NotNil(t, user)
		assert.NotEqual(t, "secret123", user.PasswordHash)
		ok, err := utils.NewBcryptHasher(bcrypt.MinCost).Verify(user.PasswordHash, "secret123")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, entity.RoleCustomer, user.Role)
	})

	t.Run("issues and mails a verification token", func(t *testing.T) {
		tokens := f.store.tokensFor(uuid.MustParse(resp.User.ID), entity.TokenTypeEmailVerification)
		require.Len(t, tokens, 1)
		assert.False(t, tokens[0].IsUsed)
		assert.Equal(t, f.clock.Add(15*time.Minute), tokens[0].ExpiresAt)

		sent := f.notifier.last()
		assert.Equal(t, notify.KindVerification, sent.kind)
		assert.Equal(t, "ada@example.com", sent.email)
		assert.Equal(t, tokens[0].Token, sent.token)
		assert.Equal(t, "Ada Lovelace", sent.name)
	})
}

func TestRegister_Errors(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "taken@example.com")

	tests := []struct {
		name string
		req  request.RegisterRequest
		want ErrorKind
	}{
		{
			name: "missing fields",
			req:  request.RegisterRequest{Email: "new@example.com"},
			want: KindValidation,
		},
		{
			name: "password mismatch",
			req:  request.RegisterRequest{Name: "A", Email: "new@example.com", Password: "secret123", ConfirmPassword: "secret124"},
			want: KindValidation,
		},
		{
			name: "duplicate email",
			req:  request.RegisterRequest{Name: "A", Email: "taken@example.com", Password: "secret123", ConfirmPassword: "secret123"},
			want: KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, &tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestRegister_NotifierFailureIsNotFatal(t *testing.T) {
	f := newAuthFixture(t)
	f.notifier.err = errors.New("smtp down")

	resp, err := f.svc.Register(context.Background(), &request.RegisterRequest{
		Name:            "Ada",
		Email:           "ada@example.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, 1, f.notifier.count())
}

func TestRegister_StoreFailureRollsBack(t *testing.T) {
	f := newAuthFixture(t)
	f.store.failNext("token.Create", errors.New("disk full"))

	_, err := f.svc.Register(context.Background(), &request.RegisterRequest{
		Name:            "Ada",
		Email:           "ada@example.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))

	user, findErr := f.store.repository().User.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, findErr)
	assert.Nil(t, user, "user insert must roll back with the token insert")
	assert.Zero(t, f.notifier.count())
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")
	token := f.notifier.last().token

	resp, err := f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: token})
	require.NoError(t, err)

	assert.Equal(t, utils.ScopeAccess, resp.Scope)
	assert.True(t, resp.User.IsEmailVerified)
	assert.True(t, f.store.user(user.ID).EmailVerified)

	stored := f.store.tokensFor(user.ID, entity.TokenTypeEmailVerification)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].IsUsed)
	require.NotNil(t, stored[0].UsedAt)

	t.Run("second use fails", func(t *testing.T) {
		_, err := f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: token})
		require.Error(t, err)
		assert.Equal(t, KindAlreadyUsed, KindOf(err))
	})
}

func TestVerifyEmail_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: "deadbeef"})
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("password reset token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.register(t, "ada@example.com")
		require.NoError(t, f.svc.RequestPasswordReset(ctx, &request.ForgotPasswordRequest{Email: "ada@example.com"}))

		_, err := f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: f.notifier.last().token})
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAuthFixture(t)
		user := f.register(t, "ada@example.com")
		token := f.notifier.last().token

		f.advance(15*time.Minute + time.Second)

		_, err := f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: token})
		assert.Equal(t, KindExpired, KindOf(err))
		assert.False(t, f.store.user(user.ID).EmailVerified)
	})

	t.Run("token valid at exact expiry", func(t *testing.T) {
		f := newAuthFixture(t)
		f.register(t, "ada@example.com")
		token := f.notifier.last().token

		f.advance(15 * time.Minute)

		_, err := f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: token})
		assert.NoError(t, err)
	})

	t.Run("superseded token is unknown", func(t *testing.T) {
		f := newAuthFixture(t)
		f.register(t, "ada@example.com")
		first := f.notifier.last().token

		require.NoError(t, f.svc.ResendVerification(ctx, &request.ResendVerificationRequest{Email: "ada@example.com"}))
		second := f.notifier.last().token
		require.NotEqual(t, first, second)

		_, err := f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: first})
		assert.Equal(t, KindNotFound, KindOf(err))

		_, err = f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: second})
		assert.NoError(t, err)
	})

	t.Run("token reissued between lookup and consume", func(t *testing.T) {
		f := newAuthFixture(t)
		user := f.register(t, "ada@example.com")
		first := f.notifier.last().token

		f.store.afterFindToken = func() {
			f.store.afterFindToken = nil
			require.NoError(t, f.svc.ResendVerification(ctx, &request.ResendVerificationRequest{Email: "ada@example.com"}))
		}

		_, err := f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: first})
		assert.Equal(t, KindNotFound, KindOf(err))
		assert.False(t, f.store.user(user.ID).EmailVerified)
		assert.NotEqual(t, first, f.notifier.last().token)
	})
}

func TestVerifyEmail_ConcurrentConsumption(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com")
	token := f.notifier.last().token

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		alreadyUs atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyEmail(context.Background(), &request.VerifyEmailRequest{Token: token})
			switch KindOf(err) {
			case KindAlreadyUsed:
				alreadyUs.Add(1)
			default:
				if err == nil {
					successes.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), alreadyUs.Load())
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com")

	t.Run("unverified user can log in", func(t *testing.T) {
		resp, err := f.svc.Login(ctx, &request.LoginRequest{Email: "ada@example.com", Password: "secret123"})
		require.NoError(t, err)
		assert.Equal(t, utils.ScopeAccess, resp.Scope)
		assert.False(t, resp.User.IsEmailVerified)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &request.LoginRequest{Email: "bob@example.com", Password: "secret123"})
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &request.LoginRequest{Email: "ada@example.com", Password: "wrong-pass"})
		assert.Equal(t, KindAuth, KindOf(err))
	})

	t.Run("store failure", func(t *testing.T) {
		f.store.failNext("user.FindByEmail", errors.New("timeout"))
		_, err := f.svc.Login(ctx, &request.LoginRequest{Email: "ada@example.com", Password: "secret123"})
		assert.Equal(t, KindStoreUnavailable, KindOf(err))
	})
}

func TestRequestPasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")
	sentBefore := f.notifier.count()

	t.Run("unknown email looks the same", func(t *testing.T) {
		err := f.svc.RequestPasswordReset(ctx, &request.ForgotPasswordRequest{Email: "nobody@example.com"})
		assert.NoError(t, err)
		assert.Equal(t, sentBefore, f.notifier.count())
	})

	t.Run("known email gets one live token", func(t *testing.T) {
		require.NoError(t, f.svc.RequestPasswordReset(ctx, &request.ForgotPasswordRequest{Email: "ada@example.com"}))
		require.NoError(t, f.svc.RequestPasswordReset(ctx, &request.ForgotPasswordRequest{Email: "ada@example.com"}))

		tokens := f.store.tokensFor(user.ID, entity.TokenTypePasswordReset)
		require.Len(t, tokens, 1)
		assert.Equal(t, f.notifier.last().token, tokens[0].Token)
		assert.Equal(t, notify.KindPasswordReset, f.notifier.last().kind)

		// the verification token is a different type and survives
		assert.Len(t, f.store.tokensFor(user.ID, entity.TokenTypeEmailVerification), 1)
	})
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, &request.ForgotPasswordRequest{Email: "ada@example.com"}))
	token := f.notifier.last().token

	t.Run("mismatch", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, &request.ResetPasswordRequest{Token: token, Password: "newpass1", ConfirmPassword: "newpass2"})
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("success", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, &request.ResetPasswordRequest{Token: token, Password: "newpass1", ConfirmPassword: "newpass1"})
		require.NoError(t, err)

		_, err = f.svc.Login(ctx, &request.LoginRequest{Email: "ada@example.com", Password: "secret123"})
		assert.Equal(t, KindAuth, KindOf(err))

		_, err = f.svc.Login(ctx, &request.LoginRequest{Email: "ada@example.com", Password: "newpass1"})
		assert.NoError(t, err)
	})

	t.Run("replay", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, &request.ResetPasswordRequest{Token: token, Password: "newpass3", ConfirmPassword: "newpass3"})
		assert.Equal(t, KindAlreadyUsed, KindOf(err))
	})

	t.Run("verification token rejected", func(t *testing.T) {
		verifyToken := f.notifier.sent[0].token
		err := f.svc.ResetPassword(ctx, &request.ResetPasswordRequest{Token: verifyToken, Password: "newpass3", ConfirmPassword: "newpass3"})
		assert.Equal(t, KindValidation, KindOf(err))
	})
}

func TestResetPassword_UserUpdateFailureKeepsTokenUnused(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, &request.ForgotPasswordRequest{Email: "ada@example.com"}))
	token := f.notifier.last().token

	f.store.failNext("user.Update", errors.New("connection reset"))
	err := f.svc.ResetPassword(ctx, &request.ResetPasswordRequest{Token: token, Password: "newpass1", ConfirmPassword: "newpass1"})
	assert.Equal(t, KindStoreUnavailable, KindOf(err))

	tokens := f.store.tokensFor(user.ID, entity.TokenTypePasswordReset)
	require.Len(t, tokens, 1)
	assert.False(t, tokens[0].IsUsed)

	assert.NoError(t, f.svc.ResetPassword(ctx, &request.ResetPasswordRequest{Token: token, Password: "newpass1", ConfirmPassword: "newpass1"}))
}

func TestResendVerification(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com")

	t.Run("unknown email", func(t *testing.T) {
		err := f.svc.ResendVerification(ctx, &request.ResendVerificationRequest{Email: "bob@example.com"})
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("already verified", func(t *testing.T) {
		_, err := f.svc.VerifyEmail(ctx, &request.VerifyEmailRequest{Token: f.notifier.last().token})
		require.NoError(t, err)

		err = f.svc.ResendVerification(ctx, &request.ResendVerificationRequest{Email: "ada@example.com"})
		assert.Equal(t, KindConflict, KindOf(err))
		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})
}
