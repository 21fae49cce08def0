package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fleurease/fleurease-api/internal/cache"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/storage"
	"github.com/fleurease/fleurease-api/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "Blossom2024!"
	testAvatar   = "data:image/png;base64,iVBORw0KGgo="
)

type accountFixture struct {
	repo    *MockAccountRepository
	avatars *MockAvatarStore
	mailer  *MockMailer
	orphans cache.OrphanQueue
	clock   *fakeClock
	svc     *AccountService
}

func newAccountFixture(t *testing.T, opts ...func(*accountFixture)) *accountFixture {
	t.Helper()
	f := &accountFixture{
		repo:    NewMockAccountRepository(),
		avatars: &MockAvatarStore{},
		mailer:  &MockMailer{},
		orphans: cache.NewMemoryOrphanQueue(),
		clock:   newFakeClock(testNow),
	}
	for _, opt := range opts {
		opt(f)
	}
	tokens := NewTokenService(f.repo, 24*time.Hour, 30*time.Minute, nil, newTestLogger()).WithClock(f.clock.Now)
	f.svc = NewAccountService(AccountServiceDeps{
		Accounts:     f.repo,
		Tokens:       tokens,
		Avatars:      f.avatars,
		Mailer:       f.mailer,
		Sessions:     MockSessionIssuer{},
		Orphans:      f.orphans,
		Audit:        newTestAudit(),
		Logger:       newTestLogger(),
		AvatarFolder: "avatars",
		AvatarWidth:  150,
	})
	f.svc.now = f.clock.Now
	return f
}

func registerInput() RegisterInput {
	return RegisterInput{Name: "Iris", Email: " Iris@Example.com ", Password: testPassword, Avatar: testAvatar}
}

func TestRegister_Success(t *testing.T) {
	f := newAccountFixture(t)

	account, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	assert.Equal(t, "iris@example.com", account.Email)
	assert.False(t, account.IsVerified)
	assert.Equal(t, "avatars/1.png", account.Avatar.PublicID)

	sent := f.mailer.Last()
	assert.Equal(t, "verification", sent.Kind)
	assert.Equal(t, "iris@example.com", sent.To)
	stored := f.repo.Get(account.ID)
	assert.Equal(t, auth.HashSecret(sent.Token), *stored.VerificationTokenHash)
}

func TestRegister_UploadsWithAvatarOptions(t *testing.T) {
	var got storage.UploadOptions
	f := newAccountFixture(t)
	f.avatars.UploadFunc = func(_ context.Context, _ string, opts storage.UploadOptions) (models.Avatar, error) {
		got = opts
		return models.Avatar{PublicID: "avatars/x.png"}, nil
	}

	_, err := f.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	assert.Equal(t, storage.UploadOptions{Folder: "avatars", Width: 150, Crop: storage.CropScale}, got)
}

func TestRegister_MailFailureRollsBackEverything(t *testing.T) {
	f := newAccountFixture(t)
	f.mailer.Err = errors.New("smtp: 421 service not available")

	_, err := f.svc.Register(context.Background(), registerInput())

	assert.ErrorIs(t, err, models.ErrMailDelivery)
	assert.Zero(t, f.repo.Count())
	assert.Empty(t, f.avatars.Remaining())
	n, _ := f.orphans.Len(context.Background())
	assert.Zero(t, n)
}

func TestRegister_FailedCompensatingDeleteIsQueued(t *testing.T) {
	f := newAccountFixture(t)
	f.mailer.Err = errors.New("mail down")
	f.repo.DeleteFunc = func(context.Context, string) error { return errors.New("db down") }

	_, err := f.svc.Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, models.ErrMailDelivery)

	orphan, ok, err := f.orphans.Pop(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, orphan.AccountID)
	assert.Empty(t, orphan.AvatarPublicID, "avatar delete succeeded")
	assert.Equal(t, testNow, orphan.QueuedAt)
	assert.Empty(t, f.avatars.Remaining())
}

func TestRegister_FailedAvatarDeleteIsQueued(t *testing.T) {
	f := newAccountFixture(t)
	f.mailer.Err = errors.New("mail down")
	f.avatars.DeleteFunc = func(context.Context, string) error { return models.ErrImageHost }

	_, err := f.svc.Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, models.ErrMailDelivery)
	assert.Zero(t, f.repo.Count())

	orphan, ok, _ := f.orphans.Pop(context.Background())
	require.True(t, ok)
	assert.Empty(t, orphan.AccountID)
	assert.Equal(t, "avatars/1.png", orphan.AvatarPublicID)
}

func TestRegister_QueueFailureStillReportsMailError(t *testing.T) {
	f := newAccountFixture(t, func(f *accountFixture) { f.orphans = newFailingQueue() })
	f.mailer.Err = errors.New("mail down")
	f.repo.DeleteFunc = func(context.Context, string) error { return errors.New("db down") }

	_, err := f.svc.Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, models.ErrMailDelivery)
}

func TestRegister_RollbackSurvivesCancelledContext(t *testing.T) {
	f := newAccountFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.mailer.Err = errors.New("mail down")
	f.repo.DeleteFunc = func(ctx context.Context, id string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.repo.DeleteFunc = nil
		return f.repo.Delete(ctx, id)
	}
	f.avatars.UploadFunc = func(_ context.Context, _ string, opts storage.UploadOptions) (models.Avatar, error) {
		cancel()
		return models.Avatar{PublicID: "avatars/c.png"}, nil
	}

	_, err := f.svc.Register(ctx, registerInput())
	require.Error(t, err)
	assert.Zero(t, f.repo.Count())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAccountFixture(t)
	f.repo.Seed(models.Account{Email: "iris@example.com"})

	_, err := f.svc.Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Empty(t, f.avatars.Uploaded)
	assert.Empty(t, f.mailer.Sent)
}

func TestRegister_CreateFailureRemovesAvatar(t *testing.T) {
	f := newAccountFixture(t)
	f.repo.CreateFunc = func(context.Context, *models.Account) (*models.Account, error) {
		return nil, errors.New("insert failed")
	}

	_, err := f.svc.Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Equal(t, []string{"avatars/1.png"}, f.avatars.Deleted)
	assert.Zero(t, f.repo.DeleteCalls)
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newAccountFixture(t)
	in := registerInput()
	in.Password = "password"

	_, err := f.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Zero(t, f.repo.Count())
}

func TestRegister_ImageHostFailure(t *testing.T) {
	f := newAccountFixture(t)
	f.avatars.UploadFunc = func(context.Context, string, storage.UploadOptions) (models.Avatar, error) {
		return models.Avatar{}, models.ErrImageHost
	}

	_, err := f.svc.Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, models.ErrImageHost)
	assert.Zero(t, f.repo.Count())
}

func TestVerifyEmail_WithMailedToken(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account, err := f.svc.Register(ctx, registerInput())
	require.NoError(t, err)

	verified, err := f.svc.VerifyEmail(ctx, f.mailer.Last().Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, verified.ID)
	assert.True(t, f.repo.Get(account.ID).IsVerified)

	_, err = f.svc.VerifyEmail(ctx, f.mailer.Last().Token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestResendVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("verified account gets nothing", func(t *testing.T) {
		f := newAccountFixture(t)
		f.repo.Seed(models.Account{Email: "rose@example.com", IsVerified: true})

		require.NoError(t, f.svc.ResendVerification(ctx, "rose@example.com"))
		assert.Empty(t, f.mailer.Sent)
	})

	t.Run("unknown email looks the same", func(t *testing.T) {
		f := newAccountFixture(t)
		require.NoError(t, f.svc.ResendVerification(ctx, "nobody@example.com"))
		assert.Empty(t, f.mailer.Sent)
	})

	t.Run("unverified account gets a fresh token", func(t *testing.T) {
		f := newAccountFixture(t)
		_, err := f.svc.Register(ctx, registerInput())
		require.NoError(t, err)
		first := f.mailer.Last().Token

		require.NoError(t, f.svc.ResendVerification(ctx, "IRIS@example.com"))
		second := f.mailer.Last().Token
		require.NotEqual(t, first, second)

		_, err = f.svc.VerifyEmail(ctx, first)
		assert.ErrorIs(t, err, models.ErrInvalidToken)
		_, err = f.svc.VerifyEmail(ctx, second)
		assert.NoError(t, err)
	})

	t.Run("mail failure clears the token", func(t *testing.T) {
		f := newAccountFixture(t)
		account, err := f.svc.Register(ctx, registerInput())
		require.NoError(t, err)

		f.mailer.Err = errors.New("mail down")
		require.NoError(t, f.svc.ResendVerification(ctx, account.Email))

		stored := f.repo.Get(account.ID)
		assert.Nil(t, stored.VerificationTokenHash)
		assert.Nil(t, stored.VerificationTokenExpiresAt)
	})

	t.Run("clear failure is still generic", func(t *testing.T) {
		f := newAccountFixture(t)
		account, err := f.svc.Register(ctx, registerInput())
		require.NoError(t, err)

		var clearCalls int
		f.repo.ClearVerificationTokenFunc = func(context.Context, string) error {
			clearCalls++
			return errors.New("connection reset")
		}
		f.mailer.Err = errors.New("mail down")

		require.NoError(t, f.svc.ResendVerification(ctx, account.Email))
		assert.Equal(t, 1, clearCalls)
		assert.True(t, f.repo.Get(account.ID).HasPendingVerification(testNow))
	})
}

func TestForgotPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("sends a reset link", func(t *testing.T) {
		f := newAccountFixture(t)
		account := f.repo.Seed(models.Account{Email: "lily@example.com", IsVerified: true})

		require.NoError(t, f.svc.ForgotPassword(ctx, "lily@example.com"))
		assert.Equal(t, "reset", f.mailer.Last().Kind)
		assert.True(t, f.repo.Get(account.ID).HasPendingReset(testNow))
	})

	t.Run("mail failure clears reset fields", func(t *testing.T) {
		f := newAccountFixture(t)
		account := f.repo.Seed(models.Account{Email: "lily@example.com", IsVerified: true})
		f.mailer.Err = errors.New("mail down")

		err := f.svc.ForgotPassword(ctx, "lily@example.com")
		assert.ErrorIs(t, err, models.ErrMailDelivery)

		stored := f.repo.Get(account.ID)
		assert.Nil(t, stored.ResetTokenHash)
		assert.Nil(t, stored.ResetTokenExpiresAt)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newAccountFixture(t)
		assert.ErrorIs(t, f.svc.ForgotPassword(ctx, "nobody@example.com"), models.ErrNotFound)
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture(t)
	account := f.repo.Seed(models.Account{Email: "lily@example.com", IsVerified: true, PasswordHash: hashedPassword("Original99")})
	require.NoError(t, f.svc.ForgotPassword(ctx, account.Email))
	token := f.mailer.Last().Token

	_, err := f.svc.ResetPassword(ctx, token, testPassword, "Different1")
	assert.ErrorIs(t, err, models.ErrPasswordMismatch)

	session, err := f.svc.ResetPassword(ctx, token, testPassword, testPassword)
	require.NoError(t, err)
	assert.NotEqual(t, account.TokenKey, session.Account.TokenKey)
	assert.Contains(t, session.Token, session.Account.TokenKey)

	_, err = f.svc.Login(ctx, account.Email, testPassword)
	assert.NoError(t, err)
	_, err = f.svc.ResetPassword(ctx, token, testPassword, testPassword)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture(t)
	hash := hashedPassword(testPassword)
	f.repo.Seed(models.Account{Email: "ok@example.com", PasswordHash: hash, IsVerified: true})
	f.repo.Seed(models.Account{Email: "new@example.com", PasswordHash: hash})
	f.repo.Seed(models.Account{Email: "bad@example.com", PasswordHash: hash, IsVerified: true, IsSuspended: true})

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "OK@example.com", testPassword, nil},
		{"wrong password", "ok@example.com", "Wrong12345", models.ErrUnauthorized},
		{"unknown email", "who@example.com", testPassword, models.ErrUnauthorized},
		{"unverified", "new@example.com", testPassword, models.ErrEmailNotVerified},
		{"suspended", "bad@example.com", testPassword, models.ErrAccountSuspended},
		{"empty", "", "", models.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := f.svc.Login(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, session.Token)
		})
	}
}

func TestSocialLogin_CreatesVerifiedAccount(t *testing.T) {
	f := newAccountFixture(t)

	session, err := f.svc.SocialLogin(context.Background(), models.ProviderGoogle, SocialProfile{
		Email:          "Dahlia@Example.com",
		Name:           "Dahlia",
		ProviderUserID: "1234",
		AvatarURL:      "https://lh3.example/photo.jpg",
	})
	require.NoError(t, err)

	a := session.Account
	assert.True(t, a.IsVerified)
	assert.Equal(t, models.ProviderGoogle, a.Provider)
	assert.Equal(t, "google_1234", a.Avatar.PublicID)
	assert.False(t, a.Avatar.IsHosted())
	assert.Error(t, auth.ComparePassword(a.PasswordHash, ""))
	assert.Empty(t, f.mailer.Sent)
}

func TestSocialLogin_ExistingAccount(t *testing.T) {
	f := newAccountFixture(t)
	existing := f.repo.Seed(models.Account{Email: "dahlia@example.com", IsVerified: true})
	profile := SocialProfile{Email: "dahlia@example.com", ProviderUserID: "99"}

	session, err := f.svc.SocialLogin(context.Background(), models.ProviderFacebook, profile)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, session.Account.ID)
	assert.Equal(t, 1, f.repo.Count())

	_, err = f.svc.SocialLogin(context.Background(), "myspace", profile)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestSocialLogin_Suspended(t *testing.T) {
	f := newAccountFixture(t)
	f.repo.Seed(models.Account{Email: "dahlia@example.com", IsSuspended: true})

	_, err := f.svc.SocialLogin(context.Background(), models.ProviderGoogle,
		SocialProfile{Email: "dahlia@example.com", ProviderUserID: "1"})
	assert.ErrorIs(t, err, models.ErrAccountSuspended)
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture(t)
	account := f.repo.Seed(models.Account{Email: "ivy@example.com", PasswordHash: hashedPassword("Original99"), IsVerified: true})

	_, err := f.svc.UpdatePassword(ctx, account.ID, "Wrong12345", testPassword)
	assert.ErrorIs(t, err, models.ErrIncorrectPassword)

	_, err = f.svc.UpdatePassword(ctx, account.ID, "Original99", "weak")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	session, err := f.svc.UpdatePassword(ctx, account.ID, "Original99", testPassword)
	require.NoError(t, err)
	stored := f.repo.Get(account.ID)
	assert.Equal(t, stored.TokenKey, session.Account.TokenKey)
	assert.NotEqual(t, account.TokenKey, stored.TokenKey)
	assert.NoError(t, auth.ComparePassword(stored.PasswordHash, testPassword))
}

func TestUpdateProfile_ReplacesAvatarAfterSave(t *testing.T) {
	f := newAccountFixture(t)
	account := f.repo.Seed(models.Account{
		Email:  "ivy@example.com",
		Name:   "Ivy",
		Avatar: models.Avatar{PublicID: "avatars/old.png", URL: "https://cdn.test/avatars/old.png"},
	})

	updated, err := f.svc.UpdateProfile(context.Background(), account.ID, ProfileInput{Name: "Ivy B", Avatar: testAvatar})
	require.NoError(t, err)

	assert.Equal(t, "Ivy B", updated.Name)
	assert.Equal(t, "avatars/1.png", updated.Avatar.PublicID)
	assert.Equal(t, []string{"avatars/old.png"}, f.avatars.Deleted)
}

func TestUpdateProfile_SaveFailureKeepsOldAvatar(t *testing.T) {
	f := newAccountFixture(t)
	account := f.repo.Seed(models.Account{Email: "ivy@example.com", Avatar: models.Avatar{PublicID: "avatars/old.png"}})
	f.repo.UpdateFunc = func(context.Context, *models.Account) (*models.Account, error) {
		return nil, errors.New("write failed")
	}

	_, err := f.svc.UpdateProfile(context.Background(), account.ID, ProfileInput{Avatar: testAvatar})
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Equal(t, []string{"avatars/1.png"}, f.avatars.Deleted)
	assert.Equal(t, "avatars/old.png", f.repo.Get(account.ID).Avatar.PublicID)
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	f := newAccountFixture(t)
	account := f.repo.Seed(models.Account{Email: "ivy@example.com"})
	f.repo.Seed(models.Account{Email: "taken@example.com"})

	_, err := f.svc.UpdateProfile(context.Background(), account.ID, ProfileInput{Email: "taken@example.com"})
	assert.ErrorIs(t, err, models.ErrConflict)
}
