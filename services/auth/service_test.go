package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/confirmation"
	"github.com/goaltrack/goaltrack/services/jwt"
	"github.com/goaltrack/goaltrack/services/passwordreset"
	"github.com/goaltrack/goaltrack/services/user"
	"github.com/goaltrack/goaltrack/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeMailer records outbound sends so tests can read issued codes and
// links without a mail server.
type fakeMailer struct {
	codes map[string]string
	links map[string]string
	fail  bool
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		codes: make(map[string]string),
		links: make(map[string]string),
	}
}

func (m *fakeMailer) SendConfirmationCode(email, code string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.codes[email] = code
	return nil
}

func (m *fakeMailer) SendPasswordReset(email, resetURL string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.links[email] = resetURL
	return nil
}

type fixture struct {
	cfg     *config.Config
	db      *gorm.DB
	service *Service
	users   *user.Service
	codes   *confirmation.Service
	resets  *passwordreset.Service
	mailer  *fakeMailer
}

func setup(t *testing.T) *fixture {
	db := testutils.SetupTestDB(t,
		&user.User{},
		&confirmation.ConfirmationCode{},
		&passwordreset.PasswordResetToken{})
	cfg := testutils.GetTestConfig()

	users := user.NewService(cfg, db, nil)
	codes := confirmation.NewService(cfg, db, nil)
	resets := passwordreset.NewService(cfg, db, nil)
	sessions := jwt.NewService(cfg, nil)
	mailer := newFakeMailer()

	return &fixture{
		cfg:     cfg,
		db:      db,
		service: NewService(cfg, users, codes, resets, sessions, mailer, nil),
		users:   users,
		codes:   codes,
		resets:  resets,
		mailer:  mailer,
	}
}

func (f *fixture) register(t *testing.T, username, email, password string) {
	t.Helper()
	require.NoError(t, f.service.Register(username, email, password))
}

func (f *fixture) confirm(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, f.service.ConfirmEmail(email, f.mailer.codes[email]))
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	return authErr.Kind
}

func TestService_Register(t *testing.T) {
	f := setup(t)

	t.Run("creates a pending account and mails the code", func(t *testing.T) {
		require.NoError(t, f.service.Register("alice", "a@x.com", "secret1"))

		u, err := f.users.FindByEmail("a@x.com")
		require.NoError(t, err)
		assert.False(t, u.IsConfirmed)

		code := f.mailer.codes["a@x.com"]
		assert.Len(t, code, 6)
	})

	t.Run("rejects a taken email with a field conflict", func(t *testing.T) {
		err := f.service.Register("alice2", "a@x.com", "secret1")

		require.Error(t, err)
		assert.Equal(t, KindConflict, kindOf(t, err))
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "email", authErr.Field)
	})

	t.Run("rejects a taken username with a field conflict", func(t *testing.T) {
		err := f.service.Register("alice", "a2@x.com", "secret1")

		require.Error(t, err)
		assert.Equal(t, KindConflict, kindOf(t, err))
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "username", authErr.Field)
	})

	t.Run("rejects a weak password as invalid", func(t *testing.T) {
		err := f.service.Register("bob", "b@x.com", "abc")

		require.Error(t, err)
		assert.Equal(t, KindInvalid, kindOf(t, err))
	})

	t.Run("mail failure surfaces as internal", func(t *testing.T) {
		f.mailer.fail = true
		defer func() { f.mailer.fail = false }()

		err := f.service.Register("carol", "c@x.com", "secret1")

		require.Error(t, err)
		assert.Equal(t, KindInternal, kindOf(t, err))
	})
}

func TestService_ConfirmEmail(t *testing.T) {
	f := setup(t)
	f.register(t, "alice", "a@x.com", "secret1")

	t.Run("rejects a wrong code", func(t *testing.T) {
		err := f.service.ConfirmEmail("a@x.com", "WRONG1")

		require.Error(t, err)
		assert.Equal(t, KindInvalid, kindOf(t, err))

		u, lookupErr := f.users.FindByEmail("a@x.com")
		require.NoError(t, lookupErr)
		assert.False(t, u.IsConfirmed)
	})

	t.Run("confirms with the issued code exactly once", func(t *testing.T) {
		code := f.mailer.codes["a@x.com"]
		require.NoError(t, f.service.ConfirmEmail("a@x.com", code))

		u, err := f.users.FindByEmail("a@x.com")
		require.NoError(t, err)
		assert.True(t, u.IsConfirmed)

		// The code row was deleted, so replaying it finds nothing.
		err = f.service.ConfirmEmail("a@x.com", code)
		require.Error(t, err)
		assert.Equal(t, KindNotFound, kindOf(t, err))
	})

	t.Run("rejects a matching but expired code as expired", func(t *testing.T) {
		f.register(t, "dave", "d@x.com", "secret1")
		require.NoError(t, f.db.Model(&confirmation.ConfirmationCode{}).
			Where("email = ?", "d@x.com").
			Update("expires_at", time.Now().Add(-time.Minute)).Error)

		err := f.service.ConfirmEmail("d@x.com", f.mailer.codes["d@x.com"])

		require.Error(t, err)
		assert.Equal(t, KindExpired, kindOf(t, err))
	})
}

func TestService_ResendCode(t *testing.T) {
	f := setup(t)
	f.register(t, "alice", "a@x.com", "secret1")

	t.Run("refuses while the current code is valid", func(t *testing.T) {
		err := f.service.ResendCode("a@x.com")

		require.Error(t, err)
		assert.Equal(t, KindConflict, kindOf(t, err))
	})

	t.Run("sends a fresh code once the old one expired", func(t *testing.T) {
		require.NoError(t, f.db.Model(&confirmation.ConfirmationCode{}).
			Where("email = ?", "a@x.com").
			Update("expires_at", time.Now().Add(-time.Minute)).Error)

		require.NoError(t, f.service.ResendCode("a@x.com"))

		fresh := f.mailer.codes["a@x.com"]
		assert.Len(t, fresh, 6)
		require.NoError(t, f.service.ConfirmEmail("a@x.com", fresh))
	})

	t.Run("reports not found for an unknown email", func(t *testing.T) {
		err := f.service.ResendCode("nobody@x.com")

		require.Error(t, err)
		assert.Equal(t, KindNotFound, kindOf(t, err))
	})
}

func TestService_Login(t *testing.T) {
	f := setup(t)
	f.register(t, "alice", "a@x.com", "secret1")

	t.Run("refuses an unconfirmed account regardless of password", func(t *testing.T) {
		_, err := f.service.Login("a@x.com", "secret1", false)
		assert.ErrorIs(t, err, ErrEmailNotConfirmed)

		_, err = f.service.Login("a@x.com", "wrong", false)
		assert.ErrorIs(t, err, ErrEmailNotConfirmed)
	})

	f.confirm(t, "a@x.com")

	t.Run("unknown email and wrong password fail identically", func(t *testing.T) {
		_, errUnknown := f.service.Login("nobody@x.com", "secret1", false)
		_, errWrong := f.service.Login("a@x.com", "wrong", false)

		require.Error(t, errUnknown)
		require.Error(t, errWrong)
		assert.Equal(t, errUnknown.Error(), errWrong.Error())
		assert.Equal(t, kindOf(t, errUnknown), kindOf(t, errWrong))
	})

	t.Run("issues a session token with about one hour expiry", func(t *testing.T) {
		session, err := f.service.Login("a@x.com", "secret1", false)

		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

		u, err := f.users.FindByEmail("a@x.com")
		require.NoError(t, err)
		assert.NotNil(t, u.LastLoginAt)
	})

	t.Run("remember me stretches expiry to about seven days", func(t *testing.T) {
		session, err := f.service.Login("a@x.com", "secret1", true)

		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), session.ExpiresAt, time.Minute)
	})
}

func TestService_RequestPasswordReset(t *testing.T) {
	f := setup(t)
	f.register(t, "alice", "a@x.com", "secret1")

	t.Run("works for an unconfirmed account", func(t *testing.T) {
		require.NoError(t, f.service.RequestPasswordReset("a@x.com"))
		assert.Contains(t, f.mailer.links["a@x.com"], f.cfg.App.URL+"/reset-password?token=")
	})

	t.Run("rejects a second request while the token is active", func(t *testing.T) {
		err := f.service.RequestPasswordReset("a@x.com")

		require.Error(t, err)
		assert.Equal(t, KindConflict, kindOf(t, err))
	})

	t.Run("permits a new request after expiry", func(t *testing.T) {
		require.NoError(t, f.db.Model(&passwordreset.PasswordResetToken{}).
			Where("user_id = ?", 1).
			Update("expires_at", time.Now().Add(-time.Minute)).Error)

		require.NoError(t, f.service.RequestPasswordReset("a@x.com"))
	})

	t.Run("reports not found for an unknown email", func(t *testing.T) {
		err := f.service.RequestPasswordReset("nobody@x.com")

		require.Error(t, err)
		assert.Equal(t, KindNotFound, kindOf(t, err))
	})
}

func TestService_ResetPassword(t *testing.T) {
	f := setup(t)
	f.register(t, "alice", "a@x.com", "secret1")
	f.confirm(t, "a@x.com")

	tokenFor := func(t *testing.T) string {
		t.Helper()
		require.NoError(t, f.service.RequestPasswordReset("a@x.com"))
		link := f.mailer.links["a@x.com"]
		prefix := f.cfg.App.URL + "/reset-password?token="
		require.Contains(t, link, prefix)
		return link[len(prefix):]
	}

	t.Run("swaps the password and consumes the token", func(t *testing.T) {
		token := tokenFor(t)
		require.NoError(t, f.service.ResetPassword(token, "newpass1"))

		// Old password no longer authenticates, the new one does.
		_, err := f.service.Login("a@x.com", "secret1", false)
		require.Error(t, err)
		_, err = f.service.Login("a@x.com", "newpass1", false)
		require.NoError(t, err)

		// Second redemption of the same token finds the row gone.
		err = f.service.ResetPassword(token, "anotherpass1")
		require.Error(t, err)
		assert.Equal(t, KindNotFound, kindOf(t, err))
	})

	t.Run("rejects an expired token as expired", func(t *testing.T) {
		token := tokenFor(t)
		require.NoError(t, f.db.Model(&passwordreset.PasswordResetToken{}).
			Where("token = ?", token).
			Update("expires_at", time.Now().Add(-time.Minute)).Error)

		err := f.service.ResetPassword(token, "newpass2")
		require.Error(t, err)
		assert.Equal(t, KindExpired, kindOf(t, err))
	})

	t.Run("a weak replacement password leaves the token intact", func(t *testing.T) {
		require.NoError(t, f.db.Where("user_id = ?", 1).Delete(&passwordreset.PasswordResetToken{}).Error)
		token := tokenFor(t)

		err := f.service.ResetPassword(token, "abc")
		require.Error(t, err)
		assert.Equal(t, KindInvalid, kindOf(t, err))

		// The transaction rolled back, so the token still redeems.
		require.NoError(t, f.service.ResetPassword(token, "newpass3"))
	})
}
