package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/confirmation"
	"github.com/goaltrack/goaltrack/services/jwt"
	"github.com/goaltrack/goaltrack/services/logging"
	"github.com/goaltrack/goaltrack/services/passwordreset"
	"github.com/goaltrack/goaltrack/services/user"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Mailer is the outbound delivery collaborator. Sends are awaited for
// completion of the handoff only; delivery itself is at-least-once with
// no latency bound.
type Mailer interface {
	SendConfirmationCode(email, code string) error
	SendPasswordReset(email, resetURL string) error
}

// Service drives an account through its lifecycle:
// registered (pending confirmation) -> confirmed -> logged in, with the
// forgot/reset detour available at any point after registration.
type Service struct {
	config   *config.Config
	users    *user.Service
	codes    *confirmation.Service
	resets   *passwordreset.Service
	sessions *jwt.Service
	mailer   Mailer
	logger   *logging.Service
}

func NewService(
	cfg *config.Config,
	users *user.Service,
	codes *confirmation.Service,
	resets *passwordreset.Service,
	sessions *jwt.Service,
	mailer Mailer,
	logger *logging.Service,
) *Service {
	return &Service{
		config:   cfg,
		users:    users,
		codes:    codes,
		resets:   resets,
		sessions: sessions,
		mailer:   mailer,
		logger:   logger,
	}
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	UserID    uint
	ExpiresAt time.Time
}

// Register creates an unconfirmed account, issues a confirmation code
// and mails it to the address.
func (s *Service) Register(username, email, password string) error {
	u, err := s.users.Create(username, email, password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			return conflict("email", "email address already exists")
		case errors.Is(err, user.ErrUsernameTaken):
			return conflict("username", "username already exists")
		case errors.Is(err, user.ErrPasswordPolicy):
			return invalid("password", err.Error())
		default:
			s.logger.Error("registration failed", zap.Error(err))
			return internal()
		}
	}

	code, err := s.codes.Issue(email)
	if err != nil {
		s.logger.Error("failed to issue confirmation code", zap.Error(err), zap.Uint("user_id", u.ID))
		return internal()
	}

	if err := s.mailer.SendConfirmationCode(email, code.Code); err != nil {
		s.logger.Error("failed to send confirmation code", zap.Error(err), zap.Uint("user_id", u.ID))
		return internal()
	}

	s.logger.Info("user registered, confirmation code sent", zap.Uint("user_id", u.ID))
	return nil
}

// ConfirmEmail flips the account to confirmed when the submitted code
// matches and has not expired. The code row is deleted on success, so a
// second attempt with the same code finds nothing and fails not-found.
func (s *Service) ConfirmEmail(email, code string) error {
	if err := s.codes.Verify(email, code); err != nil {
		switch {
		case errors.Is(err, confirmation.ErrCodeExpired):
			return expired("code", "confirmation code expired")
		case errors.Is(err, confirmation.ErrCodeNotFound):
			return notFound("code", "confirmation code not found")
		case errors.Is(err, confirmation.ErrCodeMismatch):
			return invalid("code", "invalid confirmation code")
		default:
			s.logger.Error("confirmation code verification failed", zap.Error(err))
			return internal()
		}
	}

	if err := s.users.MarkConfirmed(email); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return notFound("email", "user not found")
		}
		s.logger.Error("failed to mark account confirmed", zap.Error(err))
		return internal()
	}

	if err := s.codes.Consume(email); err != nil {
		s.logger.Error("failed to delete consumed confirmation code", zap.Error(err))
		return internal()
	}

	s.logger.Info("email confirmed", zap.String("email", email))
	return nil
}

// ResendCode issues a replacement confirmation code. A resend is only
// allowed once the previous code has expired; while it is still valid
// the request is rejected rather than throttled.
func (s *Service) ResendCode(email string) error {
	code, err := s.codes.Reissue(email)
	if err != nil {
		switch {
		case errors.Is(err, confirmation.ErrCodeNotFound):
			return notFound("email", "no confirmation code found")
		case errors.Is(err, confirmation.ErrCodeStillValid):
			return conflict("code", "confirmation code is still valid")
		default:
			s.logger.Error("failed to reissue confirmation code", zap.Error(err))
			return internal()
		}
	}

	if err := s.mailer.SendConfirmationCode(email, code.Code); err != nil {
		s.logger.Error("failed to send reissued confirmation code", zap.Error(err))
		return internal()
	}

	return nil
}

// Login verifies the credentials and mints a session token. Unknown
// email and wrong password produce byte-identical failures.
func (s *Service) Login(email, password string, rememberMe bool) (*Session, error) {
	u, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, errInvalidCredentials()
		}
		s.logger.Error("login lookup failed", zap.Error(err))
		return nil, internal()
	}

	if !u.IsConfirmed {
		return nil, ErrEmailNotConfirmed
	}

	if err := s.users.VerifyPassword(u.Password, password); err != nil {
		return nil, errInvalidCredentials()
	}

	token, err := s.sessions.Generate(u.ID, rememberMe)
	if err != nil {
		s.logger.Error("failed to mint session token", zap.Error(err), zap.Uint("user_id", u.ID))
		return nil, internal()
	}

	if err := s.users.RecordLogin(u.ID); err != nil {
		// Login still succeeds; the timestamp is best effort.
		s.logger.Warn("failed to record login time", zap.Error(err), zap.Uint("user_id", u.ID))
	}

	s.logger.Info("user logged in",
		zap.Uint("user_id", u.ID),
		zap.Bool("remember_me", rememberMe))

	return &Session{
		Token:     token,
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(s.sessions.SessionExpiry(rememberMe)),
	}, nil
}

// RequestPasswordReset mails a reset link to the account. Confirmation
// state is irrelevant here; only existence of the account matters.
func (s *Service) RequestPasswordReset(email string) error {
	u, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return notFound("email", "user not found")
		}
		s.logger.Error("password reset lookup failed", zap.Error(err))
		return internal()
	}

	token, err := s.resets.Request(u.ID)
	if err != nil {
		if errors.Is(err, passwordreset.ErrResetAlreadyRequested) {
			return conflict("email", "password reset link already sent")
		}
		s.logger.Error("failed to create password reset token", zap.Error(err), zap.Uint("user_id", u.ID))
		return internal()
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.config.App.URL, token.Token)

	if err := s.mailer.SendPasswordReset(email, resetURL); err != nil {
		s.logger.Error("failed to send password reset email", zap.Error(err), zap.Uint("user_id", u.ID))
		return internal()
	}

	s.logger.Info("password reset link sent", zap.Uint("user_id", u.ID))
	return nil
}

// ResetPassword redeems the token and installs the new password in one
// transaction, so a token can never pay out twice: the second redemption
// finds the row gone and fails not-found. Sessions minted before the
// reset stay valid until they expire.
func (s *Service) ResetPassword(token, newPassword string) error {
	err := s.resets.Redeem(token, func(tx *gorm.DB, userID uint) error {
		return s.users.UpdatePassword(tx, userID, newPassword)
	})
	if err != nil {
		switch {
		case errors.Is(err, passwordreset.ErrResetTokenNotFound):
			return notFound("token", "password reset token not found")
		case errors.Is(err, passwordreset.ErrResetTokenExpired):
			return expired("token", "token has expired")
		case errors.Is(err, user.ErrUserNotFound):
			return notFound("token", "password reset token not found")
		case errors.Is(err, user.ErrPasswordPolicy):
			return invalid("password", err.Error())
		default:
			s.logger.Error("password reset failed", zap.Error(err))
			return internal()
		}
	}

	return nil
}

// Logout performs no server-side work: session tokens are stateless and
// cannot be revoked, so ending a session means discarding the token at
// the client. The HTTP layer clears the cookie.
func (s *Service) Logout(userID uint) {
	s.logger.Info("user logged out", zap.Uint("user_id", userID))
}
