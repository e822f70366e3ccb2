package auth

import (
	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/confirmation"
	"github.com/goaltrack/goaltrack/services/jwt"
	"github.com/goaltrack/goaltrack/services/logging"
	"github.com/goaltrack/goaltrack/services/mail"
	"github.com/goaltrack/goaltrack/services/passwordreset"
	"github.com/goaltrack/goaltrack/services/user"
	"go.uber.org/fx"
)

func ProvideAuthService(
	cfg *config.Config,
	users *user.Service,
	codes *confirmation.Service,
	resets *passwordreset.Service,
	sessions *jwt.Service,
	mailer *mail.Service,
	logger *logging.Service,
) *Service {
	return NewService(cfg, users, codes, resets, sessions, mailer, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideAuthService),
)
