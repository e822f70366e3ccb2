package main

import (
	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/database"
	"github.com/goaltrack/goaltrack/handlers"
	"github.com/goaltrack/goaltrack/server"
	"github.com/goaltrack/goaltrack/services/auth"
	"github.com/goaltrack/goaltrack/services/confirmation"
	"github.com/goaltrack/goaltrack/services/jwt"
	"github.com/goaltrack/goaltrack/services/logging"
	"github.com/goaltrack/goaltrack/services/mail"
	"github.com/goaltrack/goaltrack/services/passwordreset"
	"github.com/goaltrack/goaltrack/services/user"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.NewProvider(nil),
		fx.Provide(func() *database.ModelsOption {
			return database.WithModels(
				&user.User{},
				&confirmation.ConfirmationCode{},
				&passwordreset.PasswordResetToken{},
			)
		}),
		logging.Module,
		database.Module,
		user.Module,
		confirmation.Module,
		passwordreset.Module,
		jwt.Module,
		mail.Module,
		auth.Module,
		handlers.Module,
		server.NewProvider(),
	).Run()
}
