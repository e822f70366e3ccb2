package testutils

import (
	"time"

	"github.com/goaltrack/goaltrack/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "goaltrack test",
			URL:  "http://localhost:3000",
		},
		Auth: config.AuthConfig{
			BcryptCost:               bcrypt.MinCost,
			MinPasswordLength:        6,
			ConfirmationCodeLength:   6,
			ConfirmationCodeExpiry:   10 * time.Minute,
			PasswordResetTokenLength: 32,
			PasswordResetExpiry:      time.Hour,
		},
		JWT: config.JWTConfig{
			SecretKey:        "test-secret-key-32-chars-long!!!",
			Issuer:           "goaltrack-test",
			SessionExpiry:    time.Hour,
			RememberMeExpiry: 7 * 24 * time.Hour,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
	}
}
