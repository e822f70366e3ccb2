package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig      `envPrefix:"GOALTRACK_APP_"`
	Server   ServerConfig   `envPrefix:"GOALTRACK_SERVER_"`
	Log      LogConfig      `envPrefix:"GOALTRACK_LOG_"`
	Database DatabaseConfig `envPrefix:"GOALTRACK_DB_"`
	Auth     AuthConfig     `envPrefix:"GOALTRACK_AUTH_"`
	JWT      JWTConfig      `envPrefix:"GOALTRACK_JWT_"`
	Mail     MailConfig     `envPrefix:"GOALTRACK_MAIL_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"goaltrack"`
	URL  string `env:"URL" envDefault:"http://localhost:3000"`
}

type ServerConfig struct {
	Host string `env:"HOST" envDefault:"localhost"`
	Port string `env:"PORT" envDefault:"8080"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"goaltrack.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	BcryptCost               int           `env:"BCRYPT_COST" envDefault:"10"`
	MinPasswordLength        int           `env:"MIN_PASSWORD_LENGTH" envDefault:"8"`
	ConfirmationCodeLength   int           `env:"CONFIRMATION_CODE_LENGTH" envDefault:"6"`
	ConfirmationCodeExpiry   time.Duration `env:"CONFIRMATION_CODE_EXPIRY" envDefault:"10m"`
	PasswordResetTokenLength int           `env:"PASSWORD_RESET_TOKEN_LENGTH" envDefault:"32"`
	PasswordResetExpiry      time.Duration `env:"PASSWORD_RESET_EXPIRY" envDefault:"1h"`
	CleanupInterval          time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
}

type JWTConfig struct {
	SecretKey        string        `env:"SECRET_KEY"`
	Issuer           string        `env:"ISSUER" envDefault:"goaltrack"`
	SessionExpiry    time.Duration `env:"SESSION_EXPIRY" envDefault:"1h"`
	RememberMeExpiry time.Duration `env:"REMEMBER_ME_EXPIRY" envDefault:"168h"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"false"`
}

type MailConfig struct {
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME" envDefault:"goaltrack"`
}

func LoadConfig(cfg *Config) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("GOALTRACK_JWT_SECRET_KEY is required")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("GOALTRACK_JWT_SECRET_KEY must be at least 32 characters")
	}
	return nil
}
