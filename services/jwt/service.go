package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingToken     = errors.New("session token is missing")
	ErrInvalidToken     = errors.New("invalid session token")
	ErrExpiredToken     = errors.New("session token has expired")
	ErrMalformedToken   = errors.New("malformed session token")
	ErrInvalidSignature = errors.New("invalid session token signature")
)

type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// Service mints and verifies the stateless session tokens that are the
// sole proof of identity on protected requests. There is no server-side
// revocation list: a token stays valid until its expiry.
type Service struct {
	config *config.Config
	logger *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
	}
}

// SessionExpiry reports the lifetime a token minted now would get.
func (s *Service) SessionExpiry(rememberMe bool) time.Duration {
	if rememberMe {
		return s.config.JWT.RememberMeExpiry
	}
	return s.config.JWT.SessionExpiry
}

func (s *Service) Generate(userID uint, rememberMe bool) (string, error) {
	now := time.Now()
	jti := uuid.New().String()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.JWT.Issuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  []string{s.config.JWT.Issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.SessionExpiry(rememberMe))),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWT.SecretKey))
	if err != nil {
		s.logger.Error("failed to sign session token", zap.Error(err))
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	return tokenString, nil
}

func (s *Service) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}

		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok || token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
		}

		return []byte(s.config.JWT.SecretKey), nil
	})

	if err != nil {
		s.logger.Warn("session token validation failed", zap.Error(err))

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
