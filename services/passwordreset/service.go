package passwordreset

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrResetAlreadyRequested = errors.New("password reset link already sent")
	ErrResetTokenNotFound    = errors.New("password reset token not found")
	ErrResetTokenExpired     = errors.New("password reset token has expired")
)

type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

func (s *Service) generateToken() (string, error) {
	bytes := make([]byte, s.config.Auth.PasswordResetTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Request issues a reset token for the user. While an unexpired token
// exists the request is rejected, so repeated requests cannot flood a
// mailbox with links; an expired leftover row is replaced in place.
func (s *Service) Request(userID uint) (*PasswordResetToken, error) {
	var existing PasswordResetToken
	err := s.db.Where("user_id = ?", userID).First(&existing).Error
	switch {
	case err == nil:
		if time.Now().Before(existing.ExpiresAt) {
			s.logger.Warn("password reset requested while token still active", zap.Uint("user_id", userID))
			return nil, ErrResetAlreadyRequested
		}
		if err := s.db.Delete(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to replace expired reset token: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no active token, proceed
	default:
		return nil, fmt.Errorf("failed to check for active reset token: %w", err)
	}

	token, err := s.generateToken()
	if err != nil {
		s.logger.Error("failed to generate password reset token", zap.Error(err), zap.Uint("user_id", userID))
		return nil, err
	}

	resetToken := &PasswordResetToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.config.Auth.PasswordResetExpiry),
	}

	if err := s.db.Create(resetToken).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Concurrent request won the race on the user_id unique index.
			return nil, ErrResetAlreadyRequested
		}
		s.logger.Error("failed to store password reset token", zap.Error(err), zap.Uint("user_id", userID))
		return nil, fmt.Errorf("failed to store password reset token: %w", err)
	}

	s.logger.Info("password reset token created",
		zap.Uint("user_id", userID),
		zap.Time("expires_at", resetToken.ExpiresAt))
	return resetToken, nil
}

// Redeem validates the token, consumes it, and invokes update with the
// owning user's ID inside the same transaction. The delete's row count
// guards double redemption: whichever concurrent redeemer deletes the row
// proceeds, the other sees ErrResetTokenNotFound — the same failure a
// never-issued token gets, since the consumed row is simply gone.
func (s *Service) Redeem(token string, update func(tx *gorm.DB, userID uint) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var resetToken PasswordResetToken
		if err := tx.Where("token = ?", token).First(&resetToken).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn("unknown password reset token attempted")
				return ErrResetTokenNotFound
			}
			return fmt.Errorf("failed to look up reset token: %w", err)
		}

		if time.Now().After(resetToken.ExpiresAt) {
			s.logger.Warn("expired password reset token attempted",
				zap.Uint("user_id", resetToken.UserID),
				zap.Time("expired_at", resetToken.ExpiresAt))
			return ErrResetTokenExpired
		}

		result := tx.Where("id = ?", resetToken.ID).Delete(&PasswordResetToken{})
		if result.Error != nil {
			return fmt.Errorf("failed to consume reset token: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrResetTokenNotFound
		}

		if err := update(tx, resetToken.UserID); err != nil {
			return err
		}

		s.logger.Info("password reset token redeemed", zap.Uint("user_id", resetToken.UserID))
		return nil
	})
}

func (s *Service) CleanupExpired() error {
	result := s.db.Where("expires_at < ?", time.Now()).Delete(&PasswordResetToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to cleanup expired reset tokens: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("expired password reset tokens cleaned up", zap.Int64("tokens_removed", result.RowsAffected))
	}
	return nil
}

func (s *Service) StartCleanupWorker() {
	go func() {
		ticker := time.NewTicker(s.config.Auth.CleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			if err := s.CleanupExpired(); err != nil {
				s.logger.Error("password reset cleanup worker failed", zap.Error(err))
			}
		}
	}()

	s.logger.Info("started password reset cleanup worker",
		zap.Duration("interval", s.config.Auth.CleanupInterval))
}
