package confirmation

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCodeNotFound   = errors.New("no confirmation code found")
	ErrCodeMismatch   = errors.New("confirmation code does not match")
	ErrCodeExpired    = errors.New("confirmation code has expired")
	ErrCodeStillValid = errors.New("confirmation code is still valid")
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

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

func (s *Service) generateCode() (string, error) {
	length := s.config.Auth.ConfirmationCodeLength
	if length <= 0 {
		length = 6
	}

	code := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate confirmation code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// Issue creates a confirmation code for the address and persists it,
// replacing any previously issued code for the same address.
func (s *Service) Issue(email string) (*ConfirmationCode, error) {
	code, err := s.generateCode()
	if err != nil {
		s.logger.Error("failed to generate confirmation code", zap.Error(err))
		return nil, err
	}

	entry := &ConfirmationCode{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(s.config.Auth.ConfirmationCodeExpiry),
	}

	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at"}),
	}).Create(entry).Error
	if err != nil {
		s.logger.Error("failed to store confirmation code", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to store confirmation code: %w", err)
	}

	s.logger.Info("confirmation code issued",
		zap.String("email", email),
		zap.Time("expires_at", entry.ExpiresAt))
	return entry, nil
}

// Verify checks the submitted code against the stored one. Comparison is
// case-sensitive. A matching but stale code reports ErrCodeExpired so the
// caller can offer a resend instead of a retry.
func (s *Service) Verify(email, submitted string) error {
	var entry ConfirmationCode
	if err := s.db.Where("email = ?", email).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("failed to look up confirmation code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(submitted)) != 1 {
		s.logger.Warn("confirmation code mismatch", zap.String("email", email))
		return ErrCodeMismatch
	}

	if time.Now().After(entry.ExpiresAt) {
		s.logger.Warn("expired confirmation code attempted",
			zap.String("email", email),
			zap.Time("expired_at", entry.ExpiresAt))
		return ErrCodeExpired
	}

	return nil
}

// Consume deletes the code row after a successful confirmation so the
// code cannot be used twice.
func (s *Service) Consume(email string) error {
	if err := s.db.Where("email = ?", email).Delete(&ConfirmationCode{}).Error; err != nil {
		return fmt.Errorf("failed to delete confirmation code: %w", err)
	}
	return nil
}

// Reissue replaces the stored code with a fresh one, but only once the
// previous code has expired. Resend-only-after-expiry bounds how often
// mail can be triggered for one address.
func (s *Service) Reissue(email string) (*ConfirmationCode, error) {
	var entry ConfirmationCode
	if err := s.db.Where("email = ?", email).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to look up confirmation code: %w", err)
	}

	if time.Now().Before(entry.ExpiresAt) {
		return nil, ErrCodeStillValid
	}

	return s.Issue(email)
}

func (s *Service) CleanupExpired() error {
	result := s.db.Where("expires_at < ?", time.Now()).Delete(&ConfirmationCode{})
	if result.Error != nil {
		return fmt.Errorf("failed to cleanup expired confirmation codes: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("expired confirmation codes cleaned up", zap.Int64("codes_removed", result.RowsAffected))
	}
	return nil
}

func (s *Service) StartCleanupWorker() {
	go func() {
		ticker := time.NewTicker(s.config.Auth.CleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			if err := s.CleanupExpired(); err != nil {
				s.logger.Error("confirmation code cleanup worker failed", zap.Error(err))
			}
		}
	}()

	s.logger.Info("started confirmation code cleanup worker",
		zap.Duration("interval", s.config.Auth.CleanupInterval))
}
