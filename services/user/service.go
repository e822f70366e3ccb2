package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/goaltrack/goaltrack/config"
	"github.com/goaltrack/goaltrack/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken         = errors.New("username already exists")
	ErrEmailTaken            = errors.New("email address already exists")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPasswordPolicy        = errors.New("password does not meet requirements")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
)

type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < s.config.Auth.MinPasswordLength {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrPasswordPolicy, s.config.Auth.MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Create inserts a new unconfirmed account. Username and email are
// pre-checked to report which field collided; the unique indexes remain
// the authority, so a duplicate-key error from the insert itself is
// translated to the same sentinel errors.
func (s *Service) Create(username, email, rawPassword string) (*User, error) {
	var existing User
	if err := s.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}

	if err := s.db.Where("username = ?", username).First(&existing).Error; err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username uniqueness: %w", err)
	}

	hash, err := s.HashPassword(rawPassword)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:    username,
		Email:       email,
		Password:    hash,
		IsConfirmed: false,
	}

	if err := s.db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race between pre-check and insert.
			return nil, s.classifyDuplicate(username, email)
		}
		s.logger.Error("failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created",
		zap.Uint("user_id", u.ID),
		zap.String("username", u.Username))
	return u, nil
}

// classifyDuplicate re-runs the uniqueness lookups after a duplicate-key
// insert failure, so the caller learns which column actually collided.
// When neither lookup hits (the conflicting row vanished in the meantime)
// the email is reported as the registration identifier.
func (s *Service) classifyDuplicate(username, email string) error {
	var existing User
	if err := s.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return ErrEmailTaken
	}
	if err := s.db.Where("username = ?", username).First(&existing).Error; err == nil {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}

func (s *Service) FindByEmail(email string) (*User, error) {
	var u User
	if err := s.db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &u, nil
}

func (s *Service) FindByUsername(username string) (*User, error) {
	var u User
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return &u, nil
}

func (s *Service) FindByID(id uint) (*User, error) {
	var u User
	if err := s.db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}
	return &u, nil
}

func (s *Service) MarkConfirmed(email string) error {
	result := s.db.Model(&User{}).Where("email = ?", email).Update("is_confirmed", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark user confirmed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info("user email confirmed", zap.String("email", email))
	return nil
}

// UpdatePassword hashes rawPassword and stores it for the user. Callers
// holding a transaction (password reset) pass it via tx; otherwise tx may
// be nil.
func (s *Service) UpdatePassword(tx *gorm.DB, userID uint, rawPassword string) error {
	hash, err := s.HashPassword(rawPassword)
	if err != nil {
		return err
	}

	db := tx
	if db == nil {
		db = s.db
	}

	result := db.Model(&User{}).Where("id = ?", userID).Update("password", hash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info("user password updated", zap.Uint("user_id", userID))
	return nil
}

func (s *Service) RecordLogin(userID uint) error {
	now := time.Now()
	if err := s.db.Model(&User{}).Where("id = ?", userID).Update("last_login_at", &now).Error; err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}
