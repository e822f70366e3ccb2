package passwordreset

import "time"

// PasswordResetToken is the single active reset credential for a user.
// The unique index on UserID enforces at-most-one-token-per-user at the
// schema level; the unique index on Token makes redemption lookups exact.
type PasswordResetToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	Token     string    `json:"-" gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}
