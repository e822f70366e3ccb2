package confirmation

import "time"

// ConfirmationCode holds the active email confirmation code for an
// address. The unique index on Email gives upsert semantics: reissuing
// overwrites the previous code rather than accumulating rows.
type ConfirmationCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Code      string    `json:"-" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
}

func (ConfirmationCode) TableName() string {
	return "confirmation_codes"
}
