package models

import "time"

// LoginChallenge is the second factor bound to one login attempt. The
// numeric code is stored only as a sha256 hash; the row dies on
// consumption, expiry, or the attempt limit, whichever comes first.
type LoginChallenge struct {
	ID         string     `json:"id" gorm:"type:varchar(32);primaryKey"`
	UserID     uint       `json:"user_id" gorm:"not null;index"`
	User       User       `json:"-" gorm:"foreignKey:UserID"`
	CodeHash   string     `json:"-" gorm:"type:varchar(64);not null"`
	Attempts   int        `json:"attempts" gorm:"not null;default:0"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"not null;index"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (c *LoginChallenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
