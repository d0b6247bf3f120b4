package models

import "time"

// Session is one authenticated browser login. Only the sha256 of the
// bearer token is stored; possession of this row cannot forge a session.
type Session struct {
	BaseModel
	UserID    uint       `json:"user_id" gorm:"not null;index"`
	User      User       `json:"-" gorm:"foreignKey:UserID"`
	TokenHash string     `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null;index"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	IPAddress string     `json:"ip_address,omitempty" gorm:"type:varchar(45)"`
	UserAgent string     `json:"user_agent,omitempty" gorm:"type:text"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
