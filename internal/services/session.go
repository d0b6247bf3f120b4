package services

import (
	"errors"
	"time"

	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
	"gorm.io/gorm"
)

type SessionService struct {
	DB  *gorm.DB
	Cfg config.SessionConfig
}

func NewSessionService(db *gorm.DB, cfg config.SessionConfig) *SessionService {
	return &SessionService{DB: db, Cfg: cfg}
}

// Create issues a fresh opaque bearer token for the user and persists only
// its hash, along with client metadata for audit. The raw token is
// returned once and never stored.
func (s *SessionService) Create(userID uint, ipAddress, userAgent string) (string, time.Time, error) {
	token, err := utils.GenerateToken(32)
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().UTC().Add(s.Cfg.TTL)
	session := models.Session{
		UserID:    userID,
		TokenHash: utils.HashToken(token),
		ExpiresAt: expiresAt,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}

	if err := s.DB.Create(&session).Error; err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// Resolve maps a presented token to its owning user, or nil when no live
// session matches. A session found past its expiry is revoked on the spot;
// every failure mode looks identical to the caller.
func (s *SessionService) Resolve(token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	var session models.Session
	err := s.DB.
		Preload("User.Role").
		First(&session, "token_hash = ? AND revoked_at IS NULL", utils.HashToken(token)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	if session.Expired(now) {
		if err := s.DB.Model(&session).Update("revoked_at", now).Error; err != nil {
			return nil, err
		}
		return nil, nil
	}

	return &session.User, nil
}

// Revoke marks the matching session revoked. Revoking an unknown or
// already-revoked token is a no-op.
func (s *SessionService) Revoke(token string) error {
	if token == "" {
		return nil
	}

	return s.DB.Model(&models.Session{}).
		Where("token_hash = ? AND revoked_at IS NULL", utils.HashToken(token)).
		Update("revoked_at", time.Now().UTC()).Error
}

func (s *SessionService) CleanupExpired() error {
	return s.DB.
		Where("expires_at <= ? OR revoked_at IS NOT NULL", time.Now().UTC()).
		Delete(&models.Session{}).Error
}
