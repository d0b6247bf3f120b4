package services

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
	"gorm.io/gorm"
)

// Consume failure reasons. These drive internal control flow only; the
// HTTP surface collapses all of them into one generic denial so a caller
// cannot probe which challenges exist or in what state they are.
var (
	ErrChallengeNotFound         = errors.New("challenge not found or already used")
	ErrChallengeExpired          = errors.New("challenge expired")
	ErrChallengeAttemptsExceeded = errors.New("challenge attempt limit exceeded")
	ErrChallengeCodeMismatch     = errors.New("challenge code mismatch")
)

type ChallengeService struct {
	DB  *gorm.DB
	Cfg config.ChallengeConfig
}

func NewChallengeService(db *gorm.DB, cfg config.ChallengeConfig) *ChallengeService {
	return &ChallengeService{DB: db, Cfg: cfg}
}

// Issue stores a new challenge for the user and returns its opaque id.
// Any prior live challenge for the same user is invalidated first, so at
// most one challenge per user can ever be consumed.
func (s *ChallengeService) Issue(userID uint, code string) (string, error) {
	id, err := utils.GenerateToken(16)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if err := s.DB.Model(&models.LoginChallenge{}).
		Where("user_id = ? AND consumed_at IS NULL", userID).
		Update("consumed_at", now).Error; err != nil {
		return "", err
	}

	challenge := models.LoginChallenge{
		ID:        id,
		UserID:    userID,
		CodeHash:  utils.HashToken(code),
		Attempts:  0,
		ExpiresAt: now.Add(s.Cfg.TTL),
	}

	if err := s.DB.Create(&challenge).Error; err != nil {
		return "", err
	}

	return id, nil
}

// Consume verifies the submitted code against a live challenge. Liveness
// checks (consumed, expiry, attempt limit) run before the code comparison;
// a mismatch burns one attempt, a match consumes the challenge for good.
func (s *ChallengeService) Consume(challengeID, code string) (uint, error) {
	var challenge models.LoginChallenge
	err := s.DB.First(&challenge, "id = ?", challengeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrChallengeNotFound
		}
		return 0, err
	}

	if challenge.ConsumedAt != nil {
		return 0, ErrChallengeNotFound
	}

	now := time.Now().UTC()
	if challenge.Expired(now) {
		return 0, ErrChallengeExpired
	}

	if challenge.Attempts >= s.Cfg.MaxAttempts {
		return 0, ErrChallengeAttemptsExceeded
	}

	received := utils.HashToken(code)
	if subtle.ConstantTimeCompare([]byte(challenge.CodeHash), []byte(received)) != 1 {
		if err := s.DB.Model(&challenge).Update("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
			return 0, err
		}
		return 0, ErrChallengeCodeMismatch
	}

	if err := s.DB.Model(&challenge).Update("consumed_at", now).Error; err != nil {
		return 0, err
	}

	return challenge.UserID, nil
}

// CleanupExpired deletes dead challenge rows. Expiry and consumption are
// already enforced on every read; this only keeps the table small.
func (s *ChallengeService) CleanupExpired() error {
	return s.DB.
		Where("expires_at <= ? OR consumed_at IS NOT NULL", time.Now().UTC()).
		Delete(&models.LoginChallenge{}).Error
}
