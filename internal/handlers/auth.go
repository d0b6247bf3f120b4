package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/middleware"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/internal/services"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB         *gorm.DB
	Sessions   *services.SessionService
	Challenges *services.ChallengeService
	Notifier   services.Notifier
	SessionCfg config.SessionConfig
	CodeDigits int
}

func NewAuthHandler(db *gorm.DB, sessions *services.SessionService, challenges *services.ChallengeService, notifier services.Notifier, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		DB:         db,
		Sessions:   sessions,
		Challenges: challenges,
		Notifier:   notifier,
		SessionCfg: cfg.Session,
		CodeDigits: cfg.Challenge.CodeDigits,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and, when they hold, issues a second-factor
// challenge delivered to the user's chat. No session exists until the
// code is verified.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "missing username or password")
	}

	var user models.User
	err := h.DB.Preload("Role").First(&user, "username = ?", req.Username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}

	if user.PasswordHash == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	ok, legacy := utils.VerifyPassword(req.Password, *user.PasswordHash)
	if !ok {
		logger.Warn("login_password_mismatch", map[string]interface{}{
			"username": req.Username,
			"ip":       c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if legacy {
		if err := h.upgradePasswordHash(&user, req.Password); err != nil {
			logger.Error("password_rehash_failed", err, map[string]interface{}{
				"user_id": user.ID,
			})
		}
	}

	if !user.Approved {
		return utils.Error(c, fiber.StatusUnauthorized, "user not approved")
	}

	if user.Role.Name != models.RoleAdmin && user.Role.Name != models.RoleCourier {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	if user.TelegramID == nil {
		return utils.Error(c, fiber.StatusForbidden, "no second-factor delivery channel configured")
	}

	code, err := utils.GenerateNumericCode(h.CodeDigits)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}

	challengeID, err := h.Challenges.Issue(user.ID, code)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}

	if h.Notifier == nil {
		logger.Error("login_code_delivery_failed", nil, map[string]interface{}{
			"user_id": user.ID,
			"reason":  "notifier not configured",
		})
		return utils.Error(c, fiber.StatusBadGateway, "failed to deliver verification code")
	}
	if err := h.Notifier.SendLoginCode(*user.TelegramID, code); err != nil {
		logger.Error("login_code_delivery_failed", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return utils.Error(c, fiber.StatusBadGateway, "failed to deliver verification code")
	}

	logger.Info("login_challenge_issued", map[string]interface{}{
		"user_id": user.ID,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"challengeId": challengeID,
	})
}

// upgradePasswordHash rewrites a legacy plaintext-equivalent record as a
// strong scrypt record.
func (h *AuthHandler) upgradePasswordHash(user *models.User, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if err := h.DB.Model(user).Update("password", hash).Error; err != nil {
		return err
	}
	user.PasswordHash = &hash
	logger.Info("password_hash_upgraded", map[string]interface{}{
		"user_id": user.ID,
	})
	return nil
}

type verifyRequest struct {
	ChallengeID string `json:"challengeId"`
	Code        string `json:"code"`
}

// Verify consumes the second-factor challenge and, on success, issues the
// session cookie. Every challenge failure reason collapses into one
// generic denial.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.ChallengeID == "" || req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "missing challengeId or code")
	}

	userID, err := h.Challenges.Consume(req.ChallengeID, req.Code)
	if err != nil {
		if isChallengeDenial(err) {
			logger.Warn("login_challenge_denied", map[string]interface{}{
				"reason": err.Error(),
				"ip":     c.IP(),
			})
			return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired code")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}

	var user models.User
	if err := h.DB.Preload("Role").First(&user, userID).Error; err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired code")
	}

	if !user.Approved {
		return utils.Error(c, fiber.StatusUnauthorized, "user not approved")
	}

	if user.Role.Name != models.RoleAdmin && user.Role.Name != models.RoleCourier {
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}

	token, expiresAt, err := h.Sessions.Create(user.ID, c.IP(), c.Get("User-Agent"))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}

	h.setSessionCookie(c, token, expiresAt)

	logger.Info("login_succeeded", map[string]interface{}{
		"user_id": user.ID,
	})

	return utils.Success(c, fiber.StatusOK, user)
}

func isChallengeDenial(err error) bool {
	return errors.Is(err, services.ErrChallengeNotFound) ||
		errors.Is(err, services.ErrChallengeExpired) ||
		errors.Is(err, services.ErrChallengeAttemptsExceeded) ||
		errors.Is(err, services.ErrChallengeCodeMismatch)
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     h.SessionCfg.CookieName,
		Value:    token,
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   h.SessionCfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

func (h *AuthHandler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.SessionCfg.CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.SessionCfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

// Logout revokes the presented session, if any, and clears the cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if token := c.Cookies(h.SessionCfg.CookieName); token != "" {
		if err := h.Sessions.Revoke(token); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
		}
	}

	h.clearSessionCookie(c)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"ok": true})
}

// Session returns the authenticated caller's profile.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
	}
	return utils.Success(c, fiber.StatusOK, user)
}
