package middleware

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/internal/services"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
)

const (
	currentUserKey = "currentUser"
	userIDKey      = "userID"
)

type AuthMiddleware struct {
	Sessions *services.SessionService
	Cfg      config.SessionConfig
}

func NewAuthMiddleware(sessions *services.SessionService, cfg config.SessionConfig) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions, Cfg: cfg}
}

// SameOrigin rejects state-changing requests whose Origin header does not
// match the request's own host and scheme. Requests without an Origin
// header (curl, server-to-server) pass through.
func SameOrigin(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return c.Next()
	}

	origin := c.Get(fiber.HeaderOrigin)
	if origin == "" {
		return c.Next()
	}

	host := c.Hostname()
	if host == "" {
		return utils.Error(c, fiber.StatusBadRequest, "missing host header")
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return utils.Error(c, fiber.StatusBadRequest, "invalid origin header")
	}

	if parsed.Host != host {
		logger.Warn("cross_origin_rejected", map[string]interface{}{
			"origin": origin,
			"host":   host,
			"path":   c.Path(),
			"ip":     c.IP(),
		})
		return utils.Error(c, fiber.StatusForbidden, "invalid request origin")
	}

	if parsed.Scheme != c.Protocol() {
		return utils.Error(c, fiber.StatusForbidden, "invalid request protocol")
	}

	return c.Next()
}

// RequireAuth resolves the session cookie to a user and enforces the
// approval flag. Role gates stack on top via RequireRoles.
func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	token := c.Cookies(a.Cfg.CookieName)
	user, err := a.Sessions.Resolve(token)
	if err != nil {
		logger.Error("session_resolve_failed", err, map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
	}

	if !user.Approved {
		return utils.Error(c, fiber.StatusForbidden, "user not approved")
	}

	c.Locals(currentUserKey, user)
	c.Locals(userIDKey, strconv.FormatUint(uint64(user.ID), 10))
	return c.Next()
}

// RequireRoles allows only the named roles past. It assumes RequireAuth
// already ran.
func RequireRoles(roles ...models.RoleName) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetCurrentUser(c)
		if user == nil {
			return utils.Error(c, fiber.StatusUnauthorized, "not authenticated")
		}

		for _, role := range roles {
			if user.Role.Name == role {
				return c.Next()
			}
		}

		return utils.Error(c, fiber.StatusForbidden, "access denied")
	}
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
