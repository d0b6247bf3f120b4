package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
)

// UsersHandler covers the admin user management surface.
type UsersHandler struct {
	DB *gorm.DB
}

func NewUsersHandler(db *gorm.DB) *UsersHandler {
	return &UsersHandler{DB: db}
}

// List returns all users with their roles, newest first.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	var users []models.User
	if err := h.DB.Preload("Role").Order("created_at DESC").Find(&users).Error; err != nil {
		logger.Error("users_list_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load users")
	}
	return utils.Success(c, fiber.StatusOK, users)
}

type createUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Role      string `json:"role"`
	Approved  *bool  `json:"approved"`
}

// Create registers a staff account with a hashed password. Customers normally
// arrive through the chat flow, so role defaults to courier here.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username and password are required")
	}

	roleID, ok := roleIDByName(req.Role)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "unknown role")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		logger.Error("password_hash_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create user")
	}

	approved := true
	if req.Approved != nil {
		approved = *req.Approved
	}

	user := models.User{
		Username:     &req.Username,
		PasswordHash: &hash,
		FirstName:    req.FirstName,
		Phone:        req.Phone,
		Address:      req.Address,
		Approved:     approved,
		RoleID:       roleID,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return utils.Error(c, fiber.StatusConflict, "username already taken")
		}
		logger.Error("user_create_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create user")
	}
	h.DB.Preload("Role").First(&user, user.ID)

	logger.Info("user_created", map[string]interface{}{
		"user_id":  user.ID,
		"username": req.Username,
		"role":     req.Role,
	})
	return utils.Success(c, fiber.StatusCreated, user)
}

type approveRequest struct {
	Approved *bool `json:"approved"`
}

// Approve toggles the approved flag on an account.
func (h *UsersHandler) Approve(c *fiber.Ctx) error {
	user, resp := h.findUser(c)
	if user == nil {
		return resp
	}

	var req approveRequest
	if err := c.BodyParser(&req); err != nil || req.Approved == nil {
		return utils.Error(c, fiber.StatusBadRequest, "approved flag is required")
	}

	if err := h.DB.Model(user).Update("approved", *req.Approved).Error; err != nil {
		logger.Error("user_approve_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update user")
	}

	logger.Info("user_approval_changed", map[string]interface{}{
		"user_id":  user.ID,
		"approved": *req.Approved,
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"id": user.ID, "approved": *req.Approved})
}

type roleChangeRequest struct {
	Role string `json:"role"`
}

// SetRole reassigns a user to another role.
func (h *UsersHandler) SetRole(c *fiber.Ctx) error {
	user, resp := h.findUser(c)
	if user == nil {
		return resp
	}

	var req roleChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	roleID, ok := roleIDByName(req.Role)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "unknown role")
	}

	if err := h.DB.Model(user).Update("role_id", roleID).Error; err != nil {
		logger.Error("user_role_change_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update user")
	}

	logger.Info("user_role_changed", map[string]interface{}{
		"user_id": user.ID,
		"role":    req.Role,
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"id": user.ID, "role": req.Role})
}

type updateUserRequest struct {
	FirstName *string `json:"firstName"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	Password  *string `json:"password"`
}

// Update edits profile fields; a non-empty password is rehashed.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	user, resp := h.findUser(c)
	if user == nil {
		return resp
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			logger.Error("password_hash_failed", err, nil)
			return utils.Error(c, fiber.StatusInternalServerError, "failed to update user")
		}
		updates["password"] = hash
	}
	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no fields to update")
	}

	if err := h.DB.Model(user).Updates(updates).Error; err != nil {
		logger.Error("user_update_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update user")
	}

	h.DB.Preload("Role").First(user, user.ID)
	return utils.Success(c, fiber.StatusOK, user)
}

func (h *UsersHandler) findUser(c *fiber.Ctx) (*models.User, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}
	var user models.User
	if err := h.DB.Preload("Role").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		logger.Error("user_load_failed", err, nil)
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed to load user")
	}
	return &user, nil
}

func roleIDByName(name string) (uint, bool) {
	switch models.RoleName(name) {
	case models.RoleAdmin:
		return models.RoleIDAdmin, true
	case models.RoleCourier, "":
		return models.RoleIDCourier, true
	case models.RoleCustomer:
		return models.RoleIDCustomer, true
	default:
		return 0, false
	}
}
