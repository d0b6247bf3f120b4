package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/internal/services"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
)

// OrdersHandler serves the admin order list and status transitions.
type OrdersHandler struct {
	DB       *gorm.DB
	Notifier services.Notifier
}

func NewOrdersHandler(db *gorm.DB, notifier services.Notifier) *OrdersHandler {
	return &OrdersHandler{DB: db, Notifier: notifier}
}

// List returns all orders newest first, with the owning user and line items.
func (h *OrdersHandler) List(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.DB.
		Preload("User").
		Preload("Items.Product").
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		logger.Error("orders_list_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load orders")
	}
	return utils.Success(c, fiber.StatusOK, orders)
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

// UpdateStatus moves an order to a new status. Reaching delivered also marks
// the order completed. The customer is notified over chat when possible; a
// delivery failure is logged but does not fail the request.
func (h *OrdersHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid order id")
	}

	var req orderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Status.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "invalid order status")
	}

	var order models.Order
	if err := h.DB.Preload("User").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "order not found")
		}
		logger.Error("order_load_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load order")
	}

	updates := map[string]interface{}{"status": req.Status}
	if req.Status == models.OrderStatusDelivered {
		updates["completed"] = true
	}
	if err := h.DB.Model(&order).Updates(updates).Error; err != nil {
		logger.Error("order_status_update_failed", err, map[string]interface{}{
			"order_id": order.ID,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update order")
	}

	if h.Notifier != nil && order.User.TelegramID != nil {
		if err := h.Notifier.NotifyOrderStatus(*order.User.TelegramID, order.ID, req.Status); err != nil {
			logger.Warn("order_status_notify_failed", map[string]interface{}{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	logger.Info("order_status_updated", map[string]interface{}{
		"order_id": order.ID,
		"status":   string(req.Status),
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":        order.ID,
		"status":    req.Status,
		"completed": req.Status == models.OrderStatusDelivered || order.Completed,
	})
}
