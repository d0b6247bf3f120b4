package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
)

type StatsHandler struct {
	DB *gorm.DB
}

func NewStatsHandler(db *gorm.DB) *StatsHandler {
	return &StatsHandler{DB: db}
}

// Overview returns the dashboard counters.
func (h *StatsHandler) Overview(c *fiber.Ctx) error {
	var (
		totalOrders     int64
		completedOrders int64
		pendingOrders   int64
		totalUsers      int64
		totalSales      float64
	)

	if err := h.DB.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return h.fail(c, err)
	}
	if err := h.DB.Model(&models.Order{}).Where("completed = ?", true).Count(&completedOrders).Error; err != nil {
		return h.fail(c, err)
	}
	if err := h.DB.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusPending).
		Count(&pendingOrders).Error; err != nil {
		return h.fail(c, err)
	}
	if err := h.DB.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return h.fail(c, err)
	}
	if err := h.DB.Model(&models.Order{}).
		Where("completed = ?", true).
		Select("COALESCE(SUM(total), 0)").
		Scan(&totalSales).Error; err != nil {
		return h.fail(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"totalOrders":     totalOrders,
		"completedOrders": completedOrders,
		"pendingOrders":   pendingOrders,
		"totalUsers":      totalUsers,
		"totalSales":      totalSales,
	})
}

func (h *StatsHandler) fail(c *fiber.Ctx, err error) error {
	logger.Error("stats_query_failed", err, nil)
	return utils.Error(c, fiber.StatusInternalServerError, "failed to compute stats")
}
