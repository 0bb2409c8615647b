package handler

import (
	"go-bookstore-pos/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	service service.DashboardService
	logger  *zap.Logger
}

func NewDashboardHandler(s service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: s, logger: logger}
}

// GetStockMovement returns stock movement data for charts
// Query params: days (default 7)
func (h *DashboardHandler) GetStockMovement(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	data, err := h.service.StockMovement(c.UserContext(), days)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"period": len(data),
		"data":   data,
	})
}

// GetMetrics returns today's overview
func (h *DashboardHandler) GetMetrics(c *fiber.Ctx) error {
	stats, err := h.service.Metrics(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(stats)
}
