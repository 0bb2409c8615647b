package handler

import (
	"go-bookstore-pos/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ReportHandler struct {
	reports service.ReportService
	logger  *zap.Logger
}

func NewReportHandler(reports service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// reply renders either the report or its error
func (h *ReportHandler) reply(c *fiber.Ctx, data interface{}, err error) error {
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(data)
}

func (h *ReportHandler) Performance(c *fiber.Ctx) error {
	data, err := h.reports.Performance(c.UserContext())
	return h.reply(c, data, err)
}

func (h *ReportHandler) CategoriesByRevenue(c *fiber.Ctx) error {
	data, err := h.reports.CategoriesByRevenue(c.UserContext())
	return h.reply(c, data, err)
}

func (h *ReportHandler) SalesTrend(c *fiber.Ctx) error {
	data, err := h.reports.SalesTrend(c.UserContext())
	return h.reply(c, data, err)
}

// GET /api/reports/monthly-revenue?year=
func (h *ReportHandler) MonthlyRevenue(c *fiber.Ctx) error {
	data, err := h.reports.MonthlyRevenue(c.UserContext(), c.QueryInt("year"))
	return h.reply(c, data, err)
}

// GET /api/reports/top-decline-books?year=&month=
func (h *ReportHandler) TopDeclineBooks(c *fiber.Ctx) error {
	data, err := h.reports.TopDeclineBooks(c.UserContext(), c.QueryInt("year"), c.QueryInt("month"))
	return h.reply(c, data, err)
}

func (h *ReportHandler) PurchaseFrequency(c *fiber.Ctx) error {
	data, err := h.reports.PurchaseFrequency(c.UserContext())
	return h.reply(c, data, err)
}

func (h *ReportHandler) TxMetrics(c *fiber.Ctx) error {
	data, err := h.reports.TxMetrics(c.UserContext())
	return h.reply(c, data, err)
}

// GET /api/reports/summary?startDate=&endDate=
func (h *ReportHandler) Summary(c *fiber.Ctx) error {
	data, err := h.reports.Summary(c.UserContext(), c.Query("startDate"), c.Query("endDate"))
	return h.reply(c, data, err)
}

// GET /api/reports/apriori-insights?min_support=&min_confidence=
func (h *ReportHandler) AprioriInsights(c *fiber.Ctx) error {
	data, err := h.reports.AprioriInsights(c.UserContext(), c.QueryFloat("min_support"), c.QueryFloat("min_confidence"))
	return h.reply(c, data, err)
}
