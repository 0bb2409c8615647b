package handler

import (
	"go-bookstore-pos/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type BundleHandler struct {
	bundles service.BundleService
	logger  *zap.Logger
}

func NewBundleHandler(bundles service.BundleService, logger *zap.Logger) *BundleHandler {
	return &BundleHandler{bundles: bundles, logger: logger}
}

func (h *BundleHandler) List(c *fiber.Ctx) error {
	bundles, err := h.bundles.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(bundles)
}

func (h *BundleHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	bundle, err := h.bundles.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(bundle)
}

func (h *BundleHandler) Create(c *fiber.Ctx) error {
	var req service.BundleRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	bundle, err := h.bundles.Create(c.UserContext(), &req, actor(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Bundle berhasil dibuat", "data": bundle})
}

func (h *BundleHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req service.BundleRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	bundle, err := h.bundles.Update(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "Bundle berhasil diperbarui", "data": bundle})
}

func (h *BundleHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.bundles.Delete(c.UserContext(), id, actor(c)); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "Bundle berhasil dihapus"})
}

// POST /api/bundles/:id/sell
func (h *BundleHandler) Sell(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req service.SellBundleRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return respondError(c, h.logger, err)
		}
	}
	res, err := h.bundles.Sell(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"message":       "Bundle berhasil dijual",
		"bundle_id":     res.BundleID,
		"quantity_sold": res.QuantitySold,
		"stock":         res.Stock,
	})
}
