package handler

import (
	"path/filepath"
	"strings"

	"go-bookstore-pos/internal/service"
	"go-bookstore-pos/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// InventoryHandler serves sales, the transaction list and marketplace imports
type InventoryHandler struct {
	inventory    service.InventoryService
	transactions service.TransactionService
	imports      service.ImportService
	logger       *zap.Logger
}

func NewInventoryHandler(inventory service.InventoryService, transactions service.TransactionService, imports service.ImportService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, transactions: transactions, imports: imports, logger: logger}
}

// POST /api/transactions
func (h *InventoryHandler) CreateTransaction(c *fiber.Ctx) error {
	var req service.SaleRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	res, err := h.inventory.RecordSale(c.UserContext(), &req, actor(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":        "Transaksi berhasil dicatat",
		"transaction_id": res.TransactionID,
		"total_amount":   res.TotalAmount,
	})
}

// GET /api/transactions?q=&category=&startDate=&endDate=&type=
func (h *InventoryHandler) GetTransactions(c *fiber.Ctx) error {
	rows, err := h.transactions.List(c.UserContext(), service.TransactionQuery{
		Query:     c.Query("q"),
		Category:  c.Query("category"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Type:      c.Query("type"),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(rows)
}

func (h *InventoryHandler) GetTransaction(c *fiber.Ctx) error {
	detail, err := h.transactions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(detail)
}

// POST /api/transactions/import/preview, multipart field "file"
func (h *InventoryHandler) PreviewImport(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "File tidak ditemukan")
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx", ".xlsm":
	default:
		return badRequest(c, "Hanya file Excel (.xlsx) yang diperbolehkan")
	}

	file, err := header.Open()
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("Gagal membaca file"))
	}
	defer file.Close()

	result, err := h.imports.Preview(c.UserContext(), file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(result)
}

// POST /api/transactions/import/confirm
func (h *InventoryHandler) ConfirmImport(c *fiber.Ctx) error {
	var req service.ConfirmRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	result, err := h.imports.Confirm(c.UserContext(), &req, actor(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(result)
}
