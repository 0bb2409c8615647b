package handler

import (
	"fmt"

	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type BookHandler struct {
	books     service.BookService
	inventory service.InventoryService
	logger    *zap.Logger
}

func NewBookHandler(books service.BookService, inventory service.InventoryService, logger *zap.Logger) *BookHandler {
	return &BookHandler{books: books, inventory: inventory, logger: logger}
}

// GET /api/books?q=&category=
func (h *BookHandler) List(c *fiber.Ctx) error {
	books, err := h.books.List(c.UserContext(), repository.BookFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(books)
}

// GET /api/books/categories
func (h *BookHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.books.Categories(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(categories)
}

func (h *BookHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	book, err := h.books.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(book)
}

func (h *BookHandler) Create(c *fiber.Ctx) error {
	var req service.CreateBookRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	book, err := h.books.Create(c.UserContext(), &req, actor(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Buku berhasil ditambahkan", "data": book})
}

func (h *BookHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req service.UpdateBookRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	book, err := h.books.Update(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "Buku berhasil diperbarui", "data": book})
}

// DELETE /api/books/:id?force=true
func (h *BookHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.books.Delete(c.UserContext(), id, c.QueryBool("force"), actor(c)); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "Buku berhasil dihapus"})
}

func (h *BookHandler) StockHistory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	history, err := h.books.StockHistory(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(history)
}

// PUT /api/books/:id/stock-in
func (h *BookHandler) StockIn(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req service.StockInRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.inventory.StockIn(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"message":   fmt.Sprintf("Stok berhasil ditambah %d", req.Quantity),
		"book_id":   res.BookID,
		"stock_qty": res.StockQty,
	})
}

// PUT /api/books/:id/stock-out
func (h *BookHandler) StockOut(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req service.StockOutRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.inventory.StockOut(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	body := fiber.Map{
		"message":   fmt.Sprintf("Stok berhasil dikurangi %d", req.Quantity),
		"book_id":   res.BookID,
		"stock_qty": res.StockQty,
	}
	if res.TransactionID != nil {
		body["transaction_id"] = res.TransactionID
	}
	return c.JSON(body)
}
