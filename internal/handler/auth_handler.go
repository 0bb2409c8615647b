package handler

import (
	"go-bookstore-pos/internal/service"
	"go-bookstore-pos/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// Login handles user authentication
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	response, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(response)
}

// Me returns the current user with role and privileges
// GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return respondError(c, h.logger, apperror.Unauthorized("Unauthorized"))
	}

	me, err := h.authService.Me(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(me)
}

// ChangePassword handles a password change by the logged in user
// PUT /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return respondError(c, h.logger, apperror.Unauthorized("Unauthorized"))
	}

	var req service.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	if err := h.authService.ChangePassword(c.UserContext(), userID, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"message": "Password berhasil diubah"})
}

func (h *AuthHandler) Heartbeat(c *fiber.Ctx) error {
	if _, ok := c.Locals("user_id").(uint); !ok {
		return respondError(c, h.logger, apperror.Unauthorized("Unauthorized"))
	}

	if err := h.authService.Heartbeat(c.UserContext(), actor(c)); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"message": "Heartbeat received", "status": "online"})
}
