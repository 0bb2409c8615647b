package handler

import (
	"go-bookstore-pos/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type RoleHandler struct {
	users  service.UserService
	logger *zap.Logger
}

func NewRoleHandler(users service.UserService, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{users: users, logger: logger}
}

// GetRoles returns all available roles
// GET /api/roles
func (h *RoleHandler) GetRoles(c *fiber.Ctx) error {
	roles, err := h.users.Roles(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(roles)
}

// GetPrivileges returns the privilege catalogue
// GET /api/privileges
func (h *RoleHandler) GetPrivileges(c *fiber.Ctx) error {
	privileges, err := h.users.Privileges(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(privileges)
}
