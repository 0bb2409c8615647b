package handler

import (
	"go-bookstore-pos/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

// CreateUser handles user creation
// POST /api/users
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req service.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	user, err := h.userService.Create(c.UserContext(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"data":    user,
	})
}

// UpdateUserPrivileges replaces the user's direct privileges
// PUT /api/users/:id/privileges
func (h *UserHandler) UpdateUserPrivileges(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req service.UpdatePrivilegesRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	user, err := h.userService.UpdatePrivileges(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Privileges updated successfully",
		"data":    user,
	})
}

// GetUsers returns all users
// GET /api/users
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.userService.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(users)
}

// GetUser returns a user by ID
// GET /api/users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	user, err := h.userService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(user)
}

// UpdateUser changes profile, role or active flag
// PUT /api/users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req service.UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	user, err := h.userService.Update(c.UserContext(), id, &req, actor(c).ID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"data":    user,
	})
}

// ResetPassword sets a new password without the old one
// PUT /api/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req service.ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	if err := h.userService.ResetPassword(c.UserContext(), id, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "Password reset successfully"})
}

// DeleteUser removes a user
// DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if err := h.userService.Delete(c.UserContext(), id, actor(c).ID); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}
