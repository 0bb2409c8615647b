package middleware

import (
	"strings"

	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// SessionStore is what RequireAuth needs from the user table
type SessionStore interface {
	FindByID(id uint) (*model.User, error)
}

// RequireAuth is middleware that validates JWT token and sets user info in context
func RequireAuth(tokens *jwt.Manager, users SessionStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization token"})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>"})
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		// Check strict session against DB
		user, err := users.FindByID(claims.UserID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
		}
		if !user.IsActive {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User account is inactive"})
		}
		if user.TokenVersion != claims.TokenVersion {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Session expired (logged in on another device)"})
		}

		// privileges come from the DB so revocations apply without a new login
		c.Locals("user_id", user.UserID)
		c.Locals("user_name", user.Username)
		c.Locals("user_full_name", user.FullName)
		c.Locals("user_role", user.RoleCode())
		c.Locals("user_privileges", user.GetPrivilegeCodes())

		return c.Next()
	}
}

// RequirePrivilege checks if the authenticated user has the required privilege
func RequirePrivilege(requiredPrivilege string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		privileges, ok := c.Locals("user_privileges").([]string)
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No privileges found"})
		}

		for _, p := range privileges {
			if p == requiredPrivilege {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden: requires '" + requiredPrivilege + "' privilege",
		})
	}
}

// RequireRole restricts a group to one role, e.g. OWNER for user management
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if r, _ := c.Locals("user_role").(string); r == role {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden: requires role " + role,
		})
	}
}
