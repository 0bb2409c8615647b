package handler

import (
	"strconv"

	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// errorBody is what every failed request answers with
type errorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondError maps service errors to status codes. Integrity failures keep
// their cause out of the response.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Integrity("Internal Server Error", err)
	}
	status := appErr.HTTPStatus()
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(status).JSON(errorBody{Error: appErr.Message, Code: appErr.Code, Details: appErr.Details})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: message})
}

// parseBody decodes the JSON body into dst
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperror.Validation("Invalid JSON")
	}
	return nil
}

// paramID reads a positive numeric path parameter
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validationf("ID tidak valid: %s", c.Params(name))
	}
	return uint(id), nil
}

// actor reads the authenticated user set by RequireAuth
func actor(c *fiber.Ctx) events.Actor {
	id, _ := c.Locals("user_id").(uint)
	name, _ := c.Locals("user_full_name").(string)
	if name == "" {
		name, _ = c.Locals("user_name").(string)
	}
	return events.Actor{ID: id, Name: name}
}
