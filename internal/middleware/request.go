package middleware

import (
	"strconv"
	"time"

	"go-bookstore-pos/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-ID"

// RequestID reuses an incoming X-Request-ID or generates one
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set(HeaderRequestID, id)
		return c.Next()
	}
}

// RequestLogger writes one line per request
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := statusOf(c, err)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if id, ok := c.Locals("request_id").(string); ok {
			fields = append(fields, zap.String("request_id", id))
		}

		switch {
		case status >= 500:
			logger.Error("request", append(fields, zap.Error(err))...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return err
	}
}

// Metrics records count and latency per route template
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		path := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			path = r.Path
		}
		m.ObserveHTTP(c.Method(), path, strconv.Itoa(statusOf(c, err)), time.Since(start))
		return err
	}
}

func statusOf(c *fiber.Ctx, err error) int {
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return fe.Code
		}
		return fiber.StatusInternalServerError
	}
	return c.Response().StatusCode()
}
