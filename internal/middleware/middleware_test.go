package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"go-bookstore-pos/internal/metrics"
	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubUsers map[uint]*model.User

func (s stubUsers) FindByID(id uint) (*model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func newAuthApp(tokens *jwt.Manager, users stubUsers) *fiber.App {
	app := fiber.New()
	app.Get("/books", RequireAuth(tokens, users), RequirePrivilege(model.PrivBookView), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_name").(string))
	})
	app.Get("/users", RequireAuth(tokens, users), RequireRole(model.RoleOwner), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireAuth(t *testing.T) {
	tokens := jwt.NewManager("secret", time.Hour)
	admin := &model.User{
		UserID:       2,
		Username:     "admin",
		IsActive:     true,
		TokenVersion: "v2",
		Role:         &model.Role{Code: model.RoleAdmin},
		Privileges:   []model.Privilege{{Code: model.PrivBookView}},
	}
	app := newAuthApp(tokens, stubUsers{2: admin})

	token, err := tokens.GenerateToken(2, "admin", "Admin", model.RoleAdmin, nil, "v2")
	require.NoError(t, err)
	stale, err := tokens.GenerateToken(2, "admin", "Admin", model.RoleAdmin, nil, "v1")
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing", "/books", "", fiber.StatusUnauthorized},
		{"bad format", "/books", "Token " + token, fiber.StatusUnauthorized},
		{"garbage", "/books", "Bearer abc", fiber.StatusUnauthorized},
		{"other session", "/books", "Bearer " + stale, fiber.StatusUnauthorized},
		{"ok", "/books", "Bearer " + token, fiber.StatusOK},
		{"not owner", "/users", "Bearer " + token, fiber.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRequirePrivilege_Missing(t *testing.T) {
	tokens := jwt.NewManager("secret", time.Hour)
	u := &model.User{UserID: 3, Username: "kasir", IsActive: true, TokenVersion: "v"}
	app := newAuthApp(tokens, stubUsers{3: u})

	token, err := tokens.GenerateToken(3, "kasir", "", "", nil, "v")
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/books", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequestIDAndMetrics(t *testing.T) {
	m := metrics.New("mw")
	app := fiber.New()
	app.Use(RequestID(), RequestLogger(zap.NewNop()), Metrics(m))
	app.Get("/books/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest("GET", "/books/7", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	req := httptest.NewRequest("GET", "/books/8", nil)
	req.Header.Set(HeaderRequestID, "abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get(HeaderRequestID))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/books/:id", "204")))
}
