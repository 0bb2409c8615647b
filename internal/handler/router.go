package handler

import (
	"go-bookstore-pos/internal/middleware"
	"go-bookstore-pos/internal/model"

	"github.com/gofiber/fiber/v2"
)

// Handlers bundles everything mounted under /api
type Handlers struct {
	Books     *BookHandler
	Bundles   *BundleHandler
	Inventory *InventoryHandler
	Reports   *ReportHandler
	Dashboard *DashboardHandler
	Auth      *AuthHandler
	Users     *UserHandler
	Roles     *RoleHandler
}

// Register mounts the API routes. requireAuth is the session check from
// middleware.RequireAuth.
func Register(app *fiber.App, h Handlers, requireAuth fiber.Handler) {
	api := app.Group("/api")
	can := middleware.RequirePrivilege

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)

	// ============ PROTECTED ROUTES ============
	auth.Get("/me", requireAuth, h.Auth.Me)
	auth.Put("/change-password", requireAuth, h.Auth.ChangePassword)
	auth.Post("/change-password", requireAuth, h.Auth.ChangePassword)
	auth.Post("/heartbeat", requireAuth, h.Auth.Heartbeat)

	protected := api.Group("", requireAuth)

	// Books & stock
	books := protected.Group("/books")
	books.Get("/", can(model.PrivBookView), h.Books.List)
	books.Get("/categories", can(model.PrivBookView), h.Books.Categories)
	books.Get("/:id", can(model.PrivBookView), h.Books.Get)
	books.Post("/", can(model.PrivBookCreate), h.Books.Create)
	books.Put("/:id", can(model.PrivBookUpdate), h.Books.Update)
	books.Delete("/:id", can(model.PrivBookDelete), h.Books.Delete)
	books.Get("/:id/stock-history", can(model.PrivBookView), h.Books.StockHistory)
	books.Put("/:id/stock-in", can(model.PrivStockAdjust), h.Books.StockIn)
	books.Put("/:id/stock-out", can(model.PrivStockAdjust), h.Books.StockOut)

	// Bundles
	bundles := protected.Group("/bundles")
	bundles.Get("/", can(model.PrivBundleView), h.Bundles.List)
	bundles.Get("/:id", can(model.PrivBundleView), h.Bundles.Get)
	bundles.Post("/", can(model.PrivBundleManage), h.Bundles.Create)
	bundles.Put("/:id", can(model.PrivBundleManage), h.Bundles.Update)
	bundles.Delete("/:id", can(model.PrivBundleManage), h.Bundles.Delete)
	bundles.Post("/:id/sell", can(model.PrivBundleSell), h.Bundles.Sell)

	// Transactions (import routes before /:id)
	tx := protected.Group("/transactions")
	tx.Post("/import/preview", can(model.PrivImportRun), h.Inventory.PreviewImport)
	tx.Post("/import/confirm", can(model.PrivImportRun), h.Inventory.ConfirmImport)
	tx.Get("/", can(model.PrivTransactionView), h.Inventory.GetTransactions)
	tx.Get("/:id", can(model.PrivTransactionView), h.Inventory.GetTransaction)
	tx.Post("/", can(model.PrivTransactionCreate), h.Inventory.CreateTransaction)

	// Reports
	reports := protected.Group("/reports", can(model.PrivReportView))
	reports.Get("/performance", h.Reports.Performance)
	reports.Get("/categories-by-revenue", h.Reports.CategoriesByRevenue)
	reports.Get("/sales-trend", h.Reports.SalesTrend)
	reports.Get("/monthly-revenue", h.Reports.MonthlyRevenue)
	reports.Get("/top-decline-books", h.Reports.TopDeclineBooks)
	reports.Get("/purchase-frequency", h.Reports.PurchaseFrequency)
	reports.Get("/tx-metrics", h.Reports.TxMetrics)
	reports.Get("/summary", h.Reports.Summary)
	reports.Get("/apriori-insights", h.Reports.AprioriInsights)

	// Dashboard
	dashboard := protected.Group("/dashboard", can(model.PrivDashboardView))
	dashboard.Get("/metrics", h.Dashboard.GetMetrics)
	dashboard.Get("/stock-movement", h.Dashboard.GetStockMovement)

	// User management, owner only. /auth/users is the older mount the
	// user-management page still calls.
	mountUsers(protected.Group("/users", middleware.RequireRole(model.RoleOwner)), h.Users)
	mountUsers(protected.Group("/auth/users", middleware.RequireRole(model.RoleOwner)), h.Users)

	protected.Get("/roles", h.Roles.GetRoles)
	protected.Get("/privileges", h.Roles.GetPrivileges)
}

func mountUsers(users fiber.Router, h *UserHandler) {
	can := middleware.RequirePrivilege
	users.Get("/", can(model.PrivUserView), h.GetUsers)
	users.Get("/:id", can(model.PrivUserView), h.GetUser)
	users.Post("/", can(model.PrivUserCreate), h.CreateUser)
	users.Put("/:id", can(model.PrivUserUpdate), h.UpdateUser)
	users.Put("/:id/reset-password", can(model.PrivUserUpdate), h.ResetPassword)
	users.Put("/:id/privileges", can(model.PrivUserPrivilege), h.UpdateUserPrivileges)
	users.Delete("/:id", can(model.PrivUserDelete), h.DeleteUser)
}
