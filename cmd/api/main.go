package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-bookstore-pos/internal/cache"
	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/internal/handler"
	"go-bookstore-pos/internal/metrics"
	"go-bookstore-pos/internal/middleware"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/internal/service"
	"go-bookstore-pos/internal/ws"
	"go-bookstore-pos/pkg/config"
	"go-bookstore-pos/pkg/database"
	"go-bookstore-pos/pkg/jwt"
	"go-bookstore-pos/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Env
	cfg, err := config.Load("bookstore-pos")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLog, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLog.Sync()
	zapLog.Info("Starting service", cfg.LogFields()...)

	// prices go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// 2. Setup Database
	db, err := database.Open(&cfg.DB, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to connect database", zap.Error(err))
	}
	defer database.Close(db)

	ledgerEnabled, err := repository.Migrate(db, cfg.Ledger.Enabled)
	if err != nil {
		zapLog.Fatal("Migration failed", zap.Error(err))
	}
	stores := repository.NewStores(db, ledgerEnabled)

	// 3. Seed default privileges, roles, and users
	userService := service.NewUserService(stores, zapLog)
	if err := userService.Seed(context.Background()); err != nil {
		zapLog.Fatal("Seeding failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Setup WebSocket Hub and the other event sinks
	wsHub := ws.NewHub(zapLog)
	go wsHub.Run(ctx)

	publishers := events.Multi{wsHub}
	if cfg.Kafka.Enabled {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka, zapLog)
		if err != nil {
			zapLog.Warn("Kafka disabled", zap.Error(err))
		} else {
			defer kafka.Close()
			publishers = append(publishers, kafka)
		}
	}

	reportCache := cache.New(cfg.Redis, zapLog)
	if closer, ok := reportCache.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	appMetrics := metrics.New(cfg.Metrics.Prefix)
	notifier := service.NewNotifier(publishers, reportCache, appMetrics, zapLog)
	tokens := jwt.NewManager(cfg.JWT.SigningKey, time.Duration(cfg.JWT.ExpirationHours)*time.Hour)
	loc := cfg.Location()

	// 5. Dependency Injection (Wiring Layers)
	inventoryService := service.NewInventoryService(db, stores, notifier, loc, zapLog)
	bookService := service.NewBookService(db, stores, notifier, zapLog)
	bundleService := service.NewBundleService(db, stores, notifier, zapLog)
	transactionService := service.NewTransactionService(stores, loc)
	importService := service.NewImportService(db, stores, notifier, loc, zapLog)
	reportService := service.NewReportService(stores, reportCache, appMetrics, cfg.Report.CacheTTL, loc, zapLog)
	dashService := service.NewDashboardService(stores, loc)
	authService := service.NewAuthService(stores.Users, tokens, notifier, zapLog)

	handlers := handler.Handlers{
		Books:     handler.NewBookHandler(bookService, inventoryService, zapLog),
		Bundles:   handler.NewBundleHandler(bundleService, zapLog),
		Inventory: handler.NewInventoryHandler(inventoryService, transactionService, importService, zapLog),
		Reports:   handler.NewReportHandler(reportService, zapLog),
		Dashboard: handler.NewDashboardHandler(dashService, zapLog),
		Auth:      handler.NewAuthHandler(authService, zapLog),
		Users:     handler.NewUserHandler(userService, zapLog),
		Roles:     handler.NewRoleHandler(userService, zapLog),
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:   "Bookstore POS v1.0",
		BodyLimit: cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.Server.AllowOrigins}))
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(zapLog))
	app.Use(middleware.Metrics(appMetrics))

	// 7. Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := database.Ping(db); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok", "ledger": ledgerEnabled, "ws_clients": wsHub.Clients()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(appMetrics.Handler()))

	handler.Register(app, handlers, middleware.RequireAuth(tokens, stores.Users))

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(wsHub.Serve))

	// 8. Graceful Shutdown
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		if err := app.Listen(addr); err != nil {
			zapLog.Panic("Server stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down server...")
	// stopping the hub closes open sockets so their handlers return before fiber waits on them
	cancel()
	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownGrace); err != nil {
		zapLog.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLog.Info("Server exited")
}
