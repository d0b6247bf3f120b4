package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/maxturbaman/GREENDELIVERY/internal/bot"
	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/database"
	"github.com/maxturbaman/GREENDELIVERY/internal/handlers"
	"github.com/maxturbaman/GREENDELIVERY/internal/middleware"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/internal/services"
	"github.com/maxturbaman/GREENDELIVERY/internal/storage"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
)

func main() {
	logger.Init()

	cfg := config.Load()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database initialization failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	var (
		botAPI   *tgbotapi.BotAPI
		notifier services.Notifier
	)
	if cfg.Telegram.BotToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Fatalf("telegram initialization failed: %v", err)
		}
		notifier = services.NewTelegramNotifier(botAPI)
	} else {
		logger.Warn("telegram_disabled", map[string]interface{}{
			"reason": "TELEGRAM_BOT_TOKEN not configured",
		})
	}

	sessionService := services.NewSessionService(db, cfg.Session)
	challengeService := services.NewChallengeService(db, cfg.Challenge)
	orderService := services.NewOrderService(db)

	authHandler := handlers.NewAuthHandler(db, sessionService, challengeService, notifier, cfg)
	productsHandler := handlers.NewProductsHandler(db, storageClient)
	ordersHandler := handlers.NewOrdersHandler(db, notifier)
	usersHandler := handlers.NewUsersHandler(db)
	statsHandler := handlers.NewStatsHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(sessionService, cfg.Session)

	app := fiber.New(fiber.Config{BodyLimit: 25 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(cors.New(cors.Config{AllowCredentials: true, AllowOriginsFunc: func(string) bool { return true }}))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Use(middleware.SameOrigin)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	api.Post("/login", authHandler.Login)
	api.Post("/verify-2fa", authHandler.Verify)
	api.Post("/logout", authHandler.Logout)
	api.Get("/session", authMiddleware.RequireAuth, authHandler.Session)

	staff := []models.RoleName{models.RoleAdmin, models.RoleCourier}

	productRoutes := api.Group("/products", authMiddleware.RequireAuth, middleware.RequireRoles(staff...))
	productRoutes.Get("/", productsHandler.List)
	productRoutes.Post("/", productsHandler.Create)
	productRoutes.Put("/:id", productsHandler.Update)
	productRoutes.Patch("/:id/status", productsHandler.UpdateStatus)
	productRoutes.Delete("/:id", productsHandler.Delete)
	productRoutes.Post("/:id/images", productsHandler.UploadImages)

	orderRoutes := api.Group("/orders", authMiddleware.RequireAuth, middleware.RequireRoles(staff...))
	orderRoutes.Get("/", ordersHandler.List)
	orderRoutes.Patch("/:id/status", ordersHandler.UpdateStatus)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.RequireRoles(models.RoleAdmin))
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Post("/", usersHandler.Create)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Patch("/:id/approve", usersHandler.Approve)
	userRoutes.Patch("/:id/role", usersHandler.SetRole)

	api.Get("/stats", authMiddleware.RequireAuth, middleware.RequireRoles(staff...), statsHandler.Overview)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if botAPI != nil {
		conversationStore := bot.NewMemoryStore()
		dispatcher := bot.NewBot(db, botAPI, conversationStore, orderService, cfg.Telegram.MaxQuantity)
		ingestor := bot.NewIngestor(dispatcher, db, botAPI, cfg.Telegram)
		if err := ingestor.LoadCursor(); err != nil {
			log.Fatalf("failed loading update cursor: %v", err)
		}

		switch cfg.Telegram.Mode {
		case config.TelegramModeWebhook:
			app.Post("/telegram/webhook", ingestor.WebhookHandler())
			logger.Info("telegram_webhook_enabled", map[string]interface{}{
				"path": "/telegram/webhook",
			})
		default:
			go ingestor.RunPolling(ctx)
			logger.Info("telegram_polling_enabled", map[string]interface{}{
				"interval": cfg.Telegram.PollInterval.String(),
			})
		}
	}

	go runCleanup(ctx, cfg.Session.CleanupInterval, sessionService, challengeService)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		cancel()
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

// runCleanup sweeps expired sessions and challenges on the configured
// interval.
func runCleanup(ctx context.Context, interval time.Duration, sessions *services.SessionService, challenges *services.ChallengeService) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.CleanupExpired(); err != nil {
				logger.Warn("session_cleanup_failed", map[string]interface{}{"error": err.Error()})
			}
			if err := challenges.CleanupExpired(); err != nil {
				logger.Warn("challenge_cleanup_failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
