package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/rajivgeraev/barter-api/internal/cache"
	"github.com/rajivgeraev/barter-api/internal/config"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/middleware"
	"github.com/rajivgeraev/barter-api/internal/services/ad"
	"github.com/rajivgeraev/barter-api/internal/services/auth"
	"github.com/rajivgeraev/barter-api/internal/services/exchange"
	"github.com/rajivgeraev/barter-api/internal/services/favorite"
	"github.com/rajivgeraev/barter-api/internal/services/media"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()
	log := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		log.Error("некорректная конфигурация", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("ошибка при инициализации хранилища", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	redisClient := cache.ConnectRedis(cfg.RedisConfig, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	images, err := media.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error("ошибка при инициализации хранилища изображений", "error", err)
		os.Exit(1)
	}

	app := newApp(cfg, dependencies{
		store:   store,
		revoker: cache.NewRevoker(redisClient),
		images:  images,
		logger:  log,
	})

	go func() {
		<-ctx.Done()
		log.Info("остановка сервера")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("ошибка при остановке сервера", "error", err)
		}
	}()

	log.Info("Barter API запущен", "port", cfg.Port, "storage", cfg.Storage, "media", cfg.MediaBackend)
	if err := app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		log.Error("ошибка сервера", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// openStore открывает PostgreSQL с миграциями или хранилище в памяти
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (db.Store, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("данные хранятся в памяти и будут потеряны при перезапуске")
		return db.NewMemoryStore(), nil
	}

	if err := db.Migrate(ctx, cfg.DatabaseURL, log); err != nil {
		return nil, err
	}
	pool, err := db.InitDB(cfg, log)
	if err != nil {
		return nil, err
	}
	return db.NewPostgresStore(pool, log), nil
}

type dependencies struct {
	store   db.Store
	revoker cache.Revoker
	images  media.Store
	logger  *slog.Logger
}

// newApp собирает сервисы и маршруты
func newApp(cfg *config.Config, deps dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Barter API",
		ErrorHandler: middleware.NewErrorHandler(deps.logger),
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		ctx, cancel := db.GetContext()
		defer cancel()
		if err := deps.store.Ping(ctx); err != nil {
			deps.logger.Warn("хранилище недоступно", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	api := app.Group("/api", middleware.Identity(jwtService, deps.revoker, deps.logger))

	// Создаём сервисы
	accounts := auth.NewAccounts(deps.store, jwtService, deps.revoker, cfg.TelegramBotToken, deps.logger)
	var limiter *middleware.RateLimiter
	if cfg.AuthRateLimit.PerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.AuthRateLimit.PerSecond, cfg.AuthRateLimit.Burst)
	}

	// images может быть nil в тестах
	var remover ad.ImageRemover
	if deps.images != nil {
		remover = deps.images
		media.NewMediaService(deps.images, deps.logger).SetupRoutes(api)
	}

	catalog := ad.NewCatalog(deps.store, remover, cfg.PageSize, deps.logger)
	workflow := exchange.NewWorkflow(deps.store, cfg.PageSize, deps.logger)
	favorites := favorite.NewFavorites(deps.store, cfg.PageSize, deps.logger)

	// Регистрируем маршруты
	auth.NewAuthService(accounts, limiter, deps.logger).SetupRoutes(api)
	ad.NewAdService(catalog, deps.logger).SetupRoutes(api)
	exchange.NewExchangeService(workflow, deps.logger).SetupRoutes(api)
	favorite.NewFavoriteService(favorites, deps.logger).SetupRoutes(api)

	return app
}
