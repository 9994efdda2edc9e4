package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"vendocs/docs"
	"vendocs/internal/config"
	"vendocs/internal/database"
	"vendocs/internal/database/migration"
	"vendocs/internal/favorites"
	handlers "vendocs/internal/http/handler"
	"vendocs/internal/http/middleware"
	"vendocs/internal/otel"
	"vendocs/internal/repository/postgres"
	"vendocs/internal/resolver"
	"vendocs/internal/service"
	"vendocs/internal/session"
	"vendocs/internal/share"
	"vendocs/internal/storage"
)

// @title Vendocs API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Repositories and collaborators
	docRepo := postgres.NewDocumentPostgres(db)
	profileRepo := postgres.NewProfilePostgres(db)

	links := resolver.New(objStore, time.Duration(cfg.MinIO.SignExpirySec)*time.Second)
	shares := share.NewOrchestrator(
		cfg.Share.CacheDir,
		share.NewHTTPOpener(nil),
		share.NoSheet{},
		time.Duration(cfg.Share.DownloadTimeoutSec)*time.Second,
	)

	// Live subscriptions: poll watcher wrapped in the snapshot replay cache.
	watcher := session.NewPollWatcher(
		docRepo, profileRepo,
		time.Duration(cfg.Watch.PollIntervalSec)*time.Second,
		500,
		func(err error) { log.Printf(`{"level":"error","msg":"watch_error","error":%q}`, err.Error()) },
	)
	snapCache := session.NewSnapshotCache(watcher, session.NewRedisKV(rdb), 24*time.Hour)

	docSvc := service.NewDocumentService(docRepo, profileRepo, links, shares, objStore, snapCache)
	favStore := favorites.NewStore(rdb)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Global middleware: request id, JSON logging, traces, metrics.
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	promMw, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	app.Use(promMw.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(app, db, docSvc, favStore, watcher, snapCache)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
