package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"cascade-studio/internal/admin"
	"cascade-studio/internal/api"
	"cascade-studio/internal/auth"
	"cascade-studio/internal/config"
	"cascade-studio/internal/remote"
	"cascade-studio/internal/session"
	"cascade-studio/internal/store"
	"cascade-studio/internal/trace"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s, remote: %s)", cfg.Server.Port, cfg.Database.Driver, cfg.Remote.BaseURL)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("Database connected (%s)", db.Dialect.Name())

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Remote platform clients
	client := remote.NewClient(cfg.Remote)
	catalog := remote.NewHTTPCatalog(client)
	publisher := remote.NewHTTPPublisher(client)

	// 5. Trace buffer
	var tracer trace.Tracer = trace.NoopTracer{}
	traceBuffer := trace.NewBuffer(cfg.Trace.BufferSize)
	if cfg.Trace.Enabled {
		tracer = trace.NewBufferTracer(traceBuffer)
	}

	// 6. Session manager
	manager := session.NewManager(session.Deps{
		Catalog:         catalog,
		Publisher:       publisher,
		Store:           db,
		Tracer:          tracer,
		DefaultSolution: cfg.Session.DefaultSolution,
		SaveDebounce:    cfg.Session.SaveDebounce(),
		PackagePath:     cfg.Remote.PackagePath,
		PackageVersion:  cfg.Remote.PackageVersion,
	})

	// 7. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 8. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 9. Connect route (no auth required)
	authHandler := auth.NewHandler(db, cfg.JWTSecret)
	auth.RegisterAuthRoutes(app, authHandler)

	// 10. Auth middleware for all protected routes
	authMW := auth.Middleware(cfg.JWTSecret)

	// 11. Session API (auth required)
	apiHandler := api.NewHandler(manager)
	api.RegisterRoutes(app, apiHandler, authMW)

	// 12. Admin routes (auth required)
	adminHandler := admin.NewHandler(db, manager)
	admin.RegisterAdminRoutes(app, adminHandler, authMW)

	// 13. Trace routes (auth required)
	traceHandler := trace.NewHandler(traceBuffer)
	trace.RegisterTraceRoutes(app, traceHandler, authMW)

	// 14. Flush pending session saves on shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("Shutting down, flushing sessions")
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager.FlushAll(flushCtx)
		_ = app.Shutdown()
	}()

	// 15. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
