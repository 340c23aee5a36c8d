package main

// @title WhatsApp Session Registry
// @version 1.0.0
// @description Identifier normalization engine and session registry for WhatsApp conversational endpoints

// @host localhost:7001
// @BasePath /

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/env"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/router"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/session"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/wacap"

	"github.com/gdbrns/go-whatsapp-session-registry/internal"
	"github.com/gdbrns/go-whatsapp-session-registry/internal/realtime"
)

type Server struct {
	Address string
	Port    string
}

func main() {
	// RUNTIME_MODE: "development" enables verbose diagnostics
	runtimeMode := env.GetEnvStringOrDefault("RUNTIME_MODE", "production")
	verbose := strings.EqualFold(runtimeMode, "development")
	log.SetVerbose(verbose)

	// Environment is read only here; the core packages receive explicit
	// configuration arguments.
	wacapConfig := wacap.Config{
		DataDir:     env.GetEnvStringOrDefault("WACAP_DATA_DIR", "./data"),
		SessionPath: env.GetEnvStringOrDefault("WACAP_SESSION_PATH", ""),
		Verbose:     verbose,
	}

	registry := session.New()

	backend, err := wacap.New(context.Background(), wacapConfig, registry)
	if err != nil {
		log.Print(nil).WithError(err).Fatal("Failed to initialize messaging collaborator")
	}

	engine := realtime.NewEngine(realtime.Config{
		Workers:    env.GetEnvIntOrDefault("REALTIME_WORKERS", 4),
		RetryLimit: env.GetEnvIntOrDefault("REALTIME_RETRY_LIMIT", 3),
		Enabled:    env.GetEnvBoolOrDefault("REALTIME_ENABLED", true),
	})
	registry.SetPublisher(engine)

	// Initialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler: router.HttpErrorHandler,
		BodyLimit:    router.BodyLimitBytes(),
	})

	// Request ID + panic recovery (structured JSON)
	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())

	// Router Compression
	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
	}))

	// Router CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",
	}))

	// Router Security
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	// Router Cache
	app.Use(router.HttpCacheInMemory(router.CacheTTLSeconds))

	// Router RealIP + request context enrichment
	app.Use(router.HttpRealIP())

	// Router Default Handler
	app.Get("/favicon.ico", router.ResponseNoContent)

	// Load Internal Routes
	internal.Routes(app, registry, backend, engine)

	// Running Startup Tasks
	internal.Startup(context.Background(), registry, backend)

	// Running Routines Tasks
	internal.Routines(c, backend)

	// Get Server Configuration with defaults
	var serverConfig Server
	serverConfig.Address = env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0")
	serverConfig.Port = env.GetEnvStringOrDefault("SERVER_PORT", "7001")

	// Start Server
	go func() {
		if err := app.Listen(serverConfig.Address + ":" + serverConfig.Port); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sigShutdown

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	// Try To Shutdown Server
	if err := app.ShutdownWithContext(ctxShutdown); err != nil {
		log.Print(nil).Error(err.Error())
	}

	// Release the collaborator before exiting; Teardown must complete before
	// a new handle could be installed.
	if err := registry.Teardown(ctxShutdown); err != nil {
		log.Print(nil).WithError(err).Error("Collaborator teardown failed")
	}

	// Stop background workers
	c.Stop()
	engine.Shutdown()
}
