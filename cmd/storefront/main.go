// Package main implements the storefront API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/pixelmart/storefront/internal/app"
	"github.com/pixelmart/storefront/internal/app/httpapi"
	"github.com/pixelmart/storefront/internal/app/storage/memory"
	"github.com/pixelmart/storefront/internal/app/storage/postgres"
	"github.com/pixelmart/storefront/internal/auth"
	"github.com/pixelmart/storefront/internal/cache"
	"github.com/pixelmart/storefront/internal/config"
	"github.com/pixelmart/storefront/internal/middleware"
	"github.com/pixelmart/storefront/pkg/logger"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to optional YAML config file")
	flag.Parse()

	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("main").WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	log := logger.New("storefront", cfg.LogLevel)

	secret := cfg.JWTSecret
	if secret == "" {
		// config.Load already rejects this in production mode.
		secret = "storefront-dev-secret"
		log.Warn("STOREFRONT_JWT_SECRET not set; using development secret")
	}

	issuer, err := auth.NewTokenIssuer(secret, cfg.JWTTTL)
	if err != nil {
		log.WithError(err).Error("failed to configure token issuer")
		os.Exit(1)
	}

	stores := app.Stores{}
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Error("failed to open database")
			os.Exit(1)
		}
		defer db.Close()

		pg := postgres.New(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pg.EnsureSchema(ctx); err != nil {
			cancel()
			log.WithError(err).Error("failed to ensure database schema")
			os.Exit(1)
		}
		cancel()

		stores.Accounts = pg
		stores.Products = pg
		log.Info("using postgres store")
	} else {
		mem := memory.New()
		stores.Accounts = mem
		stores.Products = mem
		log.Warn("STOREFRONT_DATABASE_URL not set; using in-memory store")
	}

	application := app.New(stores, issuer, app.Options{
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutWindow:    cfg.LockoutWindow,
	}, log)

	responseCache := cache.New(cfg.CacheTTL, cfg.CacheMaxEntries)

	generalLimiter := middleware.NewRateLimiter("general", cfg.RateLimit, cfg.RateWindow, log)
	authLimiter := middleware.NewRateLimiter("auth", cfg.AuthRateLimit, cfg.AuthRateWindow, log)
	stopGeneral := generalLimiter.StartCleanup(cfg.RateWindow)
	defer stopGeneral()
	stopAuth := authLimiter.StartCleanup(cfg.AuthRateWindow)
	defer stopAuth()

	router := httpapi.NewRouter(httpapi.RouterConfig{
		App:               application,
		Auth:              middleware.NewAuthenticator(issuer, stores.Accounts, log),
		Cache:             responseCache,
		GeneralLimiter:    generalLimiter,
		AuthLimiter:       authLimiter,
		CORS:              middleware.NewCORSMiddleware(cfg.Origins()),
		Log:               log,
		Production:        cfg.Production(),
		InvalidateOnWrite: cfg.CacheInvalidateOnWrite,
		Version:           version,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("storefront API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
