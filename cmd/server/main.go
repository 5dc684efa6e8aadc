package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"device-tracker/internal/auth"
	"device-tracker/internal/cache"
	"device-tracker/internal/config"
	"device-tracker/internal/database"
	"device-tracker/internal/db"
	"device-tracker/internal/handlers"
	"device-tracker/internal/health"
	h "device-tracker/internal/http"
	"device-tracker/internal/middleware"
	"device-tracker/internal/monitoring"
	"device-tracker/internal/ports"
	"device-tracker/internal/repositories"
	"device-tracker/internal/services"
	"device-tracker/internal/storage"
	"device-tracker/internal/timeutil"
	"device-tracker/migrations"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	migrateOnly := flag.Bool("migrate", false, "Run migrations and exit")
	flag.Parse()

	cfg := config.Load()
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := timeutil.SetLocation(cfg.Tracker.Timezone); err != nil {
		log.Fatalf("Invalid tracker.timezone %q: %v", cfg.Tracker.Timezone, err)
	}

	pool := db.Connect(cfg)
	defer pool.Close()

	// Run database migrations
	log.Println("Running database migrations...")
	migrator := database.NewMigratorWithFS(pool, migrations.FS, ".")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrator.RunMigrations(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to run migrations: %v", err)
	}
	cancel()
	if *migrateOnly {
		return
	}

	// Initialize Redis cache (optional - graceful fallback if unavailable)
	if err := cache.Init(cfg); err != nil {
		log.Printf("[Redis] Cache unavailable: %v (reads go to the database)", err)
	} else {
		log.Println("[Redis] Cache connected successfully")
	}

	jwtManager := auth.NewJWTManager(cfg)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(pool)
	whitelistRepo := repositories.NewWhitelistRepository(pool)
	batchRepo := repositories.NewBatchRepository(pool)
	cartonRepo := repositories.NewCartonRepository(pool)
	mappingRepo := repositories.NewMappingRepository(pool)
	lifecycleRepo := repositories.NewLifecycleRepository(pool)
	packlistRepo := repositories.NewPacklistRepository(pool)
	allocationRepo := repositories.NewAllocationRepository(pool)

	// Live stage feed
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier ports.StageNotifier
	var stageFeed *monitoring.StageFeed
	if cfg.Tracker.StageFeed {
		stageFeed = monitoring.NewStageFeed()
		go stageFeed.Run(appCtx)
		notifier = stageFeed
	}

	// Manifest archive (optional)
	var archive ports.ObjectStore
	if cfg.StorageEnabled() {
		store, err := storage.NewR2Store(appCtx, cfg)
		if err != nil {
			log.Printf("[Storage] Archive disabled: %v", err)
		} else {
			archive = store
		}
	}

	// Initialize services
	resolver := services.NewResolver(whitelistRepo, mappingRepo)
	userService := services.NewUserService(userRepo, jwtManager)
	allocatorService := services.NewAllocatorService(allocationRepo)
	whitelistService := services.NewWhitelistService(allocationRepo, whitelistRepo)
	batchService := services.NewBatchService(batchRepo, cartonRepo)
	mappingService := services.NewMappingService(resolver, mappingRepo)
	lifecycleService := services.NewLifecycleService(resolver, lifecycleRepo, notifier)
	packlistService := services.NewPacklistService(resolver, batchRepo, cartonRepo, packlistRepo)
	reportService := services.NewReportService(packlistService, archive)

	// Initialize handlers
	ttl := cfg.CacheTTL()
	authHandler := handlers.NewAuthHandler(userService)
	whitelistHandler := handlers.NewWhitelistHandler(whitelistService)
	batchHandler := handlers.NewBatchHandler(allocatorService, batchService, ttl)
	cartonHandler := handlers.NewCartonHandler(allocatorService, batchService, packlistService, ttl)
	mappingHandler := handlers.NewMappingHandler(mappingService, ttl)
	lifecycleHandler := handlers.NewLifecycleHandler(lifecycleService, ttl)
	packlistHandler := handlers.NewPacklistHandler(packlistService, reportService, ttl)

	statsCollector := monitoring.NewStatsCollector(pool, stageFeed)
	healthChecker := health.NewHealthChecker(pool, cache.IsHealthy)
	healthHandler := handlers.NewHealthHandler(healthChecker, statsCollector)

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, userRepo)

	var feedHandler http.Handler
	if stageFeed != nil {
		feedHandler = stageFeed
	}
	router := h.NewRouter(
		authHandler,
		whitelistHandler,
		batchHandler,
		cartonHandler,
		mappingHandler,
		lifecycleHandler,
		packlistHandler,
		healthHandler,
		statsCollector,
		feedHandler,
		authMiddleware,
	)

	corsMiddleware := middleware.NewCORS(cfg)
	slow := time.Duration(cfg.Server.SlowRequestMillis) * time.Millisecond
	handler := middleware.PanicRecovery(
		middleware.RequestID(
			middleware.RequestLogger(slow)(
				middleware.RequestTimeout(cfg.RequestTimeout())(
					corsMiddleware(router)))))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server running on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-appCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
