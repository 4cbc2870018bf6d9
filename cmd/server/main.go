package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/murilobento/imobiliaria-sub005/internal/config"
	"github.com/murilobento/imobiliaria-sub005/internal/database"
	"github.com/murilobento/imobiliaria-sub005/internal/imob"
	"github.com/murilobento/imobiliaria-sub005/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Connect to database
	slog.Info("Connecting to database")
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	slog.Info("Connected to database")

	// Run migrations
	slog.Info("Running migrations")
	err = database.RunMigrations(ctx, pool, database.AppMigrations())
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Migrations complete")

	// Initialize services
	auditService := imob.NewAuditService(pool)
	authService := imob.NewAuthService(pool, cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry, auditService)
	imovelService := imob.NewImovelService(pool)
	cidadeService := imob.NewCidadeService(pool)
	clienteService := imob.NewClienteService(pool)
	notifService := imob.NewNotificacaoService(pool)
	adminService := imob.NewAdminService(pool)

	// Storage encryption key: prefer dedicated env var, fall back to JWT secret
	storageSecret := cfg.StorageSecret
	if storageSecret == "" {
		storageSecret = cfg.JWTSecret
	}
	storageService := imob.NewStorageService(pool, storageSecret)

	// Ensure admin user exists if ADMIN_EMAIL is set
	if cfg.AdminEmail != "" {
		slog.Info("Ensuring admin user exists", "email", cfg.AdminEmail)
		if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("Failed to create admin user: %v", err)
		}
		slog.Info("Admin user ready", "email", cfg.AdminEmail)
	}

	// Start maintenance scheduler (notification delivery, purges)
	scheduler := imob.NewScheduler(notifService, authService, auditService, cfg.SchedulerIntervalSeconds, cfg.NotificationRetentionDays, cfg.AuditRetentionDays)
	scheduler.Start()

	// Create server
	srv := server.New(cfg, authService, imovelService, cidadeService, clienteService, notifService, auditService, adminService, storageService, pool)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("Shutting down")
		scheduler.Stop()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		httpServer.Shutdown(shutCtx)
		pool.Close()
	}()

	slog.Info("Server started", "host", cfg.Host, "port", cfg.Port)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
