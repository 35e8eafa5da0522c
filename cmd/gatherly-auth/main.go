package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gatherly/gatherly-auth/internal/config"
	httpserver "github.com/gatherly/gatherly-auth/internal/http"
	"github.com/gatherly/gatherly-auth/internal/notification"
	"github.com/gatherly/gatherly-auth/pkg/auth"
	"github.com/gatherly/gatherly-auth/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Apply schema migrations
	if err := repository.ApplyMigrations(db); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	tenantsRepo := repository.NewTenantsRepository(db)
	membershipsRepo := repository.NewMembershipsRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)
	challengesRepo := repository.NewChallengesRepository(db)

	// Periodically sweep expired challenges and sessions
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if err := challengesRepo.DeleteExpired(cleanupCtx); err != nil {
					logger.Error("failed to delete expired challenges", "error", err)
				}
				if err := sessionsRepo.DeleteExpired(cleanupCtx); err != nil {
					logger.Error("failed to delete expired sessions", "error", err)
				}
			}
		}
	}()

	// Initialize email service if configured
	var notifier auth.Notifier
	if cfg.HasSMTP() {
		notifier = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		logger.Info("email delivery enabled")
	} else {
		logger.Warn("SMTP not configured; magic links will be minted but not delivered")
	}

	// Initialize services
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		JWTSecret:       []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
	}, sessionsRepo, usersRepo, membershipsRepo)

	provisioningService := auth.NewProvisioningService(tenantsRepo, membershipsRepo, logger)

	challengeIssuer := auth.NewChallengeIssuer(cfg.FrontendBaseURL, notifier, logger)

	magicLinkService := auth.NewMagicLinkService(
		auth.MagicLinkConfig{ChallengeTTL: cfg.MagicLinkTTL},
		usersRepo,
		challengesRepo,
		challengeIssuer,
		sessionService,
		provisioningService,
		logger,
	)

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:           logger,
		MagicLinkService: magicLinkService,
		SessionService:   sessionService,
		UsersRepo:        usersRepo,
		MembershipsRepo:  membershipsRepo,
		RateLimitConfig:  cfg.RateLimit,
		SecurityHeaders:  cfg.SecurityHeaders,
		MaxBodySize:      cfg.MaxRequestBodySize,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
