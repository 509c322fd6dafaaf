package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/adilp/bhmhockey/config"
	"github.com/adilp/bhmhockey/db"
	"github.com/adilp/bhmhockey/handlers"
	"github.com/adilp/bhmhockey/live"
	"github.com/adilp/bhmhockey/repositories"
	"github.com/adilp/bhmhockey/routes"
	"github.com/adilp/bhmhockey/services"
	"github.com/adilp/bhmhockey/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	if !cfg.R2Configured() {
		logger.Error("Cloudflare R2 credentials are incomplete; logo uploads cannot work")
		os.Exit(1)
	}
	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	hub := live.NewHub(logger)
	go hub.Run()
	logger.Info("websocket hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	auditRepo := repositories.NewPostgresAuditRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)

	txRunner := repositories.NewSQLTxRunner(dbConn)
	locker := repositories.NewPGAdvisoryLocker()

	notificationService := services.NewNotificationService(notificationRepo, services.ExpoConfig{
		PushURL: cfg.ExpoPushURL,
	}, logger)
	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey, cfg.JWTTokenTTL, logger)
	standingsService := services.NewStandingsService(tournamentRepo, teamRepo, matchRepo, standingRepo)
	bracketService := services.NewBracketService(
		tournamentRepo, teamRepo, matchRepo, standingRepo, auditRepo,
		txRunner, locker, hub, logger,
	)
	matchService := services.NewMatchService(
		matchRepo, tournamentRepo, teamRepo, auditRepo, standingsService,
		txRunner, locker, hub, notificationService, logger,
	)
	waitlistService := services.NewWaitlistService(
		registrationRepo, eventRepo, tournamentRepo, auditRepo,
		txRunner, locker, notificationService, logger,
		services.WaitlistConfig{
			ExpiryEnabled: cfg.WaitlistExpiryEnabled,
			PaymentWindow: cfg.PaymentWindow,
		},
	)
	tournamentService := services.NewTournamentService(
		tournamentRepo, teamRepo, matchRepo, registrationRepo, auditRepo, standingsService,
		txRunner, locker, uploader, hub, notificationService, waitlistService, logger,
	)
	eventService := services.NewEventService(eventRepo, registrationRepo, waitlistService, notificationService, logger)
	logger.Info("services initialized")

	router := routes.InitRoutes(routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Tournament:   handlers.NewTournamentHandler(tournamentService, standingsService),
		Bracket:      handlers.NewBracketHandler(bracketService),
		Match:        handlers.NewMatchHandler(matchService),
		Event:        handlers.NewEventHandler(eventService),
		Registration: handlers.NewRegistrationHandler(waitlistService),
		Notification: handlers.NewNotificationHandler(notificationService),
		WebSocket:    handlers.NewWebSocketHandler(hub, logger),
	}, cfg.JWTSecretKey)
	logger.Info("routes configured")

	schedulerCtx, stopSchedulers := context.WithCancel(context.Background())
	defer stopSchedulers()
	group, groupCtx := errgroup.WithContext(schedulerCtx)

	if cfg.WaitlistExpiryEnabled {
		group.Go(func() error {
			runPeriodic(groupCtx, logger, "waitlist expiry sweep", cfg.WaitlistSweepInterval, func(ctx context.Context) error {
				expired, err := waitlistService.ExpireOverduePromotions(ctx)
				if err != nil {
					return err
				}
				if expired > 0 {
					logger.Info("expired overdue waitlist promotions", slog.Int("count", expired))
				}
				return nil
			})
			return nil
		})
	}
	group.Go(func() error {
		runPeriodic(groupCtx, logger, "event reminder dispatch", cfg.EventReminderInterval, func(ctx context.Context) error {
			sent, err := eventService.SendUpcomingReminders(ctx, cfg.EventReminderWindow)
			if err != nil {
				return err
			}
			if sent > 0 {
				logger.Info("sent event reminders", slog.Int("count", sent))
			}
			return nil
		})
		return nil
	})
	group.Go(func() error {
		runPeriodic(groupCtx, logger, "notification cleanup", cfg.NotificationCleanupInterval, func(ctx context.Context) error {
			deleted, err := notificationService.CleanupOld(ctx, cfg.NotificationRetention)
			if err != nil {
				return err
			}
			if deleted > 0 {
				logger.Info("deleted old notifications", slog.Int64("count", deleted))
			}
			return nil
		})
		return nil
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
	}

	stopSchedulers()
	if err := group.Wait(); err != nil {
		logger.Error("scheduler shutdown error", slog.Any("error", err))
	}
	logger.Info("application exited")
}

// runPeriodic runs fn once at startup and then on every tick until ctx is
// cancelled. Per-tick errors are logged, never fatal.
func runPeriodic(ctx context.Context, logger *slog.Logger, name string, interval time.Duration, fn func(context.Context) error) {
	logger.Info("scheduler started", slog.String("job", name), slog.Duration("interval", interval))

	if err := fn(ctx); err != nil {
		logger.Error("scheduled job failed", slog.String("job", name), slog.Any("error", err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped", slog.String("job", name))
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logger.Error("scheduled job failed", slog.String("job", name), slog.Any("error", err))
			}
		}
	}
}
