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

	"github.com/google/uuid"

	"github.com/example/interview-tracker/internal/application"
	"github.com/example/interview-tracker/internal/config"
	trackerhttp "github.com/example/interview-tracker/internal/http"
	"github.com/example/interview-tracker/internal/notify"
	"github.com/example/interview-tracker/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("tracker service exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	store, err := sqlite.Open(cfg.SQLiteDSN, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("failed to close database", "error", closeErr)
		}
	}()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	idGenerator := uuid.NewString
	// Session tokens are bearer credentials, so two UUIDs worth of entropy.
	tokenGenerator := func() string {
		return uuid.NewString() + uuid.NewString()
	}
	now := time.Now

	users := newUserRepositoryAdapter(store.Users)
	grants := newPermissionRepositoryAdapter(store.Permissions)
	calls := newCallRepositoryAdapter(store.Calls)
	sessions := newSessionRepositoryAdapter(store.Sessions)

	hashPassword := func(password string) (string, error) {
		return application.HashPassword(password, application.DefaultPasswordParams)
	}

	userService := application.NewUserServiceWithLogger(users, hashPassword, idGenerator, now, logger)
	permissionService := application.NewPermissionServiceWithLogger(grants, users, idGenerator, now, logger)
	callService := application.NewCallServiceWithLogger(calls, permissionService, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(users, sessions, application.VerifyPassword, tokenGenerator, now, cfg.SessionTTL, logger)

	manager := notify.NewManager(notify.ManagerConfig{
		Source:      newScheduleSourceAdapter(callService),
		Offsets:     cfg.ReminderOffsets,
		Interval:    cfg.PollInterval,
		Now:         now,
		IDGenerator: idGenerator,
		Logger:      logger,
	})
	defer manager.StopAll()
	callService.SetObserver(manager)

	router := trackerhttp.NewRouter(trackerhttp.RouterConfig{
		Auth:          trackerhttp.NewAuthHandler(newAuthServiceAdapter(authService, manager), logger),
		Users:         trackerhttp.NewUserHandler(userService, logger),
		Permissions:   trackerhttp.NewPermissionHandler(permissionService, logger),
		Calls:         trackerhttp.NewCallHandler(callService, manager, logger),
		Notifications: trackerhttp.NewNotificationHandler(manager, logger),
	})

	// Issuing a session must work without one; every other route requires a
	// valid token.
	protected := trackerhttp.RequireSession(authService, logger)(router)
	handler := trackerhttp.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sessions" && r.Method == http.MethodPost {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("tracker service listening", "port", cfg.HTTPPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("tracker service stopped")
	return nil
}
