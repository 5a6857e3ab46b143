package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"csi_locks/internal/api"
	"csi_locks/internal/app/generator"
	"csi_locks/internal/app/realtime"
	"csi_locks/internal/app/service"
	"csi_locks/internal/app/worker"
	"csi_locks/internal/common/security"
	"csi_locks/internal/domain/repository"
	"csi_locks/internal/platform/config"
	"csi_locks/internal/platform/database"
	"csi_locks/internal/platform/queue"
	"csi_locks/internal/platform/tracing"
	"csi_locks/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Tracing
	shutdownTracing, err := tracing.Init(ctx, "csi-server", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	// 2. Storage, locks and event pipeline
	hub := realtime.NewHub()
	var (
		bundleRepo  repository.BundleRepository
		sessionRepo repository.SessionRepository
		eventRepo   repository.SessionEventRepository
		locker      service.TeamLocker
		publisher   service.EventPublisher
		eventWorker *worker.EventWorker
	)

	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store := repository.NewMemoryStore()
		bundleRepo, sessionRepo, eventRepo = store.Bundles(), store.Sessions(), store.Events()
		locker = queue.NewLocalLocker()
		eventWorker = worker.NewEventWorker(nil, "", eventRepo, hub)
		publisher = eventWorker // handled inline, no Redis
		logger.Log.Warn("using in-memory storage; state is lost on restart")

	default:
		db, err := database.Connect(ctx, cfg.DBConnStr)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Log.Info("database connected")

		if migrateOnBoot {
			if _, err := database.Migrate(ctx, db); err != nil {
				return err
			}
		}

		rdb, err := queue.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logger.Log.Info("redis connected")

		bundleRepo = repository.NewPgBundleRepository(db)
		sessionRepo = repository.NewPgSessionRepository(db)
		eventRepo = repository.NewPgSessionEventRepository(db)
		locker = queue.NewRedisLocker(rdb, "session:create:", cfg.TeamLockTTL)
		publisher = queue.NewRedisPublisher(rdb, cfg.EventQueueName)
		eventWorker = worker.NewEventWorker(rdb, cfg.EventQueueName, eventRepo, hub)
	}

	// 3. Services
	guard := security.NewTokenGuard(cfg.SessionSecret)
	adminAuth := security.NewAdminAuth(cfg.JWTKey, cfg.JWTExp)

	bundleService := service.NewBundleService(bundleRepo, generator.NewDefault(), uuid.NewString, cfg.RedactBundleAnswers)
	sessionService := service.NewSessionService(bundleRepo, sessionRepo, guard, locker, publisher, service.SessionConfig{
		FocusThreshold:       cfg.FocusThreshold,
		TotalSecondsOverride: cfg.TotalSecondsOverride,
	})
	authService, err := service.NewAuthService(adminAuth, cfg.AdminSecret)
	if err != nil {
		return err
	}
	adminService := service.NewAdminService(sessionRepo, eventRepo, publisher)

	// 4. Background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go hub.Run(workerCtx)
	if cfg.StorageDriver != config.StorageDriverMemory {
		go eventWorker.Start(workerCtx)
	}

	// 5. Router & HTTP server
	router := api.NewRouter(api.RouterConfig{
		RequireSessionToken: cfg.RequireSessionToken,
		RateLimitRequests:   cfg.RateLimitRequests,
		RateLimitWindow:     cfg.RateLimitWindow,
		TrustProxyHeaders:   cfg.TrustProxyHeaders,
		AccessLog:           true,
	}, bundleService, sessionService, authService, adminService, guard, adminAuth, hub)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting",
			zap.String("port", cfg.APIPort),
			zap.String("mode", cfg.AppMode),
			zap.Int("total_seconds_override", cfg.TotalSecondsOverride),
			zap.Bool("require_session_token", cfg.RequireSessionToken))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 6. Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	logger.Log.Info("shutting down server")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Log.Info("server and worker stopped gracefully")
	return nil
}
