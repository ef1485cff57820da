package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"facilityops/lottery/internal/config"
	"facilityops/lottery/internal/handler"
	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/repository"
	"facilityops/lottery/internal/service"
	jwtpkg "facilityops/lottery/pkg/jwt"
)

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the YAML configuration file")
	pflag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 3. Connect to the database
	db, err := config.NewDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	// 4. Auto-migrate if enabled
	if cfg.Database.AutoMigrateEnabled() {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 5. Initialize state store and change feed (Redis or in-memory)
	var (
		stateStore repository.StateStore
		changeFeed repository.ChangeFeed
	)
	switch cfg.State.Backend {
	case "redis":
		var redisClient *redis.Client
		redisClient, err = config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		stateStore = repository.NewRedisStateStore(redisClient)
		changeFeed = repository.NewRedisChangeFeed(redisClient)
		logger.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		changeFeed = repository.NewMemoryChangeFeed()
		logger.Info("using in-memory state store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 6. Initialize repositories
	recordRepo := repository.NewPGInvitationRecordRepository(db)
	teamRepo := repository.NewPGTeamRepository(db)
	lotteryRepo := repository.NewPGLotteryRepository(db)

	// 7. Initialize JWT manager
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)

	// 8. Initialize services
	notifier := service.NewLogNotifier(logger)
	registry := service.NewScopeRegistry(recordRepo, teamRepo, lotteryRepo, changeFeed, service.ScopeRegistryConfig{
		Timing:       cfg.Lottery.Timing(),
		PollInterval: cfg.Lottery.PollInterval,
	}, logger)
	defer registry.Close()

	lotteryService := service.NewLotteryService(registry, lotteryRepo, stateStore, changeFeed, notifier, service.LotteryServiceConfig{
		SessionTTL:    cfg.Lottery.SessionTTL,
		LockTTL:       cfg.Lottery.LockTTL,
		CommitRetries: cfg.Lottery.CommitRetries,
	}, logger)
	recordService := service.NewRecordService(recordRepo, teamRepo, changeFeed, logger)

	// 9. Initialize handlers
	lotteryHandler := handler.NewLotteryHandler(lotteryService, notifier, logger)
	recordHandler := handler.NewRecordHandler(recordService, logger)

	// 10. Setup router
	router := handler.SetupRouter(cfg, logger, jwtManager, lotteryHandler, recordHandler)

	// 11. Create HTTP server. Streams outlive WriteTimeout, so it stays zero
	// unless configured.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 12. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
