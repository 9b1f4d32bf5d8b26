package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"medquiz-service/internal/app"
	"medquiz-service/internal/config"
	"medquiz-service/internal/infra/gormdb"
	"medquiz-service/internal/infra/memory"
	"medquiz-service/internal/infra/postgres"
	redisinfra "medquiz-service/internal/infra/redis"
	"medquiz-service/internal/logger"
	transport "medquiz-service/internal/transport/http"
)

const reportQueueSize = 500

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the question API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	poolTTL := config.TTLDuration(cfg.Pool.TTL, 10*time.Minute)

	poolLoader := app.RepositoryPoolLoader(repo)
	var (
		pools   app.PoolCache
		reports app.ReportQueue
		hubs    app.HubRepository
	)
	if redisClient != nil {
		pools = redisinfra.NewPoolCache(redisClient, poolLoader, poolTTL)
		reports = redisinfra.NewReportQueue(redisClient, reportQueueSize)
		hubs = redisinfra.NewHubStore(redisClient, redisTTL)
	} else {
		pools = memory.NewPoolCache(poolLoader, poolTTL)
		reports = memory.NewReportQueue(reportQueueSize)
		hubs = memory.NewHubStore()
	}
	service := app.NewQuestionService(repo, pools, reports, hubs)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service),
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset; it would cut off /ws streams.
	}

	go func() {
		logger.Info("starting question API", "addr", server.Addr, "engine", cfg.Storage.Engine, "redis", redisClient != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openRepository connects the configured storage engine. The pgx engine runs the SQL migrations
// first; the gorm engine migrates its models on open.
func openRepository(ctx context.Context, cfg config.Config) (app.QuestionRepository, func(), error) {
	switch cfg.Storage.Engine {
	case config.EnginePgx:
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.NewQuestionRepository(pool), pool.Close, nil
	case config.EngineGorm:
		db, err := gormdb.Open(cfg.Storage.Driver, cfg.Storage.DSN, cfg.Log.GormLevel)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return gormdb.NewQuestionRepository(db), closeDB, nil
	}
	return nil, nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
}
