package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/critiqlab/critiq/internal/ai"
	"github.com/critiqlab/critiq/internal/analyzer"
	"github.com/critiqlab/critiq/internal/cache"
	"github.com/critiqlab/critiq/internal/config"
	"github.com/critiqlab/critiq/internal/db"
	"github.com/critiqlab/critiq/internal/embedcache"
	"github.com/critiqlab/critiq/internal/handler"
	"github.com/critiqlab/critiq/internal/job"
	"github.com/critiqlab/critiq/internal/middleware"
	"github.com/critiqlab/critiq/internal/repo"
	"github.com/critiqlab/critiq/internal/schedule"
	"github.com/critiqlab/critiq/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "critiq",
		Short: "critiq feedback cache server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run critiq server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("exact_store", cfg.Cache.ExactStore),
		zap.Float64("similarity_threshold", cfg.Cache.SimilarityThreshold),
	)

	database, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(database); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	embedCacheRepo := repo.NewEmbeddingCacheRepo(database)
	vectorRepo := repo.NewFeedbackVectorRepo(database)

	exactStore, err := buildExactStore(cfg)
	if err != nil {
		return err
	}
	embedder, generator, err := buildAI(cfg, embedCacheRepo)
	if err != nil {
		return err
	}

	orchestrator := cache.NewOrchestrator(exactStore, vectorRepo, embedder, cache.Config{
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		FeedbackTTL:         time.Duration(cfg.Cache.FeedbackTTLHours) * time.Hour,
		TopK:                cfg.Cache.TopK,
		EmbedTimeout:        time.Duration(cfg.Cache.EmbedTimeoutSeconds) * time.Second,
		AnalyzeTimeout:      time.Duration(cfg.Cache.AnalyzeTimeoutSeconds) * time.Second,
	})
	feedbackService := service.NewFeedbackService(orchestrator, analyzer.New(generator))

	deps := handler.RouterDeps{
		Feedback: handler.NewFeedbackHandler(feedbackService),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORS),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embedCacheRepo, cfg.Cache.EmbeddingTTLHours), cfg.Schedule.CleanupCron); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewFeedbackVectorCleanupJob(vectorRepo, cfg.Cache.FeedbackTTLHours), cfg.Schedule.CleanupCron); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func buildExactStore(cfg *config.Config) (cache.ExactStore, error) {
	switch cfg.Cache.ExactStore {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// The exact tier is an optimization; a cold start with redis
			// down should not prevent serving fresh analyses.
			logutil.GetLogger(context.Background()).Warn("redis unreachable at startup", zap.Error(err))
		}
		return cache.NewRedisStore(client), nil
	case "memory":
		ttl := time.Duration(cfg.Cache.FeedbackTTLHours) * time.Hour
		return cache.NewMemoryStore(cfg.Cache.MaxItems, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported exact store: %s", cfg.Cache.ExactStore)
	}
}

func buildAI(cfg *config.Config, embedCacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, ai.IGenerator, error) {
	embedders := make([]ai.EmbedderEntry, 0, 1+len(cfg.AI.Fallbacks))
	generators := make([]ai.GeneratorEntry, 0, 1+len(cfg.AI.Fallbacks))

	providers := append([]config.AIProviderConfig{cfg.AI.AIProviderConfig}, cfg.AI.Fallbacks...)
	for _, pc := range providers {
		if pc.Provider == "" {
			continue
		}
		if pc.EmbedModel != "" {
			provider, err := ai.NewEmbedProvider(pc.Provider, pc.Data)
			if err != nil {
				return nil, nil, fmt.Errorf("init embed provider %s: %w", pc.Provider, err)
			}
			embedders = append(embedders, ai.EmbedderEntry{
				Name:     pc.Provider + "/" + pc.EmbedModel,
				Embedder: ai.NewEmbedder(provider, pc.EmbedModel),
			})
		}
		if pc.Model != "" {
			provider, err := ai.NewProvider(pc.Provider, pc.Data)
			if err != nil {
				return nil, nil, fmt.Errorf("init ai provider %s: %w", pc.Provider, err)
			}
			generators = append(generators, ai.GeneratorEntry{
				Name:      pc.Provider + "/" + pc.Model,
				Generator: ai.NewGenerator(provider, pc.Model),
			})
		}
	}
	if len(embedders) == 0 {
		return nil, nil, fmt.Errorf("no embed provider configured")
	}

	embedder := ai.NewGroupEmbedder(embedders)
	embeddingTTL := time.Duration(cfg.Cache.EmbeddingTTLHours) * time.Hour
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, embedCacheRepo, embeddingTTL)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Cache.EmbedLruSize, 2*time.Hour)

	return embedder, ai.NewGroupGenerator(generators), nil
}
