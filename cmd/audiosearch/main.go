package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/audiosearch/internal/audio/decode"
	"github.com/kailas-cloud/audiosearch/internal/audio/source"
	"github.com/kailas-cloud/audiosearch/internal/config"
	"github.com/kailas-cloud/audiosearch/internal/db"
	dbRedis "github.com/kailas-cloud/audiosearch/internal/db/redis"
	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/ranking"
	"github.com/kailas-cloud/audiosearch/internal/domain/traversal"
	"github.com/kailas-cloud/audiosearch/internal/embed/mel"
	logpkg "github.com/kailas-cloud/audiosearch/internal/logger"
	"github.com/kailas-cloud/audiosearch/internal/metrics"
	chunkrepo "github.com/kailas-cloud/audiosearch/internal/repository/chunk"
	"github.com/kailas-cloud/audiosearch/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/audiosearch/internal/transport/chi"
	embeddinguc "github.com/kailas-cloud/audiosearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/audiosearch/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/audiosearch/internal/usecase/pipeline"
	rankuc "github.com/kailas-cloud/audiosearch/internal/usecase/rank"
	seeduc "github.com/kailas-cloud/audiosearch/internal/usecase/seed"
	segmentuc "github.com/kailas-cloud/audiosearch/internal/usecase/segment"
	"github.com/kailas-cloud/audiosearch/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting audiosearch API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Valkey and Redis speak the same protocol; rueidis serves both.
	var store db.Store
	switch cfg.Database.Driver {
	case "valkey", "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Database.Addrs,
			Username:    cfg.Database.Username,
			Password:    cfg.Database.Password,
			DB:          cfg.Database.DB,
			ClientName:  cfg.Database.ClientName,
			DialTimeout: time.Duration(cfg.Database.DialTimeoutSec) * time.Second,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	router, err := buildSourceRouter(ctx, cfg.Sources)
	if err != nil {
		logger.Fatal("Failed to configure audio sources", zap.Error(err))
	}
	decoder := decode.New(router, cfg.Decoder.SampleRate, logger.Named("decode"))
	logger.Info("Audio sources ready", zap.Strings("schemes", router.Schemes()))

	embedder, err := buildEmbedder(cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", embedder.Dimensions()),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	// Names were checked by config.Validate.
	algorithm, _ := db.ParseAlgorithm(cfg.Index.Algorithm)
	distance, _ := db.ParseDistance(cfg.Index.Distance)
	repo := chunkrepo.New(store, cfg.Storage.KeyPrefix, chunkrepo.IndexConfig{
		Dimensions:     embedder.Dimensions(),
		Algorithm:      algorithm,
		Distance:       distance,
		M:              cfg.Index.HNSWM,
		EFConstruction: cfg.Index.HNSWEFConstruct,
	})
	if cfg.Storage.ResetOnStart {
		if err := repo.Reset(ctx); err != nil {
			logger.Fatal("Failed to reset index", zap.Error(err))
		}
		logger.Warn("Index reset on start", zap.String("index", repo.IndexName()))
	}
	if err := repo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure index", zap.Error(err))
	}

	seg, err := segmentuc.New(segmentuc.Config{
		ChunkDuration: cfg.Segmenter.ChunkDuration,
		ChunkStride:   cfg.Segmenter.ChunkStride,
		Workers:       cfg.Segmenter.Workers,
	}, decoder, logger.Named("segment"))
	if err != nil {
		logger.Fatal("Invalid segmenter config", zap.Error(err))
	}

	policy, _ := ranking.Parse(cfg.Ranker.Ranking)
	path, _ := traversal.ParsePath(cfg.Ranker.Traversal)
	ranker, err := rankuc.New(rankuc.Config{
		Metric:    cfg.Ranker.Metric,
		Ranking:   policy,
		Traversal: path,
		Workers:   cfg.Ranker.Workers,
	}, logger.Named("rank"))
	if err != nil {
		logger.Fatal("Invalid ranker config", zap.Error(err))
	}

	pipe := pipelineuc.New(seg, embedder, repo, ranker, pipelineuc.Config{
		TopK:         cfg.Index.TopK,
		Workers:      cfg.Index.Workers,
		MaxBatchSize: cfg.Index.MaxBatchSize,
	}, logger.Named("pipeline"))

	healthSvc := healthuc.New(store, repo, embedder)

	if cfg.Index.SeedGlob != "" {
		seeder := seeduc.New(pipe, cfg.Index.MaxBatchSize, logger.Named("seed"))
		if _, err := seeder.Run(ctx, cfg.Index.SeedGlob); err != nil {
			logger.Error("Seed indexing failed", zap.Error(err))
		}
	}

	server := chiTransport.NewServer(pipe, decoder, healthSvc, chiTransport.Options{
		MaxUploadBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
		APIKeys:        cfg.Auth.APIKeys,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildSourceRouter registers a fetcher per enabled uri scheme.
func buildSourceRouter(ctx context.Context, cfg config.SourcesConfig) (*source.Router, error) {
	web := source.NewHTTPFetcher(time.Duration(cfg.HTTPTimeoutSec) * time.Second)
	r := source.NewRouter().
		Handle("file", source.NewFileFetcher(cfg.FileRoot)).
		Handle("http", web).
		Handle("https", web)

	if cfg.S3.Enabled {
		s3, err := source.NewS3FetcherFromEnv(ctx, source.S3Options{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		r.Handle("s3", s3)
	}
	if cfg.Minio.Enabled {
		m, err := source.NewMinioFetcher(source.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		r.Handle("minio", m)
	}
	return r, nil
}

// buildEmbedder assembles the decorator chain: log-mel -> Cached -> Instrumented.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) (*embeddinguc.InstrumentedEmbedder, error) {
	melCfg := mel.Config{
		NumMels:  cfg.Embedding.NumMels,
		WindowMs: cfg.Embedding.WindowMs,
		HopMs:    cfg.Embedding.HopMs,
		LowFreq:  cfg.Embedding.LowFreq,
		HighFreq: cfg.Embedding.HighFreq,
	}
	if cfg.Embedding.PreEmphasis != nil {
		melCfg.PreEmphasis = *cfg.Embedding.PreEmphasis
	}
	base, err := mel.New(melCfg)
	if err != nil {
		return nil, fmt.Errorf("log-mel embedder: %w", err)
	}

	var embedder domain.Embedder = base
	if cfg.Embedding.Cache.Enabled {
		embedder = embcache.New(base, store, cfg.Storage.KeyPrefix,
			time.Duration(cfg.Embedding.Cache.TTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger.Named("embcache"))
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Model, base.Dimensions(), logger.Named("embedding")), nil
}
