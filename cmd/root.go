// Package cmd provides the lifeos CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/breaking-byts/lifeos/core/agent"
	"github.com/breaking-byts/lifeos/core/bandit"
	"github.com/breaking-byts/lifeos/core/config"
	"github.com/breaking-byts/lifeos/core/database"
	"github.com/breaking-byts/lifeos/core/features"
	"github.com/breaking-byts/lifeos/core/memory"
	"github.com/breaking-byts/lifeos/core/profile"
	"github.com/breaking-byts/lifeos/core/reward"
	"github.com/breaking-byts/lifeos/core/storage"
)

var rootCmd = &cobra.Command{
	Use:   "lifeos",
	Short: "lifeos - adaptive recommendations for your day",
	Long:  `lifeos learns from your study sessions, workouts, and check-ins to recommend what to do next.`,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

// engine bundles everything a command needs, plus its teardown.
type engine struct {
	agent    *agent.Agent
	models   *bandit.Store
	memory   *memory.Index
	manager  *database.Manager
	config   *config.Manager
	keyword  *memory.KeywordIndex
	embedder *memory.ONNXEmbedder
}

func (e *engine) close() {
	if e.keyword != nil {
		_ = e.keyword.Close()
	}
	_ = e.embedder.Close()
	_ = e.config.Close()
	_ = e.manager.CloseAll()
}

func newEngine(ctx context.Context) (*engine, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	dirs, err := storage.ResolveDirs()
	if err != nil {
		return nil, fmt.Errorf("resolve dirs: %w", err)
	}
	if err := dirs.EnsureAll(); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	cfgManager := config.NewManager(dirs)
	if err := cfgManager.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfgManager.Watch(); err != nil {
		logger.Warn("config hot reload unavailable", "error", err)
	}
	cfg := cfgManager.Get()

	dbManager := database.NewManager(dirs)
	pool, err := dbManager.Open("activity", database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	migrator := database.NewMigrator(pool, database.Migrations())
	if err := migrator.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	models := bandit.NewStore(pool, bandit.StoreConfig{
		PriorPrecision: cfg.Bandit.PriorPrecision,
		NoisePrecision: cfg.Bandit.NoisePrecision,
		Logger:         logger,
	})
	if err := models.Seed(ctx, bandit.DefaultCatalog()); err != nil {
		return nil, fmt.Errorf("seed actions: %w", err)
	}

	embedder, err := memory.NewONNXEmbedder(memory.ONNXConfig{
		ModelRepo: cfg.Memory.EmbeddingModel,
		CacheDir:  dirs.ModelDir(),
		Dimension: cfg.Memory.EmbeddingDims,
	})
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	// Load the ONNX pipeline off the request path; embeddings use the
	// hash fallback until it finishes.
	go func() {
		if err := embedder.EnsureModel(ctx); err != nil {
			logger.Debug("embedding model not loaded, using hash fallback", "error", err)
		}
	}()

	cached, err := memory.NewCachedEmbedder(embedder, int(cfg.Memory.CacheEntries))
	if err != nil {
		return nil, fmt.Errorf("init embed cache: %w", err)
	}
	embedPool := memory.NewEmbedPool(cached, cfg.Memory.EmbedConcurrency)

	keyword, err := memory.OpenKeywordIndex(dirs.IndexDir())
	if err != nil {
		logger.Warn("keyword index unavailable", "error", err)
		keyword = nil
	}

	index, err := memory.NewIndex(memory.NewEventStore(pool), embedPool, memory.IndexConfig{
		Keyword: keyword,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init memory index: %w", err)
	}
	if err := index.Load(ctx); err != nil {
		return nil, fmt.Errorf("load memory index: %w", err)
	}

	rewards := reward.NewEngine(pool, reward.EngineConfig{
		Weights: reward.WeightsFromConfig(cfg),
		Targets: cfg.Targets,
		Logger:  logger,
	})

	a := agent.New(agent.Config{
		Pool:      pool,
		Extractor: features.NewExtractor(pool),
		Snapshots: features.NewSnapshotStore(pool),
		Models:    models,
		Selector:  bandit.NewSelector(models, rand.New(rand.NewSource(rand.Int63()))),
		Memory:    index,
		Rewards:   rewards,
		Profile:   profile.NewLearner(pool),
		Manager:   cfgManager,
		Logger:    logger,
	})

	return &engine{
		agent:    a,
		models:   models,
		memory:   index,
		manager:  dbManager,
		config:   cfgManager,
		keyword:  keyword,
		embedder: embedder,
	}, nil
}
