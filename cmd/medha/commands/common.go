// Package commands implements the medha CLI subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AyushPanchal/Medha/internal/core/index"
	"github.com/AyushPanchal/Medha/internal/core/ingest"
	"github.com/AyushPanchal/Medha/internal/infra/memindex"
	openaiinfra "github.com/AyushPanchal/Medha/internal/infra/openai"
	"github.com/AyushPanchal/Medha/internal/infra/postgres"
	"github.com/AyushPanchal/Medha/internal/platform/config"
	"github.com/AyushPanchal/Medha/internal/platform/database"
	"github.com/AyushPanchal/Medha/internal/platform/logger"
)

// AppContext holds the shared dependencies of a command invocation.
type AppContext struct {
	Config     *config.Config
	Logger     *slog.Logger
	Database   *database.DB // nil in ephemeral mode
	DocStore   ingest.DocumentStore
	Index      index.Store
	Embedder   *openaiinfra.Embedder
	Client     *openaiinfra.Client
	Summarizer *openaiinfra.Summarizer
}

// NewAppContext loads configuration, connects storage and builds the OpenAI
// clients. With --ephemeral (or MEDHA_EPHEMERAL) the document store and index
// are in-memory and no database connection is made.
func NewAppContext(ctx context.Context, envFile string, ephemeral bool) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if ephemeral {
		cfg.Ephemeral = true
	}

	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	embedder := openaiinfra.NewEmbedder(cfg.OpenAI.APIKey,
		openaiinfra.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openaiinfra.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	)

	client, err := openaiinfra.NewClient(cfg.OpenAI.APIKey,
		openaiinfra.WithChatModel(cfg.OpenAI.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}

	appCtx := &AppContext{
		Config:     cfg,
		Logger:     appLogger,
		Embedder:   embedder,
		Client:     client,
		Summarizer: openaiinfra.NewSummarizer(client),
	}

	if cfg.Ephemeral {
		idx, err := memindex.New(cfg.OpenAI.EmbeddingDimension)
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		appCtx.Index = idx
		appCtx.DocStore = memindex.NewDocumentStore()
		return appCtx, nil
	}

	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	idx, err := postgres.NewIndex(db.Pool, cfg.OpenAI.EmbeddingDimension)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create vector index: %w", err)
	}
	if err := idx.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	docStore := postgres.NewDocumentStore(db.Pool)
	if err := docStore.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	appCtx.Database = db
	appCtx.Index = idx
	appCtx.DocStore = docStore
	return appCtx, nil
}

// Close releases held resources.
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
}
