package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/AyushPanchal/Medha/internal/core/ingest"
	"github.com/AyushPanchal/Medha/internal/infra/fsdocs"
)

// IngestAction loads documents from a directory and runs the ingestion
// pipeline over them.
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	docs, err := fsdocs.Load(dir)
	if err != nil {
		return fmt.Errorf("load documents from %s: %w", dir, err)
	}
	if len(docs) == 0 {
		fmt.Printf("no documents found in %s\n", dir)
		return nil
	}

	chunker, err := ingest.NewChunker(&ingest.ChunkerConfig{
		MaxTokens:     appCtx.Config.Chunker.MaxTokens,
		OverlapTokens: appCtx.Config.Chunker.OverlapTokens,
		SentenceSlack: appCtx.Config.Chunker.SentenceSlack,
	})
	if err != nil {
		return fmt.Errorf("configure chunker: %w", err)
	}

	opts := []ingest.ServiceOption{
		ingest.WithLogger(appCtx.Logger),
	}
	if cmd.Bool("summaries") {
		opts = append(opts, ingest.WithSummarizer(appCtx.Summarizer))
	}

	service, err := ingest.NewService(appCtx.DocStore, appCtx.Index, appCtx.Embedder, chunker, opts...)
	if err != nil {
		return fmt.Errorf("build ingestion service: %w", err)
	}

	report, err := service.Ingest(ctx, docs)
	if err != nil {
		return err
	}

	fmt.Printf("ingested %d documents, %d chunks in %s\n",
		report.DocumentsProcessed, report.ChunksIndexed, report.Duration.Round(time.Millisecond))
	for _, docErr := range report.Errors {
		fmt.Printf("  failed: %s: %v\n", docErr.DocumentID, docErr.Err)
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d documents failed", len(report.Errors))
	}
	return nil
}
