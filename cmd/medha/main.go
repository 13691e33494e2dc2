package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/AyushPanchal/Medha/cmd/medha/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "medha",
		Usage: "Retrieval-augmented assistant for the CS department knowledge base",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "Chunk, embed and index documents from a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "Path to the environment file",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "dir",
						Usage:    "Directory containing .md/.txt documents and optional metadata.json",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "summaries",
						Usage: "Generate chunk summaries during ingestion",
					},
					&cli.BoolFlag{
						Name:  "ephemeral",
						Usage: "Use the in-memory store instead of PostgreSQL",
					},
				},
				Action: commands.IngestAction,
			},
			{
				Name:  "chat",
				Usage: "Start an interactive conversation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "Path to the environment file",
						Value: ".env",
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of context chunks to retrieve per question",
					},
					&cli.StringFlag{
						Name:  "entity",
						Usage: "Restrict retrieval to one source entity",
					},
					&cli.BoolFlag{
						Name:  "ephemeral",
						Usage: "Use the in-memory store instead of PostgreSQL",
					},
				},
				Action: commands.ChatAction,
			},
			{
				Name:  "ask",
				Usage: "Answer a single question",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "Path to the environment file",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "question",
						Usage:    "The question to answer",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of context chunks to retrieve",
					},
					&cli.StringFlag{
						Name:  "entity",
						Usage: "Restrict retrieval to one source entity",
					},
					&cli.BoolFlag{
						Name:  "ephemeral",
						Usage: "Use the in-memory store instead of PostgreSQL",
					},
				},
				Action: commands.AskAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
