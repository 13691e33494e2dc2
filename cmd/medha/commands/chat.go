package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/AyushPanchal/Medha/internal/core/conversation"
	"github.com/AyushPanchal/Medha/internal/core/index"
	"github.com/AyushPanchal/Medha/internal/core/retrieval"
)

// ChatAction runs an interactive conversation on stdin.
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"), cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	chat := buildChatService(appCtx, cmd.Int("k"), cmd.String("entity"))

	sessionID, err := chat.StartSession(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Medha is ready. Ask a question, or type \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		result, err := chat.SendTurn(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printAnswer(result)
	}
	return scanner.Err()
}

// AskAction answers a single question without an interactive session.
func AskAction(ctx context.Context, cmd *cli.Command) error {
	question := cmd.String("question")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("--question must not be empty")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"), cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	chat := buildChatService(appCtx, cmd.Int("k"), cmd.String("entity"))

	sessionID, err := chat.StartSession(ctx)
	if err != nil {
		return err
	}

	result, err := chat.SendTurn(ctx, sessionID, question)
	if err != nil {
		return err
	}
	printAnswer(result)
	return nil
}

// buildChatService assembles the retriever and conversation graph from the
// app context.
func buildChatService(appCtx *AppContext, k int, entity string) *conversation.ChatService {
	retriever := retrieval.NewService(appCtx.Index, appCtx.Embedder,
		retrieval.WithLogger(appCtx.Logger),
		retrieval.WithMinScore(appCtx.Config.Retrieval.MinScore),
		retrieval.WithDedupThreshold(appCtx.Config.Retrieval.DedupThreshold),
	)

	if k <= 0 {
		k = appCtx.Config.Retrieval.K
	}
	filter := index.Filter{}
	if entity != "" {
		filter.SourceEntity = mo.Some(entity)
	}

	graph := conversation.NewGraph([]conversation.Node{
		conversation.NewReformulateNode(appCtx.Client, appCtx.Logger),
		conversation.NewRetrieveNode(retriever, k, filter, appCtx.Logger),
		conversation.NewGenerateNode(appCtx.Client, appCtx.Logger),
	}, conversation.WithGraphLogger(appCtx.Logger))

	return conversation.NewChatService(graph, conversation.NewInMemoryStore(),
		conversation.WithChatLogger(appCtx.Logger),
		conversation.WithChatSummarizer(appCtx.Summarizer),
		conversation.WithMemoryWindow(appCtx.Config.Chat.MemoryWindow),
	)
}

func printAnswer(result *conversation.TurnResult) {
	fmt.Println(result.Answer)
	if !result.Grounded {
		fmt.Println("(no supporting documents were found for this answer)")
	}
}
