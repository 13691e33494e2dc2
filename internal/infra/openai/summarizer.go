package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/AyushPanchal/Medha/internal/core/llm"
)

const (
	summarizerTemperature = 0.2
	summarizerMaxTokens   = 256

	summarySystemPrompt = `You summarize text for a retrieval system.
Produce a short, factual summary of the given text in two or three sentences.
Return only the summary, with no preamble and no markdown formatting.`
)

// Summarizer produces short summaries by delegating to a chat Client.
type Summarizer struct {
	client *Client
}

// NewSummarizer wraps a Client as a Summarizer.
func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

var _ llm.Summarizer = (*Summarizer)(nil)

// Summarize returns a short summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	resp, err := s.client.GenerateCompletion(ctx, llm.CompletionRequest{
		System:      summarySystemPrompt,
		Prompt:      text,
		Temperature: summarizerTemperature,
		MaxTokens:   summarizerMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	return stripMarkdownFences(strings.TrimSpace(resp.Content)), nil
}

// stripMarkdownFences unwraps a response the model wrapped in a fenced code
// block.
func stripMarkdownFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
