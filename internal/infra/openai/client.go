package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/AyushPanchal/Medha/internal/core/llm"
)

const (
	// DefaultChatModel is the default chat completion model.
	DefaultChatModel = "gpt-4o-mini"

	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 60 * time.Second
)

// ErrAPIKeyNotSet is returned when no API key is available.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

// Client is the chat completion client.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

type clientOptions struct {
	model   string
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithChatModel overrides the chat model.
func WithChatModel(model string) ClientOption {
	return func(o *clientOptions) {
		o.model = model
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// NewClient creates a Client. An empty apiKey falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := clientOptions{
		model:   DefaultChatModel,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   options.model,
		timeout: options.timeout,
	}, nil
}

var _ llm.Generator = (*Client)(nil)

// ModelName returns the configured model name.
func (c *Client) ModelName() string {
	return c.model
}

// GenerateCompletion performs a single chat completion call. Rate limit and
// server errors come back marked transient so callers can retry.
func (c *Client) GenerateCompletion(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, &llm.GenerationError{
			Transient: isTransientError(err),
			Err:       fmt.Errorf("chat completion: %w", err),
		}
	}

	if len(completion.Choices) == 0 {
		return llm.CompletionResponse{}, &llm.GenerationError{
			Err: fmt.Errorf("no completion choices returned"),
		}
	}

	return llm.CompletionResponse{
		Content:    completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
		Model:      string(completion.Model),
	}, nil
}
