// ABOUTME: Anthropic Messages API implementation of the Client interface
// ABOUTME: Thin wrapper around anthropic-sdk-go with context-aware cancellation

package llm

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 1024

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	maxTokens int
}

// NewAnthropicClient creates a client that reads ANTHROPIC_API_KEY from the
// environment when apiKey is empty. maxTokens caps each reply; zero means
// the built-in default.
func NewAnthropicClient(apiKey string, maxTokens int) *AnthropicClient {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	c := &AnthropicClient{maxTokens: maxTokens}
	if apiKey == "" {
		c.client = anthropic.NewClient()
	} else {
		c.client = anthropic.NewClient(option.WithAPIKey(apiKey))
	}
	return c
}

// Chat sends a single chat request and returns the full reply.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &ChatResponse{
		Content:      content,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
