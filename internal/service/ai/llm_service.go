package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const probeMaxTokens = 5

// Client sends windowed conversations to the chat model and returns the
// reply text.
type Client struct {
	chatModel model.ChatModel
	chain     compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewClient compiles a single-node chain around chatModel.
func NewClient(ctx context.Context, chatModel model.ChatModel) (*Client, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Client{
		chatModel: chatModel,
		chain:     runnable,
	}, nil
}

// Complete runs one completion with the given sampling parameters.
func (c *Client) Complete(ctx context.Context, messages []*schema.Message, temperature float32, maxTokens int) (string, error) {
	opts := []model.Option{model.WithTemperature(temperature)}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}

	response, err := c.chain.Invoke(ctx, messages, compose.WithChatModelOption(opts...))
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}
	if response == nil {
		return "", errors.New("model returned no message")
	}

	log.Printf("[ai] completion done, input=%d messages, output length=%d", len(messages), len(response.Content))
	return response.Content, nil
}

// Probe checks that the model answers at all with a tiny completion.
func (c *Client) Probe(ctx context.Context) error {
	reply, err := c.Complete(ctx, []*schema.Message{schema.UserMessage("Test")}, 0, probeMaxTokens)
	if err != nil {
		return fmt.Errorf("model probe failed: %w", err)
	}
	log.Printf("[ai] model probe ok: %q", strings.TrimSpace(reply))
	return nil
}

// GetChatModel 返回底层的聊天模型
func (c *Client) GetChatModel() model.ChatModel {
	return c.chatModel
}
