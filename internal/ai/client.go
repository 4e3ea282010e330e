package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/parlorgame/parlor/internal/game"
)

// Client translates answer batches through the Anthropic Messages API. It
// satisfies game.Translator. One client is shared by every room; requests
// carry their own contexts and deadlines.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
	prompts   Prompts
	logger    *zap.Logger
}

// NewClient builds a translator client.
//
// Precondition: apiKey, model non-empty; maxTokens > 0.
func NewClient(apiKey, model string, maxTokens int64, prompts Prompts, logger *zap.Logger) *Client {
	return &Client{
		api:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
		prompts:   prompts,
		logger:    logger,
	}
}

// Translate sends one round's batch to the model and returns its text.
//
// Postcondition: Returns non-empty text or a non-nil error; the caller
// treats both error and empty text as "no translation this round".
func (c *Client) Translate(ctx context.Context, roomKey string, batch []game.BatchEntry) (string, error) {
	if len(batch) == 0 {
		return "", nil
	}

	prompt := c.prompts.BuildBatchPrompt(batch)
	c.logger.Debug("requesting translation",
		zap.String("room", roomKey),
		zap.Int("batch_size", len(batch)),
	)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: c.prompts.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("translation request for room %s: %w", roomKey, err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			b.WriteString(variant.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
