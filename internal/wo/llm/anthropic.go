package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicModel Claude Messages API
type AnthropicModel struct {
	client     anthropic.Client
	model      anthropic.Model
	maxElapsed time.Duration
	logger     *zap.Logger
}

// NewAnthropicModel 创建Claude模型
func NewAnthropicModel(apiKey, model string, maxElapsed time.Duration, logger *zap.Logger) *AnthropicModel {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicModel{
		client:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:      anthropic.Model(model),
		maxElapsed: maxElapsed,
		logger:     logger,
	}
}

// Generate 429/5xx/超时按指数退避重试
func (m *AnthropicModel) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = m.maxElapsed

	var text string
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		message, err := m.client.Messages.New(ctx, params)
		if err != nil {
			if isRetryable(err) {
				m.logger.Warn("anthropic call failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("unexpected response format: no content blocks"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return backoff.Permanent(fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type))
		}
		text = content.Text
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}
	return text, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
