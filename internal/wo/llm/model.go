// Package llm runs the optional model-based row check. Its verdicts are only
// ever merged with the deterministic rules, never substituted for them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"go.uber.org/zap"
)

var errAPIKeyRequired = errors.New("API key required")

// Model 文本生成模型
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewModel 按配置创建模型，mode=off时返回nil
func NewModel(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (Model, error) {
	if cfg.Mode == config.AIModeOff {
		return nil, nil
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: set ai.api_key or AI_API_KEY", errAPIKeyRequired)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	switch cfg.Provider {
	case "anthropic", "":
		return NewAnthropicModel(cfg.APIKey, cfg.Model, timeout, logger), nil
	case "gemini":
		return NewGeminiModel(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown ai.provider %q", cfg.Provider)
	}
}
