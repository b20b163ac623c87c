package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/phonologic/brain-engine/pkg/config"
)

// NewClientFromConfig creates the LLM client the configuration names.
// Returns nil without error when phrasing is disabled.
func NewClientFromConfig(cfg config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	if !cfg.EnablePhrasing {
		return nil, nil
	}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(&AnthropicConfig{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		}, logger)
	case "openai":
		return NewOpenAIClient(&OpenAIConfig{
			Endpoint: cfg.BaseURL,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
