package extract

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/config"
	"github.com/sells-group/hunter/pkg/anthropic"
)

// NewFromConfig selects the configured provider. A model provider without
// an API key falls back to rules.
func NewFromConfig(cfg *config.Config) (Extractor, error) {
	regions := cfg.Extract.TargetRegions
	switch cfg.Extract.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			zap.L().Warn("extract: anthropic key not set, falling back to rules")
			return NewRuleExtractor(regions), nil
		}
		client := anthropic.NewClient(cfg.Anthropic.Key)
		return NewAnthropicExtractor(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, regions), nil
	case "openai":
		if cfg.OpenAI.Key == "" {
			zap.L().Warn("extract: openai key not set, falling back to rules")
			return NewRuleExtractor(regions), nil
		}
		return NewOpenAIExtractor(cfg.OpenAI.Key, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, regions), nil
	case "rules", "":
		return NewRuleExtractor(regions), nil
	default:
		return nil, eris.Errorf("extract: unknown provider %q", cfg.Extract.Provider)
	}
}
