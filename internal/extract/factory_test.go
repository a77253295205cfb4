package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hunter/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*config.Config)
		want  string
	}{
		{"anthropic", func(c *config.Config) { c.Extract.Provider = "anthropic"; c.Anthropic.Key = "k" }, "anthropic"},
		{"anthropic without key", func(c *config.Config) { c.Extract.Provider = "anthropic" }, "rules"},
		{"openai", func(c *config.Config) { c.Extract.Provider = "openai"; c.OpenAI.Key = "k" }, "openai"},
		{"openai without key", func(c *config.Config) { c.Extract.Provider = "openai" }, "rules"},
		{"rules", func(c *config.Config) { c.Extract.Provider = "rules" }, "rules"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			tt.setup(cfg)
			e, err := NewFromConfig(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Name())
		})
	}
}

func TestNewFromConfig_Unknown(t *testing.T) {
	cfg := &config.Config{}
	cfg.Extract.Provider = "gemini"
	_, err := NewFromConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "gemini"`)
}
