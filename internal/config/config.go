package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Hunter     HunterConfig     `yaml:"hunter" mapstructure:"hunter"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig configures the distributed key lock. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`

	// RateLimit caps API calls per second. Zero disables the limiter.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// CRMConfig selects the contacts/clients directory used for cross-reference.
type CRMConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`
	MinKeyLength int    `yaml:"min_key_length" mapstructure:"min_key_length"`
}

// ExtractConfig selects the extraction and scoring provider.
type ExtractConfig struct {
	Provider      string   `yaml:"provider" mapstructure:"provider"`
	TargetRegions []string `yaml:"target_regions" mapstructure:"target_regions"`
}

// HunterConfig configures source fetching and batch processing.
type HunterConfig struct {
	SourcesFile      string `yaml:"sources_file" mapstructure:"sources_file"`
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
	MinContentLength int    `yaml:"min_content_length" mapstructure:"min_content_length"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	MinDelayMs       int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxDelayMs       int    `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots    bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	LockTTLSecs      int    `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
	SeenCacheTTLMins int    `yaml:"seen_cache_ttl_mins" mapstructure:"seen_cache_ttl_mins"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadOptions adjusts where Load reads from. A set File must exist.
// Overrides are viper keys that win over file, environment and defaults.
type LoadOptions struct {
	File      string
	Overrides map[string]any
}

// Load reads configuration from an optional ./config.yaml and environment.
func Load() (*Config, error) {
	return LoadWith(LoadOptions{})
}

// LoadWith reads configuration as Load does, then applies opts.
func LoadWith(opts LoadOptions) (*Config, error) {
	v := viper.New()

	// Config file
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("HUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("crm.driver", "postgres")
	v.SetDefault("crm.min_key_length", 3)
	v.SetDefault("extract.provider", "anthropic")
	v.SetDefault("hunter.sources_file", "sources.yaml")
	v.SetDefault("hunter.batch_size", 25)
	v.SetDefault("hunter.min_content_length", 100)
	v.SetDefault("hunter.fetch_timeout_secs", 10)
	v.SetDefault("hunter.min_delay_ms", 500)
	v.SetDefault("hunter.max_delay_ms", 2000)
	v.SetDefault("hunter.user_agent", "Mozilla/5.0 (compatible; hunter/1.0)")
	v.SetDefault("hunter.respect_robots", true)
	v.SetDefault("hunter.concurrency", 4)
	v.SetDefault("hunter.lock_ttl_secs", 30)
	v.SetDefault("hunter.seen_cache_ttl_mins", 60)

	// Read config file (optional unless named)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || opts.File != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	for key, val := range opts.Overrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by the given command mode are
// present. Modes: "hunt", "serve", "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		case "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
		}
	}

	switch mode {
	case "migrate":
		requireStore()
	case "hunt", "serve":
		requireStore()
		if c.Hunter.BatchSize < 1 || c.Hunter.BatchSize > 500 {
			errs = append(errs, "hunter.batch_size must be between 1 and 500")
		}
		if c.Hunter.Concurrency < 1 || c.Hunter.Concurrency > 32 {
			errs = append(errs, "hunter.concurrency must be between 1 and 32")
		}
		if c.Hunter.MinDelayMs > c.Hunter.MaxDelayMs {
			errs = append(errs, "hunter.min_delay_ms must not exceed hunter.max_delay_ms")
		}
		switch c.CRM.Driver {
		case "postgres", "none":
		case "salesforce":
			if c.Salesforce.ClientID == "" || c.Salesforce.Username == "" || c.Salesforce.KeyPath == "" {
				errs = append(errs, "salesforce.client_id, salesforce.username and salesforce.key_path are required for crm.driver=salesforce")
			}
		default:
			errs = append(errs, fmt.Sprintf("crm.driver %q is not supported", c.CRM.Driver))
		}
		switch c.Extract.Provider {
		case "anthropic", "openai", "rules":
		default:
			errs = append(errs, fmt.Sprintf("extract.provider %q is not supported", c.Extract.Provider))
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
