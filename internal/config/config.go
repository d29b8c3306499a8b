// Package config loads application configuration and sets up logging.
package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Akeneo     AkeneoConfig     `yaml:"akeneo" mapstructure:"akeneo"`
	Extractor  ExtractorConfig  `yaml:"extractor" mapstructure:"extractor"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Prompts    PromptsConfig    `yaml:"prompts" mapstructure:"prompts"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AkeneoConfig holds PIM connection settings. Transport "direct" talks to
// the PIM with OAuth2 password-grant credentials; "proxy" forwards through a
// backend that holds the credentials.
type AkeneoConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	ClientID    string  `yaml:"client_id" mapstructure:"client_id"`
	Secret      string  `yaml:"secret" mapstructure:"secret"`
	Username    string  `yaml:"username" mapstructure:"username"`
	Password    string  `yaml:"password" mapstructure:"password"`
	Transport   string  `yaml:"transport" mapstructure:"transport"`
	ProxyURL    string  `yaml:"proxy_url" mapstructure:"proxy_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMs   int     `yaml:"backoff_ms" mapstructure:"backoff_ms"`
}

// ExtractorConfig selects the document extractor.
type ExtractorConfig struct {
	Provider       string   `yaml:"provider" mapstructure:"provider"`
	WebhookURL     string   `yaml:"webhook_url" mapstructure:"webhook_url"`
	WebhookAPIKey  string   `yaml:"webhook_api_key" mapstructure:"webhook_api_key"`
	MaxFileSizeMB  int      `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	SupportedTypes []string `yaml:"supported_types" mapstructure:"supported_types"`
}

// MaxFileBytes returns the upload cap in bytes.
func (e ExtractorConfig) MaxFileBytes() int64 {
	return int64(e.MaxFileSizeMB) << 20
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key             string  `yaml:"key" mapstructure:"key"`
	Model           string  `yaml:"model" mapstructure:"model"`
	Temperature     float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// EnrichmentConfig holds review and schema policy.
type EnrichmentConfig struct {
	ConfidenceThreshold float64  `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	MaxAttributes       int      `yaml:"max_attributes" mapstructure:"max_attributes"`
	MaxOptionSamples    int      `yaml:"max_option_samples" mapstructure:"max_option_samples"`
	DefaultPrompt       string   `yaml:"default_prompt" mapstructure:"default_prompt"`
	DefaultMode         string   `yaml:"default_mode" mapstructure:"default_mode"`
	AttributeAllowlist  []string `yaml:"attribute_allowlist" mapstructure:"attribute_allowlist"`
	UILocale            string   `yaml:"ui_locale" mapstructure:"ui_locale"`
	SessionTTLMinutes   int      `yaml:"session_ttl_minutes" mapstructure:"session_ttl_minutes"`
	SchemaConcurrency   int      `yaml:"schema_concurrency" mapstructure:"schema_concurrency"`
}

// PromptsConfig selects where prompt templates come from.
type PromptsConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
	File   string `yaml:"file" mapstructure:"file"`
}

// NotionConfig holds Notion API credentials and the prompt database ID.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	PromptDB string `yaml:"prompt_db" mapstructure:"prompt_db"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	APIKey         string   `yaml:"api_key" mapstructure:"api_key"`
}

// LogConfig configures logging. File, when set, adds a rotating JSON log.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default are bound so AutomaticEnv reaches Unmarshal.
	for _, key := range []string{
		"akeneo.base_url", "akeneo.client_id", "akeneo.secret", "akeneo.username",
		"akeneo.password", "akeneo.proxy_url", "extractor.webhook_url",
		"extractor.webhook_api_key", "anthropic.key", "gemini.key",
		"enrichment.attribute_allowlist", "prompts.file", "notion.token",
		"notion.prompt_db", "server.api_key", "log.file",
	} {
		_ = v.BindEnv(key)
	}

	// Defaults
	v.SetDefault("akeneo.transport", "direct")
	v.SetDefault("akeneo.rate_limit", 10)
	v.SetDefault("akeneo.timeout_secs", 30)
	v.SetDefault("akeneo.max_attempts", 3)
	v.SetDefault("akeneo.backoff_ms", 250)
	v.SetDefault("extractor.provider", "webhook")
	v.SetDefault("extractor.max_file_size_mb", 10)
	v.SetDefault("extractor.supported_types", []string{"pdf", "jpeg", "jpg", "png", "webp"})
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.max_output_tokens", 8192)
	v.SetDefault("enrichment.confidence_threshold", 0.8)
	v.SetDefault("enrichment.max_attributes", 15)
	v.SetDefault("enrichment.max_option_samples", 10)
	v.SetDefault("enrichment.default_prompt", "default")
	v.SetDefault("enrichment.default_mode", "all")
	v.SetDefault("enrichment.ui_locale", "en_US")
	v.SetDefault("enrichment.session_ttl_minutes", 60)
	v.SetDefault("enrichment.schema_concurrency", 5)
	v.SetDefault("prompts.source", "embedded")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pim-enrich.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys the given command needs. Modes: serve, extract,
// worker (extraction endpoint only), runs, prompts.
func (c *Config) Validate(mode string) error {
	var errs []string
	req := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	switch mode {
	case "serve", "extract":
		c.validatePIM(req)
		c.validateExtractor(req)
		c.validateEnrichment(req)
		c.validatePrompts(req)
		if mode == "serve" {
			req(c.Server.Port > 0, "server.port must be > 0")
		}
	case "worker":
		c.validateExtractor(req)
		c.validatePrompts(req)
	case "runs":
		c.validateStore(req)
	case "prompts":
		c.validatePrompts(req)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if mode == "serve" || mode == "extract" {
		c.validateStore(req)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validatePIM(req func(bool, string)) {
	switch c.Akeneo.Transport {
	case "direct":
		req(c.Akeneo.BaseURL != "", "akeneo.base_url is required")
		req(c.Akeneo.ClientID != "" && c.Akeneo.Secret != "", "akeneo.client_id and akeneo.secret are required")
		req(c.Akeneo.Username != "" && c.Akeneo.Password != "", "akeneo.username and akeneo.password are required")
	case "proxy":
		req(c.Akeneo.ProxyURL != "", "akeneo.proxy_url is required")
	default:
		req(false, "akeneo.transport must be direct or proxy")
	}
}

func (c *Config) validateExtractor(req func(bool, string)) {
	switch c.Extractor.Provider {
	case "webhook":
		req(c.Extractor.WebhookURL != "", "extractor.webhook_url is required")
	case "anthropic":
		req(c.Anthropic.Key != "", "anthropic.key is required")
	case "gemini":
		req(c.Gemini.Key != "", "gemini.key is required")
	default:
		req(false, "extractor.provider must be webhook, anthropic or gemini")
	}
	req(c.Extractor.MaxFileSizeMB > 0, "extractor.max_file_size_mb must be > 0")
	req(len(c.Extractor.SupportedTypes) > 0, "extractor.supported_types must not be empty")
}

func (c *Config) validateEnrichment(req func(bool, string)) {
	e := c.Enrichment
	req(e.ConfidenceThreshold >= 0 && e.ConfidenceThreshold <= 1, "enrichment.confidence_threshold must be between 0 and 1")
	req(e.MaxAttributes > 0, "enrichment.max_attributes must be > 0")
	req(e.SchemaConcurrency > 0, "enrichment.schema_concurrency must be > 0")
	req(e.DefaultMode == "" || slices.Contains([]string{"all", "empty"}, strings.ToLower(e.DefaultMode)),
		"enrichment.default_mode must be all or empty")
}

func (c *Config) validatePrompts(req func(bool, string)) {
	switch c.Prompts.Source {
	case "", "embedded":
	case "file":
		req(c.Prompts.File != "", "prompts.file is required")
	case "notion":
		req(c.Notion.Token != "", "notion.token is required")
		req(c.Notion.PromptDB != "", "notion.prompt_db is required")
	default:
		req(false, "prompts.source must be embedded, file or notion")
	}
}

func (c *Config) validateStore(req func(bool, string)) {
	switch c.Store.Driver {
	case "sqlite", "postgres":
		req(c.Store.DatabaseURL != "", "store.database_url is required")
	default:
		req(false, "store.driver must be sqlite or postgres")
	}
}

// InitLogger initializes the global zap logger. With cfg.File set, entries
// are also written as JSON to a rotating file.
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

	var opts []zap.Option
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zapCfg.Level,
		)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
