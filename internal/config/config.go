// Package config handles loading and validating the stockline configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the root configuration for the stockline daemon and CLI.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Matcher    MatcherConfig    `mapstructure:"matcher"`
	Locator    LocatorConfig    `mapstructure:"locator"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health and metrics server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each inbound transport.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// MatcherConfig selects the transcript classifier.
type MatcherConfig struct {
	Backend string        `mapstructure:"backend"` // "keyword" or "llm"
	Aliases []AliasConfig `mapstructure:"aliases"`
}

// AliasConfig adds spoken forms for one catalog item. It is a list entry
// rather than a map because viper lower-cases map keys.
type AliasConfig struct {
	Item    string   `mapstructure:"item"` // exact catalog item name
	Phrases []string `mapstructure:"phrases"`
}

// AliasMap returns the aliases keyed by item name.
func (m MatcherConfig) AliasMap() map[string][]string {
	out := make(map[string][]string, len(m.Aliases))
	for _, a := range m.Aliases {
		out[a.Item] = append(out[a.Item], a.Phrases...)
	}
	return out
}

// LocatorConfig selects the coordinate resolver.
type LocatorConfig struct {
	Backend string `mapstructure:"backend"` // "haversine" or "llm"
}

// LLMConfig configures the language model used by the llm matcher and locator.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // "googleai", "openai" or "ollama"
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"` // openai-compatible or ollama server URL
	Temperature float64 `mapstructure:"temperature"`
}

// RetrievalConfig holds the natural-language retrieval backend settings.
type RetrievalConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	DatafileID string        `mapstructure:"datafile_id"`
	Timeout    time.Duration `mapstructure:"timeout"` // 0 leaves cancellation to the request context
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	File       string `mapstructure:"file"`   // optional rotating log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./stockline.yaml, ./configs/stockline.yaml, /etc/stockline/stockline.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("matcher.backend", "keyword")
	v.SetDefault("locator.backend", "haversine")
	v.SetDefault("llm.provider", "googleai")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("retrieval.base_url", "https://api.snowleopard.ai")
	v.SetDefault("retrieval.api_key", "${SNOWLEOPARD_API_KEY}")
	v.SetDefault("retrieval.datafile_id", "${SNOWLEOPARD_DATAFILE_ID}")
	v.SetDefault("retrieval.timeout", "0s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("stockline")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/stockline")
	}

	// Environment variables: STOCKLINE_SERVER_HEALTH_PORT, STOCKLINE_MATCHER_BACKEND, etc.
	v.SetEnvPrefix("STOCKLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${SNOWLEOPARD_API_KEY}")
	cfg.LLM.APIKey = resolveEnvRef(cfg.LLM.APIKey)
	cfg.Retrieval.APIKey = resolveEnvRef(cfg.Retrieval.APIKey)
	cfg.Retrieval.DatafileID = resolveEnvRef(cfg.Retrieval.DatafileID)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that must be right at startup. Missing
// retrieval credentials are not checked here: they are reported per request.
func (c *Config) Validate() error {
	switch c.Matcher.Backend {
	case "keyword", "llm":
	default:
		return fmt.Errorf("unknown matcher backend %q", c.Matcher.Backend)
	}
	switch c.Locator.Backend {
	case "haversine", "llm":
	default:
		return fmt.Errorf("unknown locator backend %q", c.Locator.Backend)
	}
	if c.Retrieval.Timeout < 0 {
		return fmt.Errorf("retrieval.timeout must not be negative")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var
// value. An unset variable resolves to the empty string so that a missing
// credential is reported as missing rather than sent verbatim.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
// When a log file is configured, output is written to stdout and to a
// size-rotated file.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}
