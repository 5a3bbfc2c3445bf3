package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override
const EnvPrefix = "INBOX_AGENT"

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from file, or from the default search paths when
// file is empty
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/inbox-agent/")
		v.AddConfigPath("$HOME/.inbox-agent")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Agent defaults
	v.SetDefault("agent.strategy", "rules")
	v.SetDefault("agent.synthesizer", "template")
	v.SetDefault("agent.history_turns", 5)
	v.SetDefault("agent.default_days", 30)
	v.SetDefault("agent.max_results", 50)
	v.SetDefault("agent.top_k", 50)
	v.SetDefault("agent.max_listed", 10)
	v.SetDefault("agent.overrides", map[string]string{})

	// Scan defaults
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("scan.item_timeout", "60s")
	v.SetDefault("scan.body_preview_size", 500)
	v.SetDefault("scan.max_text_size", 8000)
	v.SetDefault("scan.retry.max_attempts", 3)
	v.SetDefault("scan.retry.initial_delay", "500ms")
	v.SetDefault("scan.retry.max_delay", "10s")
	v.SetDefault("scan.retry.multiplier", 2.0)

	// Store defaults
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.dir", "./data/store")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/inbox_agent?parseTime=true")

	// Source defaults
	v.SetDefault("source.type", "gmail")
	v.SetDefault("source.raw_dir", "./data/raw")
	v.SetDefault("source.maildir", "./data/inbox")
	v.SetDefault("source.require_attachments", false)
	v.SetDefault("source.rate_limit", 5.0)
	v.SetDefault("source.burst", 10)

	// Gmail defaults
	v.SetDefault("gmail.credentials_file", "./credentials.json")
	v.SetDefault("gmail.token_file", "./token.json")
	v.SetDefault("gmail.user", "me")

	// Notification defaults
	v.SetDefault("notify.type", "log")
	v.SetDefault("notify.on_scan", false)
	v.SetDefault("notify.channel", "")

	// SMTP defaults
	v.SetDefault("smtp.address", "localhost")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "inbox-agent@localhost")
	v.SetDefault("smtp.starttls", false)
	v.SetDefault("smtp.tls_skip_verify", false)

	// Embedding defaults
	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.dimensions", 256)
	v.SetDefault("embedding.model", "")

	// LLM provider defaults
	v.SetDefault("llm.provider", "openai")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)

	// Web search defaults
	v.SetDefault("websearch.type", "none")
	v.SetDefault("websearch.url", "")
	v.SetDefault("websearch.max_results", 5)
	v.SetDefault("websearch.timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetStringMapString gets a string map value from the configuration
func (c *Config) GetStringMapString(key string) map[string]string {
	return c.v.GetStringMapString(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// Set overrides a single key, used by command line flags
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// ConfigFile returns the path of the file that was read, if any
func (c *Config) ConfigFile() string {
	return c.v.ConfigFileUsed()
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
