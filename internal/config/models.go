package config

import "time"

// AgentConfig represents the conversational agent settings
type AgentConfig struct {
	// Strategy selects rule-based or model-backed decisions: "rules" or "llm"
	Strategy     string
	Synthesizer  string
	HistoryTurns int
	DefaultDays  int
	MaxResults   int
	TopK         int
	MaxListed    int
	Overrides    map[string]string
}

// RetryConfig bounds every external call
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// ScanConfig represents the scan pipeline settings
type ScanConfig struct {
	Concurrency     int
	ItemTimeout     time.Duration
	BodyPreviewSize int
	MaxTextSize     int
	Retry           RetryConfig
}

// StoreConfig represents the record store settings
type StoreConfig struct {
	Type     string
	Dir      string
	MySQLDSN string
}

// SourceConfig represents the mail source settings
type SourceConfig struct {
	Type               string
	RawDir             string
	Maildir            string
	RequireAttachments bool
	RateLimit          float64
	Burst              int
}

// GmailConfig represents the Gmail API settings
type GmailConfig struct {
	CredentialsFile string
	TokenFile       string
	User            string
}

// NotifyConfig represents the notifier settings
type NotifyConfig struct {
	Type    string
	OnScan  bool
	Channel string
}

// SMTPConfig represents the SMTP notifier settings
type SMTPConfig struct {
	Address  string
	Port     int
	Username string
	Password string
	From     string
	// StartTLS upgrades the connection before authenticating
	StartTLS      bool
	TLSSkipVerify bool
}

// EmbeddingConfig represents the embedder settings
type EmbeddingConfig struct {
	Provider   string
	Dimensions int
	Model      string
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// WebSearchConfig represents the web search settings
type WebSearchConfig struct {
	Type       string
	URL        string
	MaxResults int
	Timeout    time.Duration
}

// GetAgent returns the agent configuration
func (c *Config) GetAgent() AgentConfig {
	return AgentConfig{
		Strategy:     c.GetString("agent.strategy"),
		Synthesizer:  c.GetString("agent.synthesizer"),
		HistoryTurns: c.GetInt("agent.history_turns"),
		DefaultDays:  c.GetInt("agent.default_days"),
		MaxResults:   c.GetInt("agent.max_results"),
		TopK:         c.GetInt("agent.top_k"),
		MaxListed:    c.GetInt("agent.max_listed"),
		Overrides:    c.GetStringMapString("agent.overrides"),
	}
}

// GetScan returns the scan configuration. Unparseable durations fall back to zero.
func (c *Config) GetScan() ScanConfig {
	return ScanConfig{
		Concurrency:     c.GetInt("scan.concurrency"),
		ItemTimeout:     c.duration("scan.item_timeout"),
		BodyPreviewSize: c.GetInt("scan.body_preview_size"),
		MaxTextSize:     c.GetInt("scan.max_text_size"),
		Retry: RetryConfig{
			MaxAttempts:  c.GetInt("scan.retry.max_attempts"),
			InitialDelay: c.duration("scan.retry.initial_delay"),
			MaxDelay:     c.duration("scan.retry.max_delay"),
			Multiplier:   c.GetFloat64("scan.retry.multiplier"),
		},
	}
}

// GetStore returns the record store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:     c.GetString("store.type"),
		Dir:      c.GetString("store.dir"),
		MySQLDSN: c.GetString("store.mysql_dsn"),
	}
}

// GetSource returns the mail source configuration
func (c *Config) GetSource() SourceConfig {
	return SourceConfig{
		Type:               c.GetString("source.type"),
		RawDir:             c.GetString("source.raw_dir"),
		Maildir:            c.GetString("source.maildir"),
		RequireAttachments: c.GetBool("source.require_attachments"),
		RateLimit:          c.GetFloat64("source.rate_limit"),
		Burst:              c.GetInt("source.burst"),
	}
}

// GetGmail returns the Gmail configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		CredentialsFile: c.GetString("gmail.credentials_file"),
		TokenFile:       c.GetString("gmail.token_file"),
		User:            c.GetString("gmail.user"),
	}
}

// GetNotify returns the notifier configuration
func (c *Config) GetNotify() NotifyConfig {
	return NotifyConfig{
		Type:    c.GetString("notify.type"),
		OnScan:  c.GetBool("notify.on_scan"),
		Channel: c.GetString("notify.channel"),
	}
}

// GetSMTP returns the SMTP configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Address:  c.GetString("smtp.address"),
		Port:     c.GetInt("smtp.port"),
		Username: c.GetString("smtp.username"),
		Password: c.GetString("smtp.password"),
		From:     c.GetString("smtp.from"),

		StartTLS:      c.GetBool("smtp.starttls"),
		TLSSkipVerify: c.GetBool("smtp.tls_skip_verify"),
	}
}

// GetEmbedding returns the embedder configuration
func (c *Config) GetEmbedding() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   c.GetString("embedding.provider"),
		Dimensions: c.GetInt("embedding.dimensions"),
		Model:      c.GetString("embedding.model"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetWebSearch returns the web search configuration
func (c *Config) GetWebSearch() WebSearchConfig {
	return WebSearchConfig{
		Type:       c.GetString("websearch.type"),
		URL:        c.GetString("websearch.url"),
		MaxResults: c.GetInt("websearch.max_results"),
		Timeout:    c.duration("websearch.timeout"),
	}
}

func (c *Config) duration(key string) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return 0
	}
	return d
}
