package config

import (
	"fmt"
	"os"
	"strings"
)

var (
	strategies   = []string{"rules", "llm"}
	synthesizers = []string{"template", "llm"}
	storeTypes   = []string{"memory", "sqlite", "mysql"}
	sourceTypes  = []string{"gmail", "maildir"}
	notifyTypes  = []string{"log", "smtp"}
	embedders    = []string{"hash", "openai", "gemini", "bedrock"}
	providers    = []string{"openai", "gemini", "bedrock"}
	searchTypes  = []string{"none", "searxng"}
)

// Validate returns one message per configuration problem. An empty result
// means the configuration is usable.
func (c *Config) Validate() []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	oneOf := func(key string, allowed []string) {
		if v := c.GetString(key); !contains(allowed, v) {
			add("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), v)
		}
	}

	oneOf("agent.strategy", strategies)
	oneOf("agent.synthesizer", synthesizers)
	oneOf("store.type", storeTypes)
	oneOf("source.type", sourceTypes)
	oneOf("notify.type", notifyTypes)
	oneOf("embedding.provider", embedders)
	oneOf("llm.provider", providers)
	oneOf("websearch.type", searchTypes)

	for _, key := range []string{"agent.history_turns", "agent.default_days", "agent.max_results", "scan.concurrency", "scan.retry.max_attempts"} {
		if c.GetInt(key) <= 0 {
			add("%s must be greater than zero", key)
		}
	}
	for _, key := range []string{"scan.item_timeout", "scan.retry.initial_delay", "scan.retry.max_delay", "websearch.timeout"} {
		if _, err := c.GetDuration(key); err != nil {
			add("%s is not a valid duration: %v", key, err)
		}
	}

	if c.usesLLM() {
		c.validateProvider(c.GetString("llm.provider"), add)
	}
	if p := c.GetString("embedding.provider"); p != "hash" {
		c.validateProvider(p, add)
	}

	store := c.GetStore()
	if store.Type == "sqlite" && store.Dir == "" {
		add("store.dir is required for the sqlite store")
	}
	if store.Type == "mysql" && store.MySQLDSN == "" {
		add("store.mysql_dsn is required for the mysql store")
	}

	source := c.GetSource()
	switch source.Type {
	case "gmail":
		if _, err := os.Stat(c.GetString("gmail.credentials_file")); err != nil {
			add("gmail.credentials_file %q is not readable: %v", c.GetString("gmail.credentials_file"), err)
		}
	case "maildir":
		if source.Maildir == "" {
			add("source.maildir is required for the maildir source")
		}
	}
	if source.RateLimit <= 0 {
		add("source.rate_limit must be greater than zero")
	}

	if c.GetString("notify.type") == "smtp" {
		if c.GetString("smtp.address") == "" || c.GetInt("smtp.port") <= 0 {
			add("smtp.address and smtp.port are required for the smtp notifier")
		}
		if c.GetString("smtp.from") == "" {
			add("smtp.from is required for the smtp notifier")
		}
	}
	if c.GetBool("notify.on_scan") && c.GetString("notify.type") == "smtp" && c.GetString("notify.channel") == "" {
		add("notify.channel must name a recipient when notify.on_scan is set")
	}

	if c.GetString("websearch.type") == "searxng" && c.GetString("websearch.url") == "" {
		add("websearch.url is required for searxng")
	}
	return problems
}

func (c *Config) usesLLM() bool {
	return c.GetString("agent.strategy") == "llm" || c.GetString("agent.synthesizer") == "llm"
}

func (c *Config) validateProvider(provider string, add func(string, ...any)) {
	switch provider {
	case "openai":
		if c.GetString("openai.api_key") == "" {
			add("openai.api_key is required for the openai provider")
		}
	case "gemini":
		if c.GetString("gemini.api_key") == "" {
			add("gemini.api_key is required for the gemini provider")
		}
	case "bedrock":
		if c.GetString("bedrock.region") == "" {
			add("bedrock.region is required for the bedrock provider")
		}
	}
}

// Summary renders the effective configuration without secrets
func (c *Config) Summary() string {
	agent := c.GetAgent()
	scan := c.GetScan()
	store := c.GetStore()
	source := c.GetSource()
	notify := c.GetNotify()
	emb := c.GetEmbedding()
	search := c.GetWebSearch()

	file := c.ConfigFile()
	if file == "" {
		file = "(defaults and environment)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Config file:       %s\n", file)
	fmt.Fprintf(&b, "Strategy:          %s (synthesizer %s)\n", agent.Strategy, agent.Synthesizer)
	fmt.Fprintf(&b, "LLM provider:      %s (%s)\n", c.GetString("llm.provider"), c.modelName())
	fmt.Fprintf(&b, "Embedding:         %s\n", emb.Provider)
	fmt.Fprintf(&b, "Default window:    %d days, %d results\n", agent.DefaultDays, agent.MaxResults)
	fmt.Fprintf(&b, "Scan:              concurrency %d, item timeout %s, %d attempts\n",
		scan.Concurrency, scan.ItemTimeout, scan.Retry.MaxAttempts)
	fmt.Fprintf(&b, "Store:             %s %s\n", store.Type, c.storeLocation())
	fmt.Fprintf(&b, "Source:            %s (raw attachments in %s)\n", source.Type, source.RawDir)
	fmt.Fprintf(&b, "Notifier:          %s (on scan: %t)\n", notify.Type, notify.OnScan)
	fmt.Fprintf(&b, "Web search:        %s\n", search.Type)
	fmt.Fprintf(&b, "OpenAI key:        %s\n", secretState(c.GetString("openai.api_key")))
	fmt.Fprintf(&b, "Gemini key:        %s\n", secretState(c.GetString("gemini.api_key")))
	fmt.Fprintf(&b, "Logging:           %s (%s)", c.GetString("logging.level"), c.GetString("logging.format"))
	return b.String()
}

func (c *Config) modelName() string {
	switch c.GetString("llm.provider") {
	case "gemini":
		return c.GetString("gemini.model_name")
	case "bedrock":
		return c.GetString("bedrock.model_id")
	}
	return c.GetString("openai.model_name")
}

func (c *Config) storeLocation() string {
	switch c.GetString("store.type") {
	case "sqlite":
		return c.GetString("store.dir")
	case "mysql":
		return "(dsn set)"
	}
	return ""
}

func secretState(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
