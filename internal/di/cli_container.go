package di

import (
	"github.com/mikey/inbox-agent/internal/config"
)

// CLIFlags contains the command line flags shared by every command. Empty
// values leave the configured setting untouched.
type CLIFlags struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool

	// Provider and strategy flags
	Provider    string
	Strategy    string
	Synthesizer string

	// Source and store flags
	Source  string
	Maildir string
	Store   string
}

// LoadConfig reads the configuration and applies the command line overrides
func LoadConfig(flags *CLIFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	ApplyFlags(cfg, flags)
	return cfg, nil
}

// ApplyFlags copies the set flags onto cfg
func ApplyFlags(cfg *config.Config, flags *CLIFlags) {
	if flags.Verbose {
		cfg.Set("logging.level", "debug")
	}
	if flags.JSONLog {
		cfg.Set("logging.format", "json")
	}

	overrides := map[string]string{
		"llm.provider":      flags.Provider,
		"agent.strategy":    flags.Strategy,
		"agent.synthesizer": flags.Synthesizer,
		"source.type":       flags.Source,
		"source.maildir":    flags.Maildir,
		"store.type":        flags.Store,
	}
	for key, value := range overrides {
		if value != "" {
			cfg.Set(key, value)
		}
	}
	if flags.Maildir != "" && flags.Source == "" {
		cfg.Set("source.type", "maildir")
	}
}
