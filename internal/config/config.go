package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"chatharvest/internal/browser"
	"chatharvest/internal/harvest"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "chatharvest.yaml"

// Valid assist modes.
const (
	ModeSummarize = "summarize"
	ModeReply     = "reply"
	ModeBoth      = "both"
)

// Config holds all chatharvest configuration.
type Config struct {
	// Harvest loop
	Harvest HarvestConfig `yaml:"harvest"`

	// Chrome connection and chat page targeting
	Browser browser.Config `yaml:"browser"`

	// Completion provider
	LLM LLMConfig `yaml:"llm"`

	// Summary / reply behaviour
	Assist AssistConfig `yaml:"assist"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Harvest: HarvestConfig{
			TargetCount:       harvest.DefaultTargetCount,
			WheelDistance:     harvest.DefaultWheelDistance,
			SettlePause:       "200ms",
			MaxPasses:         harvest.DefaultMaxPasses,
			NoProgressLimit:   harvest.DefaultNoProgressLimit,
			AffordanceTimeout: "300ms",
		},

		Browser: browser.DefaultConfig(),

		// Model and BaseURL stay empty so the provider defaults apply.
		LLM: LLMConfig{
			Provider: ProviderDeepSeek,
			Timeout:  "60s",
		},

		Assist: AssistConfig{
			Mode:        ModeBoth,
			UserID:      "me",
			ReplyWindow: 20,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM API key from environment (later entries win)
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = ProviderDeepSeek
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderOpenAI
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderGemini
	}

	if url := os.Getenv("CHATHARVEST_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
}

// Validate validates the harvest and assist settings.
func (c *Config) Validate() error {
	if err := c.Harvest.Request().Validate(); err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	if c.Harvest.NoProgressLimit < 0 {
		return fmt.Errorf("harvest: no_progress_limit must not be negative")
	}
	switch c.Assist.Mode {
	case ModeSummarize, ModeReply, ModeBoth:
	default:
		return fmt.Errorf("invalid assist mode: %s (valid: summarize, reply, both)", c.Assist.Mode)
	}
	return nil
}

// ValidateLLM validates the completion provider settings.
func (c *Config) ValidateLLM() error {
	if !slices.Contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set DEEPSEEK_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY)")
	}
	return nil
}
