package config

import "time"

// Supported completion providers.
const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
)

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{ProviderDeepSeek, ProviderOpenAI, ProviderGemini}

// LLMConfig configures the completion provider used for summaries and replies.
type LLMConfig struct {
	Provider string `yaml:"provider"` // deepseek, openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// GetModel returns the configured model or the provider default.
func (c LLMConfig) GetModel() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return "deepseek-reasoner"
	}
}

// GetBaseURL returns the configured endpoint or the provider default. OpenAI and
// Gemini use their SDK defaults when empty.
func (c LLMConfig) GetBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Provider == ProviderDeepSeek || c.Provider == "" {
		return "https://api.deepseek.com"
	}
	return ""
}

// GetTimeout returns the per-request timeout as a duration.
func (c LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
