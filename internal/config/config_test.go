package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearLLMEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("CHATHARVEST_DEBUGGER_URL", "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 100, cfg.Harvest.TargetCount)
	assert.Equal(t, 30, cfg.Harvest.WheelDistance)
	assert.Equal(t, 200*time.Millisecond, cfg.Harvest.GetSettlePause())
	assert.Equal(t, 300*time.Millisecond, cfg.Harvest.GetAffordanceTimeout())
	assert.Equal(t, 3, cfg.Harvest.NoProgressLimit)
	assert.Equal(t, ProviderDeepSeek, cfg.LLM.Provider)
	assert.Equal(t, 20, cfg.Assist.ReplyWindow)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearLLMEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "chatharvest.yaml")

	cfg := DefaultConfig()
	cfg.Harvest.TargetCount = 40
	cfg.Harvest.SettlePause = "1s"
	cfg.Browser.PageURLPattern = "wx\\.qq\\.com"
	cfg.LLM.Provider = ProviderGemini
	cfg.LLM.APIKey = "g-test"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40, loaded.Harvest.TargetCount)
	assert.Equal(t, time.Second, loaded.Harvest.GetSettlePause())
	assert.Equal(t, "wx\\.qq\\.com", loaded.Browser.PageURLPattern)
	assert.Equal(t, ProviderGemini, loaded.LLM.Provider)
	assert.Equal(t, "g-test", loaded.LLM.APIKey)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "ds-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Harvest, cfg.Harvest)
	assert.Equal(t, "ds-key", cfg.LLM.APIKey, "env overrides apply without a file")
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearLLMEnv(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harvest:\n  max_passes: 5\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Harvest.MaxPasses)
	assert.Equal(t, 100, cfg.Harvest.TargetCount)
	assert.Equal(t, "Messages", cfg.Browser.ListName)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harvest: [\n"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestHarvestConfig_Conversions(t *testing.T) {
	hc := HarvestConfig{TargetCount: 7, WheelDistance: 5, SettlePause: "bogus", MaxPasses: 9, NoProgressLimit: 2, AffordanceTimeout: "1s"}
	req := hc.Request()
	assert.Equal(t, 7, req.TargetCount)
	assert.Equal(t, 5, req.WheelDistance)
	assert.Equal(t, 200*time.Millisecond, req.SettlePause)
	assert.Equal(t, 9, req.MaxPasses)

	opts := hc.Options()
	assert.Equal(t, 2, opts.NoProgressLimit)
	assert.Equal(t, time.Second, opts.AffordanceTimeout)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Harvest.TargetCount = 0
	assert.ErrorContains(t, cfg.Validate(), "harvest")

	cfg = DefaultConfig()
	cfg.Assist.Mode = "chat"
	assert.ErrorContains(t, cfg.Validate(), "invalid assist mode")

	cfg = DefaultConfig()
	cfg.Harvest.NoProgressLimit = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateLLM(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorContains(t, cfg.ValidateLLM(), "API key")

	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.ValidateLLM())

	cfg.LLM.Provider = "zai"
	assert.ErrorContains(t, cfg.ValidateLLM(), "invalid LLM provider")
}

func TestLLMConfig_Defaults(t *testing.T) {
	assert.Equal(t, "deepseek-reasoner", LLMConfig{Provider: ProviderDeepSeek}.GetModel())
	assert.Equal(t, "gpt-4o-mini", LLMConfig{Provider: ProviderOpenAI}.GetModel())
	assert.Equal(t, "gemini-2.5-flash", LLMConfig{Provider: ProviderGemini}.GetModel())
	assert.Equal(t, "custom", LLMConfig{Provider: ProviderGemini, Model: "custom"}.GetModel())

	assert.Equal(t, "https://api.deepseek.com", LLMConfig{Provider: ProviderDeepSeek}.GetBaseURL())
	assert.Empty(t, LLMConfig{Provider: ProviderOpenAI}.GetBaseURL())

	assert.Equal(t, 60*time.Second, LLMConfig{}.GetTimeout())
	assert.Equal(t, 5*time.Second, LLMConfig{Timeout: "5s"}.GetTimeout())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	var lc LoggingConfig
	assert.True(t, lc.IsCategoryEnabled("harvest"))
	lc.Categories = map[string]bool{"browser": false}
	assert.False(t, lc.IsCategoryEnabled("browser"))
	assert.True(t, lc.IsCategoryEnabled("harvest"))
}
