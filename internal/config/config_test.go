package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "LLM_PROVIDER", "AZURE_OPENAI_DEPLOYMENT", "LLM_TEMPERATURE", "LLM_MAX_TOKENS", "STORE_BACKEND", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Equal(t, "azure", cfg.LLMProvider)
	assert.Equal(t, "gpt-4", cfg.AzureOpenAIDeployment)
	assert.InDelta(t, 0.7, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, 1000, cfg.LLMMaxTokens)
	assert.Equal(t, "json", cfg.StoreBackend)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("DATA_DIR", "/var/lib/chat")
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.InDelta(t, 0.2, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 1000, cfg.LLMMaxTokens)
	assert.Equal(t, filepath.Join("/var/lib/chat", "conversations.bolt"), cfg.StorePath())
}
