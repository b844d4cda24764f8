package llm

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

func TestConfigFromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("provider", "anthropic")
	viper.Set("model", "test-model")
	viper.Set("max_tokens", 1234)
	viper.Set("temperature", 0)

	config, err := ConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", config.Provider)
	assert.Equal(t, "test-model", config.Model)
	assert.Equal(t, 1234, config.MaxTokens)
	assert.Zero(t, config.Temperature)
	assert.Equal(t, llmtypes.DefaultRetryConfig, config.Retry)
}

func TestConfigFromViperDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	config, err := ConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, llmtypes.ProviderOpenAI, config.Provider)
	assert.Empty(t, config.Model)
	assert.Equal(t, llmtypes.DefaultMaxTokens, config.MaxTokens)
	assert.InDelta(t, llmtypes.DefaultTemperature, config.Temperature, 1e-9)
}

func TestConfigFromViperProfile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("provider", "openai")
	viper.Set("model", "gpt-4o-mini")
	viper.Set("max_tokens", 2000)
	viper.Set("aliases", map[string]any{"sonnet": "claude-sonnet-4-5"})
	viper.Set("profiles", map[string]any{
		"claude": map[string]any{
			"provider": "anthropic",
			"model":    "sonnet",
			"retry":    map[string]any{"attempts": "5"},
		},
	})
	viper.Set("profile", "claude")

	config, err := ConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", config.Provider)
	assert.Equal(t, "claude-sonnet-4-5", config.Model)
	assert.Equal(t, 2000, config.MaxTokens)
	assert.Equal(t, 5, config.Retry.Attempts)
}

func TestConfigFromViperUnknownProfile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("profile", "missing")

	_, err := ConfigFromViper()
	assert.ErrorContains(t, err, `profile "missing" is not defined`)
}

func TestResolveModelAlias(t *testing.T) {
	aliases := map[string]string{"fast": "gpt-4o-mini"}
	assert.Equal(t, "gpt-4o-mini", resolveModelAlias("fast", aliases))
	assert.Equal(t, "other", resolveModelAlias("other", aliases))
	assert.Equal(t, "x", resolveModelAlias("x", nil))
}

func TestNewClient(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	client, err := NewClient(context.Background(), llmtypes.Config{
		Provider: "OpenAI",
		BaseURL:  "http://localhost:1234/v1",
		Retry:    llmtypes.DefaultRetryConfig,
	})
	require.NoError(t, err)
	assert.IsType(t, &retryingClient{}, client)

	_, err = NewClient(context.Background(), llmtypes.Config{Provider: "anthropic"})
	assert.ErrorContains(t, err, "failed to create anthropic client")

	_, err = NewClient(context.Background(), llmtypes.Config{Provider: "mystery"})
	assert.ErrorContains(t, err, `unsupported provider "mystery"`)
}
