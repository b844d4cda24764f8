// Package llm builds chat clients for the configured provider.
package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/openskills/skillagent/pkg/llm/anthropic"
	"github.com/openskills/skillagent/pkg/llm/google"
	"github.com/openskills/skillagent/pkg/llm/openai"
	"github.com/openskills/skillagent/pkg/logger"
	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

// NewClient returns a client for config.Provider wrapped with the retry
// policy from config.Retry.
func NewClient(ctx context.Context, config llmtypes.Config) (llmtypes.Client, error) {
	var (
		client llmtypes.Client
		err    error
	)

	provider := strings.ToLower(strings.TrimSpace(config.Provider))
	switch provider {
	case "", llmtypes.ProviderOpenAI:
		client, err = openai.New(config)
	case llmtypes.ProviderAnthropic:
		client, err = anthropic.New(config)
	case llmtypes.ProviderGoogle:
		client, err = google.New(ctx, config)
	default:
		return nil, errors.Errorf("unsupported provider %q", config.Provider)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s client", providerName(provider))
	}

	logger.G(ctx).WithField("provider", providerName(provider)).WithField("model", config.Model).Debug("created chat client")
	return WithRetry(client, config.Retry), nil
}

func providerName(provider string) string {
	if provider == "" {
		return llmtypes.ProviderOpenAI
	}
	return provider
}
