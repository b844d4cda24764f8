package llm

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

// ConfigFromViper decodes the transport configuration from viper, applies
// the active profile and resolves model aliases.
func ConfigFromViper() (llmtypes.Config, error) {
	config, err := loadViperConfig()
	if err != nil {
		return config, err
	}

	if config.Profiles != nil {
		delete(config.Profiles, "default")
	}

	if name := activeProfile(); name != "" {
		profile, ok := config.Profiles[name]
		if !ok {
			return config, errors.Errorf("profile %q is not defined", name)
		}
		if err := applyProfile(&config, profile); err != nil {
			return config, err
		}
	}

	config.Model = resolveModelAlias(config.Model, config.Aliases)
	if config.Provider == "" {
		config.Provider = llmtypes.ProviderOpenAI
	}
	return config, nil
}

func loadViperConfig() (llmtypes.Config, error) {
	var config llmtypes.Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if !viper.IsSet("temperature") {
		config.Temperature = llmtypes.DefaultTemperature
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = llmtypes.DefaultMaxTokens
	}
	if config.Retry.Attempts == 0 {
		config.Retry = llmtypes.DefaultRetryConfig
	}
	return config, nil
}

func activeProfile() string {
	profile := viper.GetString("profile")
	if profile == "default" {
		return ""
	}
	return profile
}

func applyProfile(config *llmtypes.Config, profile map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}
	if err := decoder.Decode(profile); err != nil {
		return errors.Wrap(err, "failed to apply profile configuration")
	}
	return nil
}

func resolveModelAlias(model string, aliases map[string]string) string {
	if full, ok := aliases[model]; ok && full != "" {
		return full
	}
	return model
}
