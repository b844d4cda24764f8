package agent

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/openskills/skillagent/pkg/llm"
	"github.com/openskills/skillagent/pkg/logger"
	"github.com/openskills/skillagent/pkg/matcher"
	"github.com/openskills/skillagent/pkg/runner"
	"github.com/openskills/skillagent/pkg/skills"
	"github.com/openskills/skillagent/pkg/sysprompt"
)

// Config is the "agent" configuration section.
type Config struct {
	BaseSystemPrompt string  `mapstructure:"base_system_prompt" json:"base_system_prompt" yaml:"base_system_prompt"`
	AutoSelect       bool    `mapstructure:"auto_select" json:"auto_select" yaml:"auto_select"`
	AutoReferences   bool    `mapstructure:"auto_references" json:"auto_references" yaml:"auto_references"`
	AutoExecute      bool    `mapstructure:"auto_execute" json:"auto_execute" yaml:"auto_execute"`
	MatchThreshold   float64 `mapstructure:"match_threshold" json:"match_threshold" yaml:"match_threshold"`
	TemplatesDir     string  `mapstructure:"templates_dir" json:"templates_dir" yaml:"templates_dir"`
}

// SkillsConfig is the "skills" configuration section.
type SkillsConfig struct {
	Paths   []string `mapstructure:"paths" json:"paths" yaml:"paths"`
	Allowed []string `mapstructure:"allowed" json:"allowed" yaml:"allowed"`
}

// DefaultConfig returns the agent defaults.
func DefaultConfig() Config {
	return Config{
		AutoSelect:     true,
		AutoReferences: true,
		MatchThreshold: matcher.DefaultMinScore,
	}
}

// ConfigFromViper decodes the agent section over the defaults.
func ConfigFromViper() (Config, error) {
	cfg := DefaultConfig()
	if err := viper.UnmarshalKey("agent", &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to decode agent configuration")
	}
	return cfg, nil
}

// Options converts the configuration to agent options.
func (c Config) Options() ([]Option, error) {
	opts := []Option{
		WithBaseSystemPrompt(c.BaseSystemPrompt),
		WithAutoSelect(c.AutoSelect),
		WithAutoReferences(c.AutoReferences),
		WithAutoExecute(c.AutoExecute),
		WithMatchThreshold(c.MatchThreshold),
	}
	if c.TemplatesDir != "" {
		renderer, err := sysprompt.RendererFromDir(c.TemplatesDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load prompt templates")
		}
		opts = append(opts, WithRenderer(renderer))
	}
	return opts, nil
}

// RepositoryFromViper builds a skill repository from the "skills" and
// "runner" sections.
func RepositoryFromViper() (*skills.Repository, error) {
	var sc SkillsConfig
	if err := viper.UnmarshalKey("skills", &sc); err != nil {
		return nil, errors.Wrap(err, "failed to decode skills configuration")
	}
	// Section decoding misses flag and env values bound to nested keys.
	if paths := viper.GetStringSlice("skills.paths"); len(paths) > 0 {
		sc.Paths = paths
	}
	rc := runner.Config{}
	if err := viper.UnmarshalKey("runner", &rc); err != nil {
		return nil, errors.Wrap(err, "failed to decode runner configuration")
	}

	opts := []skills.Option{
		skills.WithScriptRunner(runner.New(runner.WithConfig(rc))),
		skills.WithAllowlist(sc.Allowed...),
	}
	if len(sc.Paths) > 0 {
		opts = append(opts, skills.WithSkillDirs(sc.Paths...))
	} else {
		opts = append(opts, skills.WithDefaultDirs())
	}
	return skills.NewRepository(opts...)
}

// NewFromConfig builds the repository, chat client and agent from the
// viper configuration and discovers skills. extra options are applied after
// the configured ones.
func NewFromConfig(ctx context.Context, extra ...Option) (*Agent, error) {
	repo, err := RepositoryFromViper()
	if err != nil {
		return nil, err
	}
	return NewFromConfigWithRepository(ctx, repo, extra...)
}

// NewFromConfigWithRepository is NewFromConfig over an existing repository.
func NewFromConfigWithRepository(ctx context.Context, repo *skills.Repository, extra ...Option) (*Agent, error) {
	llmConfig, err := llm.ConfigFromViper()
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, llmConfig)
	if err != nil {
		return nil, err
	}

	cfg, err := ConfigFromViper()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithTemperature(llmConfig.Temperature), WithMaxTokens(llmConfig.MaxTokens))
	opts = append(opts, extra...)

	a, err := New(repo, client, opts...)
	if err != nil {
		return nil, err
	}
	count, err := a.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	logger.G(ctx).WithField("skills", count).WithField("provider", llmConfig.Provider).Debug("agent ready")
	if diag := repo.Diagnostics(); diag != nil {
		logger.G(ctx).WithError(diag).Warn("some skills could not be loaded")
	}
	return a, nil
}
