package main

import (
	"context"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openskills/skillagent/pkg/logger"
	"github.com/openskills/skillagent/pkg/presenter"
	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

func init() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix("SKILLAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillagent")
	viper.AddConfigPath(".")

	setDefaults()
	_ = viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault("provider", llmtypes.ProviderOpenAI)
	viper.SetDefault("max_tokens", llmtypes.DefaultMaxTokens)
	viper.SetDefault("temperature", llmtypes.DefaultTemperature)
	viper.SetDefault("retry.attempts", llmtypes.DefaultRetryConfig.Attempts)
	viper.SetDefault("retry.initial_delay", llmtypes.DefaultRetryConfig.InitialDelay)
	viper.SetDefault("retry.max_delay", llmtypes.DefaultRetryConfig.MaxDelay)
	viper.SetDefault("retry.backoff_type", llmtypes.DefaultRetryConfig.BackoffType)

	viper.SetDefault("agent.auto_select", true)
	viper.SetDefault("agent.auto_references", true)
	viper.SetDefault("agent.auto_execute", false)
	viper.SetDefault("agent.match_threshold", 0.3)

	viper.SetDefault("runner.timeout", "30s")
	viper.SetDefault("runner.max_output_size", 1<<20)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "fmt")
}

var rootCmd = &cobra.Command{
	Use:   "skillagent",
	Short: "Chat with an LLM that discovers and uses local skills",
	Long: `skillagent discovers skill bundles (SKILL.md plus references and scripts),
selects the right one for each message and discloses its instructions and
resources to the model progressively.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Configure(viper.GetString("log_level"), viper.GetString("log_format")); err != nil {
			return err
		}
		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			presenter.Warning("tracing disabled: " + err.Error())
			return nil
		}
		tracingShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if tracingShutdown != nil {
			_ = tracingShutdown(context.WithoutCancel(cmd.Context()))
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func main() {
	flags := rootCmd.PersistentFlags()
	flags.String("provider", "", "LLM provider to use (openai, anthropic or google)")
	flags.String("model", "", "LLM model to use (overrides config)")
	flags.String("base-url", "", "Base URL of an OpenAI-compatible server")
	flags.Int("max-tokens", 0, "Maximum tokens for a reply (overrides config)")
	flags.String("profile", "", "Configuration profile to apply")
	flags.StringSlice("skills-dir", nil, "Skill root directories (repeatable)")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "fmt", "Log format (fmt or json)")

	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("max_tokens", flags.Lookup("max-tokens"))
	_ = viper.BindPFlag("profile", flags.Lookup("profile"))
	_ = viper.BindPFlag("skills.paths", flags.Lookup("skills-dir"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))

	rootCmd.AddCommand(withTracing(chatCmd))
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}
