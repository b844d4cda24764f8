package llm

// Provider names accepted by the client factory.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// Config holds the transport configuration. It is decoded from the root of
// the viper configuration.
type Config struct {
	Provider    string  `mapstructure:"provider" json:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" json:"model" yaml:"model"`
	BaseURL     string  `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	APIKey      string  `mapstructure:"api_key" json:"-" yaml:"-"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" json:"temperature" yaml:"temperature"`

	Retry  RetryConfig   `mapstructure:"retry" json:"retry" yaml:"retry"`
	Google *GoogleConfig `mapstructure:"google" json:"google,omitempty" yaml:"google,omitempty"`

	// Profiles are partial configs applied over the base when selected with
	// the "profile" key.
	Profiles map[string]map[string]any `mapstructure:"profiles" json:"profiles,omitempty" yaml:"profiles,omitempty"`
	// Aliases map short model names to full model identifiers.
	Aliases map[string]string `mapstructure:"aliases" json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// GoogleConfig selects the GenAI backend.
type GoogleConfig struct {
	// Backend is "gemini" or "vertexai". Empty means auto-detect.
	Backend  string `mapstructure:"backend" json:"backend" yaml:"backend"`
	Project  string `mapstructure:"project" json:"project" yaml:"project"`
	Location string `mapstructure:"location" json:"location" yaml:"location"`
}

// RetryConfig controls transport retries. Delays are in milliseconds.
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts" json:"attempts" yaml:"attempts"`
	InitialDelay int    `mapstructure:"initial_delay" json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     int    `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay"`
	BackoffType  string `mapstructure:"backoff_type" json:"backoff_type" yaml:"backoff_type"`
}

// DefaultRetryConfig is applied when no retry attempts are configured.
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 1000,
	MaxDelay:     10000,
	BackoffType:  "exponential",
}

// Default generation settings.
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
)

// RetryClassifier is implemented by clients that can tell transient
// failures apart from permanent ones.
type RetryClassifier interface {
	IsRetryable(err error) bool
}
