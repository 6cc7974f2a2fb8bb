package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/vellum/internal/providers"
	"github.com/jackzampolin/vellum/internal/render"
)

// Config is the vellum configuration file.
type Config struct {
	Provider   ProviderConfig   `mapstructure:"provider" json:"provider" yaml:"provider"`
	Processing ProcessingConfig `mapstructure:"processing" json:"processing" yaml:"processing"`
	Output     OutputConfig     `mapstructure:"output" json:"output" yaml:"output"`
	LogLevel   string           `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
}

// ProviderConfig selects and authenticates the vision model provider.
type ProviderConfig struct {
	Type           string `mapstructure:"type" json:"type" yaml:"type"`
	BaseURL        string `mapstructure:"base_url" json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model          string `mapstructure:"model" json:"model" yaml:"model"`
	APIKey         string `mapstructure:"api_key" json:"api_key" yaml:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ProcessingConfig tunes batching, retries and rendering.
type ProcessingConfig struct {
	MaxAttempts       int     `mapstructure:"max_attempts" json:"max_attempts" yaml:"max_attempts"`
	RetryDelaySeconds float64 `mapstructure:"retry_delay_seconds" json:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	RateLimitRPM      int     `mapstructure:"rate_limit_rpm" json:"rate_limit_rpm" yaml:"rate_limit_rpm"`
	Concurrency       int     `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency"`
	MaxTokens         int     `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	Renderer          string  `mapstructure:"renderer" json:"renderer" yaml:"renderer"`
	MaxImageDimension int     `mapstructure:"max_image_dimension" json:"max_image_dimension" yaml:"max_image_dimension"`
	MaxImageBytes     int     `mapstructure:"max_image_bytes" json:"max_image_bytes" yaml:"max_image_bytes"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Dir  string `mapstructure:"dir" json:"dir" yaml:"dir"`
	XLSX bool   `mapstructure:"xlsx" json:"xlsx" yaml:"xlsx"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Type:           providers.GroqName,
			Model:          "${GROQ_MODEL}",
			APIKey:         "${GROQ_API_KEY}",
			TimeoutSeconds: 120,
		},
		Processing: ProcessingConfig{
			MaxAttempts:       3,
			RetryDelaySeconds: 2,
			RateLimitRPM:      60,
			Concurrency:       1,
			MaxTokens:         8000,
			Renderer:          "auto",
			MaxImageDimension: render.DefaultMaxDimension,
			MaxImageBytes:     render.DefaultMaxBytes,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		LogLevel: "info",
	}
}

// Load reads configuration from defaults, an optional config file, a .env
// file in the working directory and VELLUM_* environment variables, in
// increasing order of precedence. An empty cfgFile searches ./config.yaml
// and $HOME/.vellum/config.yaml; a missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("VELLUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.vellum")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("provider.type", d.Provider.Type)
	v.SetDefault("provider.base_url", d.Provider.BaseURL)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.api_key", d.Provider.APIKey)
	v.SetDefault("provider.timeout_seconds", d.Provider.TimeoutSeconds)
	v.SetDefault("processing.max_attempts", d.Processing.MaxAttempts)
	v.SetDefault("processing.retry_delay_seconds", d.Processing.RetryDelaySeconds)
	v.SetDefault("processing.rate_limit_rpm", d.Processing.RateLimitRPM)
	v.SetDefault("processing.concurrency", d.Processing.Concurrency)
	v.SetDefault("processing.max_tokens", d.Processing.MaxTokens)
	v.SetDefault("processing.renderer", d.Processing.Renderer)
	v.SetDefault("processing.max_image_dimension", d.Processing.MaxImageDimension)
	v.SetDefault("processing.max_image_bytes", d.Processing.MaxImageBytes)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.xlsx", d.Output.XLSX)
	v.SetDefault("log_level", d.LogLevel)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// ProviderSettings converts the provider section into a providers.Config,
// resolving ${ENV_VAR} references.
func (c *Config) ProviderSettings() providers.Config {
	return providers.Config{
		Type:    c.Provider.Type,
		BaseURL: ResolveEnvVars(c.Provider.BaseURL),
		Model:   ResolveEnvVars(c.Provider.Model),
		APIKey:  ResolveEnvVars(c.Provider.APIKey),
		Timeout: time.Duration(c.Provider.TimeoutSeconds) * time.Second,
	}
}

// RetryDelay returns the base retry delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Processing.RetryDelaySeconds * float64(time.Second))
}

// EncodeOptions returns the page image limits.
func (c *Config) EncodeOptions() render.EncodeOptions {
	opts := render.DefaultEncodeOptions()
	if c.Processing.MaxImageDimension > 0 {
		opts.MaxDimension = c.Processing.MaxImageDimension
	}
	if c.Processing.MaxImageBytes > 0 {
		opts.MaxBytes = c.Processing.MaxImageBytes
	}
	return opts
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# vellum configuration
# Values use ${ENV_VAR} syntax to reference environment variables.
# Set the key in your shell or a .env file: GROQ_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
