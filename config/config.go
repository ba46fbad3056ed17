package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port            string          `mapstructure:"port"`
	LogMode         string          `mapstructure:"log_mode"`
	PDFPath         string          `mapstructure:"pdf_path"`
	Provider        string          `mapstructure:"provider"`
	AIEndpoint      string          `mapstructure:"ai_endpoint"`
	Model           string          `mapstructure:"model"`
	OpenAIAPIKey    string          `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKeys   string          `mapstructure:"GEMINI_API_KEYS"`
	GeminiModel     string          `mapstructure:"gemini_model"`
	MaxMessageChars int             `mapstructure:"max_message_chars"`
	StreamTimeout   time.Duration   `mapstructure:"stream_timeout"`
	StreamBuffer    int             `mapstructure:"stream_buffer"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CostPer1KTokens float64         `mapstructure:"cost_per_1k_tokens"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	Upstream        UpstreamConfig  `mapstructure:"upstream"`
	TrustedProxies  []string        `mapstructure:"trusted_proxies"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// UpstreamConfig bounds the load placed on the completion provider across all
// clients. QPS <= 0 disables the token bucket.
type UpstreamConfig struct {
	QPS             float64       `mapstructure:"qps"`
	Burst           int           `mapstructure:"burst"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("log_mode", "development")
	v.SetDefault("pdf_path", "Accessible_Travel_Guide_Partial.pdf")
	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("ai_endpoint", "https://api.openai.com/v1")
	v.SetDefault("model", "gpt-3.5-turbo")
	v.SetDefault("gemini_model", "gemini-1.5-flash")
	v.SetDefault("max_message_chars", 4000)
	v.SetDefault("stream_timeout", 2*time.Minute)
	v.SetDefault("stream_buffer", 64)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("cost_per_1k_tokens", 0.0015)
	v.SetDefault("rate_limit.requests", 5)
	v.SetDefault("rate_limit.window", 60*time.Second)
	v.SetDefault("upstream.qps", 0)
	v.SetDefault("upstream.burst", 1)
	v.SetDefault("upstream.breaker_failures", 5)
	v.SetDefault("upstream.breaker_timeout", 30*time.Second)
	v.SetDefault("trusted_proxies", []string{})
}

// LoadConfig reads configuration from the optional YAML file at configPath,
// then from the environment. An empty configPath means defaults plus env only.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys that only ever come from the environment.
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEYS"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// GeminiKeys splits the comma separated GEMINI_API_KEYS value.
func (c *Config) GeminiKeys() []string {
	var keys []string
	for _, k := range strings.Split(c.GeminiAPIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Validate checks the settings needed to serve chat requests.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
		if c.Model == "" {
			errs = append(errs, errors.New("model is required"))
		}
	case ProviderGemini:
		if len(c.GeminiKeys()) == 0 {
			errs = append(errs, errors.New("GEMINI_API_KEYS is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("rate_limit.requests must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be positive"))
	}
	if c.StreamTimeout <= 0 {
		errs = append(errs, errors.New("stream_timeout must be positive"))
	}
	if c.StreamBuffer <= 0 {
		errs = append(errs, errors.New("stream_buffer must be positive"))
	}
	if c.MaxMessageChars <= 0 {
		errs = append(errs, errors.New("max_message_chars must be positive"))
	}
	return errors.Join(errs...)
}
