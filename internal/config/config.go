package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "PKS"
	defaultAPIBaseURL     = "http://localhost:8000/api/v1"
	defaultAPITimeout     = 10 * time.Second
	defaultStatePath      = "pks-state.db"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	defaultPageSize       = 20
	defaultFakeAddress    = "127.0.0.1:8000"
	defaultFakeTokenTTL   = 30 * time.Minute
	defaultRateLimitBurst = 5
)

// AppConfig captures runtime configuration for the client and its CLI.
type AppConfig struct {
	APIBaseURL        string
	APITimeout        time.Duration
	RateLimitRPS      float64
	RateLimitBurst    int
	StatePath         string
	LogLevel          string
	LogFormat         string
	PageSize          int
	MetricsTextfile   string
	FakeAddress       string
	FakeSigningSecret string
	FakeTokenTTL      time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("api.base_url", defaultAPIBaseURL)
	configViper.SetDefault("api.timeout", defaultAPITimeout)
	configViper.SetDefault("api.rate_limit_rps", 0)
	configViper.SetDefault("api.rate_limit_burst", defaultRateLimitBurst)
	configViper.SetDefault("state.path", defaultStatePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("pagination.page_size", defaultPageSize)
	configViper.SetDefault("metrics.textfile", "")
	configViper.SetDefault("fake.address", defaultFakeAddress)
	configViper.SetDefault("fake.token_ttl", defaultFakeTokenTTL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		APIBaseURL:        strings.TrimRight(strings.TrimSpace(configViper.GetString("api.base_url")), "/"),
		APITimeout:        configViper.GetDuration("api.timeout"),
		RateLimitRPS:      configViper.GetFloat64("api.rate_limit_rps"),
		RateLimitBurst:    configViper.GetInt("api.rate_limit_burst"),
		StatePath:         configViper.GetString("state.path"),
		LogLevel:          configViper.GetString("log.level"),
		LogFormat:         configViper.GetString("log.format"),
		PageSize:          configViper.GetInt("pagination.page_size"),
		MetricsTextfile:   strings.TrimSpace(configViper.GetString("metrics.textfile")),
		FakeAddress:       configViper.GetString("fake.address"),
		FakeSigningSecret: configViper.GetString("fake.signing_secret"),
		FakeTokenTTL:      configViper.GetDuration("fake.token_ttl"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL: %q", c.APIBaseURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("api.rate_limit_rps must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("api.rate_limit_burst must be positive when rate limiting is enabled")
	}
	if strings.TrimSpace(c.StatePath) == "" {
		return fmt.Errorf("state.path is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("pagination.page_size must be positive")
	}
	return nil
}

// ValidateFake checks the settings required by the fake API server.
func (c AppConfig) ValidateFake() error {
	if strings.TrimSpace(c.FakeAddress) == "" {
		return fmt.Errorf("fake.address is required")
	}
	if strings.TrimSpace(c.FakeSigningSecret) == "" {
		return fmt.Errorf("fake.signing_secret is required")
	}
	if c.FakeTokenTTL <= 0 {
		return fmt.Errorf("fake.token_ttl must be positive")
	}
	return nil
}
