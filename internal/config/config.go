// Package config loads, validates, and hot-reloads the gateway's
// configuration document.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// UpstreamConfig describes one upstream back-end.
type UpstreamConfig struct {
	Name             string  `yaml:"name"`
	Kind             string  `yaml:"kind"` // openai, vllm, mock
	BaseURL          string  `yaml:"base_url"`
	CredentialSource string  `yaml:"credential_source"`
	HealthURL        string  `yaml:"health_url"`
	Weight           float64 `yaml:"weight"`
	Enabled          bool    `yaml:"enabled"`
	TimeoutSeconds   float64 `yaml:"timeout"`
	MaxRetries       int     `yaml:"max_retries"`
}

// Timeout returns the upstream's request timeout as a time.Duration.
func (u UpstreamConfig) Timeout() time.Duration {
	if u.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(u.TimeoutSeconds * float64(time.Second))
}

// CircuitBreakerConfig tunes a per-upstream circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int     `yaml:"failure_threshold"`
	RecoveryTimeoutS float64 `yaml:"recovery_timeout"`
}

// RecoveryTimeout returns the breaker's recovery timeout as a time.Duration.
func (c CircuitBreakerConfig) RecoveryTimeout() time.Duration {
	if c.RecoveryTimeoutS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RecoveryTimeoutS * float64(time.Second))
}

// RetryConfig tunes a per-upstream retry handler.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	MinWaitS    float64 `yaml:"min_wait"`
	MaxWaitS    float64 `yaml:"max_wait"`
	ExpBase     float64 `yaml:"exp_base"`
	Jitter      bool    `yaml:"jitter"`
}

// MinWait returns the retry handler's minimum backoff as a time.Duration.
func (r RetryConfig) MinWait() time.Duration {
	if r.MinWaitS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(r.MinWaitS * float64(time.Second))
}

// MaxWait returns the retry handler's backoff cap as a time.Duration.
func (r RetryConfig) MaxWait() time.Duration {
	if r.MaxWaitS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(r.MaxWaitS * float64(time.Second))
}

// HealthConfig tunes the background health cache.
type HealthConfig struct {
	CheckIntervalS float64 `yaml:"check_interval"`
	TimeoutS       float64 `yaml:"timeout"`
}

// CheckInterval returns the health cache's refresh interval.
func (h HealthConfig) CheckInterval() time.Duration {
	if h.CheckIntervalS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.CheckIntervalS * float64(time.Second))
}

// Timeout returns the health cache's per-check timeout.
func (h HealthConfig) Timeout() time.Duration {
	if h.TimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(h.TimeoutS * float64(time.Second))
}

// ResilienceConfig groups the breaker/retry tuning blocks.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
}

// Config holds the gateway's full configuration document.
type Config struct {
	ListenAddr     string           `yaml:"listen_addr"`
	LogFormat      string           `yaml:"log_format"`
	LogBufferSize  int              `yaml:"log_buffer_size"`
	CORSOrigins    []string         `yaml:"cors_origins"`
	RateLimitRPS   float64          `yaml:"rate_limit_rps"`
	RateLimitBurst int              `yaml:"rate_limit_burst"`
	MetricsEnabled bool             `yaml:"metrics_enabled"`
	Health         HealthConfig     `yaml:"health"`
	Resilience     ResilienceConfig `yaml:"resilience"`
	Upstreams      []UpstreamConfig `yaml:"upstreams"`
}

// Load reads configuration from the file named by GATEWAY_CONFIG_PATH
// (default config.yaml) and overrides scalar fields from GATEWAY_*
// environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("GATEWAY_CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

// LoadFrom reads configuration from an explicit path, used by the config
// watcher to build a fresh snapshot on reload.
func LoadFrom(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	overrideFromEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ListenAddr:    ":8080",
		LogFormat:     "json",
		LogBufferSize: 10000,
		Health: HealthConfig{
			CheckIntervalS: 30,
			TimeoutS:       5,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				RecoveryTimeoutS: 30,
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				MinWaitS:    0.1,
				MaxWaitS:    2,
				ExpBase:     2,
				Jitter:      true,
			},
		},
	}
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("GATEWAY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("GATEWAY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("GATEWAY_LOG_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LogBufferSize = n
		}
	}
	if v := os.Getenv("GATEWAY_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("GATEWAY_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("GATEWAY_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("GATEWAY_METRICS_ENABLED"); v != "" {
		cfg.MetricsEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GATEWAY_CB_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resilience.CircuitBreaker.FailureThreshold = n
		}
	}
	if v := os.Getenv("GATEWAY_CB_RECOVERY_TIMEOUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Resilience.CircuitBreaker.RecoveryTimeoutS = f
		}
	}
	if v := os.Getenv("GATEWAY_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resilience.Retry.MaxAttempts = n
		}
	}
}
