package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the config for invalid or missing values. Returns a
// multi-error with all problems found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.ListenAddr == "" {
		errs = append(errs, "listen_addr is required")
	}
	if cfg.RateLimitRPS < 0 {
		errs = append(errs, "rate_limit_rps must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		errs = append(errs, "rate_limit_burst must be >= 0")
	}
	if cfg.Resilience.CircuitBreaker.FailureThreshold < 0 {
		errs = append(errs, "resilience.circuit_breaker.failure_threshold must be >= 0")
	}
	if cfg.Resilience.Retry.MaxAttempts < 0 {
		errs = append(errs, "resilience.retry.max_attempts must be >= 0")
	}
	if cfg.Resilience.Retry.ExpBase != 0 && cfg.Resilience.Retry.ExpBase <= 1 {
		errs = append(errs, "resilience.retry.exp_base must be > 1")
	}

	seen := make(map[string]bool, len(cfg.Upstreams))
	for i, u := range cfg.Upstreams {
		if u.Name == "" {
			errs = append(errs, fmt.Sprintf("upstreams[%d].name is required", i))
			continue
		}
		if seen[u.Name] {
			errs = append(errs, fmt.Sprintf("upstreams[%d].name %q duplicates an earlier entry", i, u.Name))
		}
		seen[u.Name] = true

		switch u.Kind {
		case "openai", "vllm", "mock":
		default:
			errs = append(errs, fmt.Sprintf("upstreams[%d] (%s): kind must be one of openai, vllm, mock", i, u.Name))
		}
		if u.Kind != "mock" && u.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("upstreams[%d] (%s): base_url is required", i, u.Name))
		}
		if u.Weight < 0 {
			errs = append(errs, fmt.Sprintf("upstreams[%d] (%s): weight must be >= 0", i, u.Name))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}
