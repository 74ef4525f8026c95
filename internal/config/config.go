// SPDX-License-Identifier: MIT

// Package config provides configuration management for ssepipe: defaults,
// an optional YAML file, and SSEPIPE_* environment overrides, in that
// precedence order (env wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the effective daemon configuration.
type Config struct {
	Listen   string `yaml:"listen,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	Stream    StreamConfig    `yaml:"stream,omitempty"`
	RateLimit RateLimitConfig `yaml:"rateLimit,omitempty"`
	Breakers  BreakerConfig   `yaml:"breakers,omitempty"`
}

// StreamConfig tunes outbound stream behavior.
type StreamConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval,omitempty"`
	HeartbeatMessage  string        `yaml:"heartbeatMessage,omitempty"`
}

// RateLimitConfig tunes the ingress rate limiter.
type RateLimitConfig struct {
	Enabled       bool `yaml:"enabled,omitempty"`
	Requests      int  `yaml:"requests,omitempty"`
	WindowSeconds int  `yaml:"windowSeconds,omitempty"`
}

// BreakerConfig tunes the shared circuit-breaker registry.
type BreakerConfig struct {
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:   ":8080",
		LogLevel: "info",
		Stream: StreamConfig{
			HeartbeatInterval: 15 * time.Second,
			HeartbeatMessage:  "heartbeat",
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Requests:      600,
			WindowSeconds: 60,
		},
		Breakers: BreakerConfig{
			TTL: 10 * time.Minute,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("SSEPIPE_LISTEN"); ok {
		cfg.Listen = v
	}
	if v, ok := os.LookupEnv("SSEPIPE_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("SSEPIPE_HEARTBEAT_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.HeartbeatInterval = d
		}
	}
	if v, ok := os.LookupEnv("SSEPIPE_HEARTBEAT_MESSAGE"); ok {
		cfg.Stream.HeartbeatMessage = v
	}
	if v, ok := os.LookupEnv("SSEPIPE_RATE_LIMIT_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RateLimit.Enabled = b
		}
	}
	if v, ok := os.LookupEnv("SSEPIPE_RATE_LIMIT_REQUESTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Requests = n
		}
	}
	if v, ok := os.LookupEnv("SSEPIPE_BREAKER_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Breakers.TTL = d
		}
	}
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("config: heartbeat interval must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.Requests <= 0 {
		return fmt.Errorf("config: rate limit requests must be positive when enabled")
	}
	if c.Breakers.TTL <= 0 {
		return fmt.Errorf("config: breaker TTL must be positive")
	}
	return nil
}
