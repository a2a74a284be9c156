// Package config loads the server configuration file and carries build
// metadata.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the yaml-backed server configuration.
type Config struct {
	ListenAddr           string `yaml:"listen_address"`
	Port                 string `yaml:"port"`
	RedisAddr            string `yaml:"redis_address"`
	ShutdownGraceSeconds int    `yaml:"shutdown_grace_seconds"`
}

// Load reads and parses the configuration file at path, applying defaults
// for omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.ShutdownGraceSeconds <= 0 {
		c.ShutdownGraceSeconds = 5
	}
}

// ShutdownGrace returns the grace period as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}
