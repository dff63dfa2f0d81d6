package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries process-level settings. Values come from DIRECTORY_*
// environment variables; unset values fall back to the defaults below.
type Config struct {
	Addr        string `env:"DIRECTORY_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DIRECTORY_PG_DSN"`

	// GroupDeletePolicy is "strict" (reject deletion of groups with
	// children) or "cascade" (delete the whole subtree). Fixed per process.
	GroupDeletePolicy string `env:"DIRECTORY_GROUP_DELETE_POLICY" envDefault:"strict"`

	// HashScheme selects the credential hashing scheme for new
	// credentials: "sha256" or "argon2id". Verification accepts both.
	HashScheme string `env:"DIRECTORY_HASH_SCHEME" envDefault:"sha256"`

	HealthInterval time.Duration `env:"DIRECTORY_HEALTH_INTERVAL" envDefault:"30s"`
	ConnectTimeout time.Duration `env:"DIRECTORY_CONNECT_TIMEOUT" envDefault:"10s"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.GroupDeletePolicy {
	case "strict", "cascade":
	default:
		return Config{}, fmt.Errorf("unsupported group delete policy %q", cfg.GroupDeletePolicy)
	}
	switch cfg.HashScheme {
	case "sha256", "argon2id":
	default:
		return Config{}, fmt.Errorf("unsupported hash scheme %q", cfg.HashScheme)
	}
	return cfg, nil
}
