// Package config loads environment variables and provides a typed Config used
// across the service. The Discord bot token and the mapping file path are
// required; everything else has defaults so the binary runs locally with
// minimal setup.
package config

import (
	"fmt"
	"os"
)

type Config struct {
	// Discord
	DiscordToken string

	// Mapping store
	ConfigFile string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail on
// missing credentials; use Validate when starting the relay proper.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	cfg.ConfigFile = os.Getenv("CONFIG_FILE")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// Validate checks the values the relay cannot start without.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("missing required env DISCORD_TOKEN")
	}
	if c.ConfigFile == "" {
		return fmt.Errorf("missing required env CONFIG_FILE")
	}
	return nil
}
