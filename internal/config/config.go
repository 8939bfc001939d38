// Package config loads server settings from an optional TOML file.
// Everything has a working default; a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/cratesls/pkg/registry"
)

// Config holds the tunable settings of the server. Zero values mean "use
// the default"; Load never returns a Config with empty fields.
type Config struct {
	// IndexURL is the sparse index base URL.
	IndexURL string `toml:"index_url"`
	// APIURL is the registry API base URL.
	APIURL string `toml:"api_url"`
	// RateInterval is the minimum spacing between registry API requests.
	RateInterval Duration `toml:"rate_interval"`
	// RetryCooldown is how long a failed crate resolution is remembered
	// before a new attempt is allowed.
	RetryCooldown Duration `toml:"retry_cooldown"`
	// DebugAddr, when set, serves runtime counters over HTTP (for example
	// "localhost:6061"). Empty disables the debug server.
	DebugAddr string `toml:"debug_addr"`
}

// Duration is a time.Duration that unmarshals from TOML strings like
// "1s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file overrides anything:
// crates.io endpoints, the documented 1 req/s API interval and the
// standard failure cooldown.
func Default() Config {
	return Config{
		IndexURL:      registry.DefaultIndexURL,
		APIURL:        registry.DefaultAPIURL,
		RateInterval:  Duration{registry.DefaultRateInterval},
		RetryCooldown: Duration{registry.DefaultCooldown},
	}
}

// Path returns the conventional config file location,
// <user-config-dir>/cratesls/config.toml.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cratesls", "config.toml"), nil
}

// Load reads the config file at path, falling back to [Path] when path is
// empty. A missing file yields the defaults. Fields absent from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

// withDefaults fills any field the file left empty.
func (c Config) withDefaults() Config {
	def := Default()
	if c.IndexURL == "" {
		c.IndexURL = def.IndexURL
	}
	if c.APIURL == "" {
		c.APIURL = def.APIURL
	}
	if c.RateInterval.Duration <= 0 {
		c.RateInterval = def.RateInterval
	}
	if c.RetryCooldown.Duration <= 0 {
		c.RetryCooldown = def.RetryCooldown
	}
	return c
}
