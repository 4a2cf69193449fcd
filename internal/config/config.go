// Package config loads the client settings file and converts it into the
// runtime configuration of the registry client. Command line flags take
// precedence over file values; the file is optional.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Client is the operator-facing settings surface of a sync run.
type Client struct {
	Server             string `toml:"server"`
	TokenFile          string `toml:"token_file"`
	CAFile             string `toml:"ca_file"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`

	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MaxRetries            uint64 `toml:"max_retries"`

	Definitions string `toml:"definitions"`
	MetricsAddr string `toml:"metrics_addr"`
	Jobs        int    `toml:"jobs"`
	LogLevel    string `toml:"log_level"`
}

func Default() Client {
	return Client{
		Definitions: "definitions",
		Jobs:        1,
	}
}

// Load reads a settings file over the defaults.
func Load(path string) (Client, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Client{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return cfg.Normalize(), nil
}

// Normalize clamps values the rest of the pipeline assumes to be sane.
func (c Client) Normalize() Client {
	if c.Jobs < 1 {
		c.Jobs = 1
	}
	if c.Definitions == "" {
		c.Definitions = "definitions"
	}
	return c
}

// RequestTimeout converts the settings value; zero defers to the client's
// own default.
func (c Client) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
