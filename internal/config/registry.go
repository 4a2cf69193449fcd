package config

import (
	"github.com/danmuck/metasync/internal/auth"
	"github.com/danmuck/metasync/internal/registry"
)

// RegistryConfig maps the settings onto the registry client configuration.
// The token source is chosen here so commands share one policy: a token
// file wins over everything, and an empty source means anonymous requests
// against a local test registry.
func (c Client) RegistryConfig() registry.Config {
	var tokens auth.TokenSource
	if c.TokenFile != "" {
		tokens = auth.FileToken{Path: c.TokenFile}
	}
	return registry.Config{
		BaseURL:            c.Server,
		Tokens:             tokens,
		CAFile:             c.CAFile,
		InsecureSkipVerify: c.InsecureSkipVerify,
		RequestTimeout:     c.RequestTimeout(),
		MaxRetries:         c.MaxRetries,
	}
}
