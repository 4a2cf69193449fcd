// Package auth provides the token capability used to sign registry
// requests.
//
// It intentionally avoids deciding how tokens are minted; production
// deployments plug in a TOTP-backed source.
package auth

import (
	"errors"
	"os"
	"strings"
)

var ErrNoToken = errors.New("auth: no token available")

// TokenSource yields the bearer token for the next registry request.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a source for a single fixed token. It is intended only
// for development and proofs of concept.
type StaticToken struct {
	Value string
}

func (s StaticToken) Token() (string, error) {
	if s.Value == "" {
		return "", ErrNoToken
	}
	return s.Value, nil
}

// FileToken re-reads a token file on every request so an external agent
// may rotate the token while a long sync is running.
type FileToken struct {
	Path string
}

func (f FileToken) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// FuncToken adapts a function into a TokenSource.
type FuncToken func() (string, error)

func (f FuncToken) Token() (string, error) {
	return f()
}
