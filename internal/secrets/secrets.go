// Package secrets supplies the gateway's upstream client identity and the
// secret used to verify session tokens.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

type Credentials struct {
	ClientID  string `yaml:"client_id"`
	JWTSecret string `yaml:"jwt_secret"`
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("client_id is required")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	return nil
}

type Provider interface {
	Fetch(ctx context.Context) (Credentials, error)
}

type ProviderFunc func(ctx context.Context) (Credentials, error)

func (f ProviderFunc) Fetch(ctx context.Context) (Credentials, error) { return f(ctx) }

func Static(c Credentials) Provider {
	return ProviderFunc(func(context.Context) (Credentials, error) { return c, nil })
}

// Env reads CLIENT_ID and JWT_SECRET.
func Env() Provider {
	return ProviderFunc(func(context.Context) (Credentials, error) {
		c := Credentials{
			ClientID:  os.Getenv("CLIENT_ID"),
			JWTSecret: os.Getenv("JWT_SECRET"),
		}
		if err := c.validate(); err != nil {
			return Credentials{}, fmt.Errorf("env secrets: %w", err)
		}
		return c, nil
	})
}

// File reads a YAML document with client_id and jwt_secret.
func File(path string) Provider {
	return ProviderFunc(func(context.Context) (Credentials, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return Credentials{}, fmt.Errorf("read secrets file: %w", err)
		}
		var c Credentials
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Credentials{}, fmt.Errorf("parse secrets file %s: %w", path, err)
		}
		if err := c.validate(); err != nil {
			return Credentials{}, fmt.Errorf("secrets file %s: %w", path, err)
		}
		return c, nil
	})
}

// Once wraps p so that the first successful fetch is kept for the life of the
// process. Concurrent callers share a single in-flight fetch; failures are
// not cached.
func Once(p Provider) Provider {
	return &once{p: p}
}

type once struct {
	p     Provider
	sf    singleflight.Group
	mu    sync.RWMutex
	creds *Credentials
}

func (o *once) Fetch(ctx context.Context) (Credentials, error) {
	o.mu.RLock()
	c := o.creds
	o.mu.RUnlock()
	if c != nil {
		return *c, nil
	}

	v, err, _ := o.sf.Do("credentials", func() (any, error) {
		got, err := o.p.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.creds = &got
		o.mu.Unlock()
		return got, nil
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("fetch credentials: %w", err)
	}
	creds, _ := v.(Credentials)
	return creds, nil
}
