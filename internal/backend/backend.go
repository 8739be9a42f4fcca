// Package backend is the client for the gateway's backing API, which lists
// data providers and computes access methods for a collection.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/params"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/observability"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
)

var ErrUpstream = errors.New("backing api request failed")

type AccessMethodsRequest struct {
	CollectionID       string         `json:"collection_id"`
	CollectionProvider state.Provider `json:"collection_provider"`
	Tags               state.Tags     `json:"tags"`
	OnlineAccessFlag   bool           `json:"online_access_flag"`
	OrderCapable       bool           `json:"order_capable"`

	OptionDefinitions []state.OptionDefinition `json:"option_definitions,omitempty"`
}

// AccessMethodsResponse keeps the method map in the order the API sent it.
type AccessMethodsResponse struct {
	AccessMethods        *params.Set `json:"accessMethods"`
	SelectedAccessMethod string      `json:"selectedAccessMethod,omitempty"`
}

type API interface {
	Providers(ctx context.Context, token string) ([]state.Provider, error)
	AccessMethods(ctx context.Context, token string, req AccessMethodsRequest) (AccessMethodsResponse, error)
}

type Client struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

func New(base string, client *http.Client, logger *slog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: strings.TrimRight(base, "/"), client: client, logger: logger}
}

func (c *Client) Providers(ctx context.Context, token string) ([]state.Provider, error) {
	var out []state.Provider
	if err := c.do(ctx, http.MethodGet, "/providers", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AccessMethods(ctx context.Context, token string, req AccessMethodsRequest) (AccessMethodsResponse, error) {
	body, err := json.Marshal(map[string]any{"params": req})
	if err != nil {
		return AccessMethodsResponse{}, fmt.Errorf("encode access methods request: %w", err)
	}
	var out AccessMethodsResponse
	if err := c.do(ctx, http.MethodPost, "/access_methods", token, body, &out); err != nil {
		return AccessMethodsResponse{}, err
	}
	if out.AccessMethods == nil {
		out.AccessMethods = params.NewSet()
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.IncUpstreamFailure("api", "transport")
		return fmt.Errorf("%w: %s %s: %w", ErrUpstream, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveUpstreamLatency("api", time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.IncUpstreamFailure("api", "http")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		c.logger.WarnContext(ctx, "backing api error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(snippet))
		return fmt.Errorf("%w: %s %s: status %d", ErrUpstream, method, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrUpstream, path, err)
	}
	return nil
}
