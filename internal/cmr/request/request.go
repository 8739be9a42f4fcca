// Package request turns client request bodies into catalog search URLs.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/params"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/querystring"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/resources"
)

var ErrInvalidBody = errors.New("invalid request body")

type Input struct {
	Body           []byte
	Path           string
	PermittedKeys  []string
	NonIndexedKeys []string
}

// ForResource fills path and allow-lists from r.
func ForResource(body []byte, r resources.Resource) Input {
	return Input{
		Body:           body,
		Path:           r.Path,
		PermittedKeys:  r.PermittedKeys,
		NonIndexedKeys: r.NonIndexedKeys,
	}
}

type Builder struct {
	host   string
	logger *slog.Logger
}

func New(host string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{host: strings.TrimRight(host, "/"), logger: logger}
}

func (b *Builder) Host() string { return b.host }

// Build parses the JSON body, filters its params against the allow-list and
// returns host+path+"?"+query. An unparseable body is returned as an error
// wrapping ErrInvalidBody.
func (b *Builder) Build(ctx context.Context, in Input) (string, error) {
	p, err := ParseBody(in.Body)
	if err != nil {
		return "", err
	}
	return b.BuildParams(ctx, in.Path, p, in.PermittedKeys, in.NonIndexedKeys), nil
}

func (b *Builder) BuildParams(ctx context.Context, path string, p *params.Set, permitted, nonIndexed []string) string {
	b.logger.DebugContext(ctx, "parameters received", "keys", strings.Join(p.Keys(), ","))

	filtered := params.Pick(p, permitted)

	b.logger.DebugContext(ctx, "filtered parameters", "keys", strings.Join(filtered.Keys(), ","))

	url := b.host + path + "?" + querystring.Encode(filtered, nonIndexed)

	b.logger.DebugContext(ctx, "catalog query", "url", url)
	return url
}

// ParseBody extracts the "params" object of a request body, defaulting to an
// empty set when absent.
func ParseBody(raw []byte) (*params.Set, error) {
	outer, err := params.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	v, ok := outer.Get("params")
	if !ok || v.Kind() != params.KindObject {
		return params.NewSet(), nil
	}
	return v.Object(), nil
}
