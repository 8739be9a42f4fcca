// Package auth verifies session tokens and turns them into the credential
// header the catalog expects.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/catalog-gateway/internal/secrets"
)

const (
	EchoTokenHeader    = "Echo-Token"
	ClientIDHeader     = "Client-Id"
	SessionTokenHeader = "jwt-token"
	ExposeHeaders      = "Access-Control-Expose-Headers"
)

var ErrInvalidToken = errors.New("invalid session token")

type Credential struct {
	AccessToken string
	ClientID    string
}

// Header is the value sent in the Echo-Token header.
func (c Credential) Header() string {
	return c.AccessToken + ":" + c.ClientID
}

type sessionClaims struct {
	Token struct {
		AccessToken string `json:"access_token"`
		Endpoint    string `json:"endpoint,omitempty"`
	} `json:"token"`
	jwt.RegisteredClaims
}

type cached struct {
	token   string
	cred    Credential
	expires time.Time
}

type Bridge struct {
	provider secrets.Provider
	cache    *lru.Cache[uint64, cached]
	now      func() time.Time
}

type Option func(*Bridge)

func WithCacheSize(n int) Option {
	return func(b *Bridge) {
		if n <= 0 {
			b.cache = nil
			return
		}
		c, err := lru.New[uint64, cached](n)
		if err == nil {
			b.cache = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// New wraps provider with secrets.Once so the credentials are fetched a
// single time per process.
func New(provider secrets.Provider, opts ...Option) *Bridge {
	b := &Bridge{
		provider: secrets.Once(provider),
		now:      time.Now,
	}
	WithCacheSize(4096)(b)
	for _, o := range opts {
		o(b)
	}
	return b
}

// ResolveCredential verifies sessionToken with the shared secret and returns
// the embedded access token paired with the gateway client id. Verification
// failures wrap ErrInvalidToken; secret retrieval failures do not.
func (b *Bridge) ResolveCredential(ctx context.Context, sessionToken string) (Credential, error) {
	creds, err := b.provider.Fetch(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("resolve credential: %w", err)
	}

	key := xxhash.Sum64String(sessionToken)
	if b.cache != nil {
		if hit, ok := b.cache.Get(key); ok && hit.token == sessionToken {
			if hit.expires.IsZero() || b.now().Before(hit.expires) {
				return hit.cred, nil
			}
			b.cache.Remove(key)
		}
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(sessionToken, &claims,
		func(*jwt.Token) (any, error) { return []byte(creds.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Token.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: missing access token claim", ErrInvalidToken)
	}

	cred := Credential{AccessToken: claims.Token.AccessToken, ClientID: creds.ClientID}
	if b.cache != nil {
		var exp time.Time
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}
		b.cache.Add(key, cached{token: sessionToken, cred: cred, expires: exp})
	}
	return cred, nil
}

// PropagateRenewedToken returns the expose-headers list of h with the
// session token header appended when it is not already present.
func PropagateRenewedToken(h http.Header) string {
	var out []string
	seen := map[string]bool{}
	for _, v := range h.Values(ExposeHeaders) {
		for part := range strings.SplitSeq(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[strings.ToLower(part)] {
				continue
			}
			seen[strings.ToLower(part)] = true
			out = append(out, part)
		}
	}
	if !seen[SessionTokenHeader] {
		out = append(out, SessionTokenHeader)
	}
	return strings.Join(out, ", ")
}

// TokenFromRequest returns the bearer token of r, or "" when none is sent.
func TokenFromRequest(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
