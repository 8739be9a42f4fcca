package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mohammed-shakir/catalog-gateway/internal/secrets"
)

const testSecret = "shared-secret"

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newBridge(opts ...Option) *Bridge {
	return New(secrets.Static(secrets.Credentials{ClientID: "edsc", JWTSecret: testSecret}), opts...)
}

func TestResolveCredential_Valid(t *testing.T) {
	tok := sign(t, testSecret, jwt.MapClaims{
		"token": map[string]any{"access_token": "abc123"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	cred, err := newBridge().ResolveCredential(context.Background(), tok)
	if err != nil {
		t.Fatalf("ResolveCredential: %v", err)
	}
	if got := cred.Header(); got != "abc123:edsc" {
		t.Fatalf("header=%q want abc123:edsc", got)
	}
}

func TestResolveCredential_Failures(t *testing.T) {
	cases := map[string]string{
		"wrong secret": sign(t, "other", jwt.MapClaims{"token": map[string]any{"access_token": "a"}}),
		"expired": sign(t, testSecret, jwt.MapClaims{
			"token": map[string]any{"access_token": "a"},
			"exp":   time.Now().Add(-time.Minute).Unix(),
		}),
		"no access token": sign(t, testSecret, jwt.MapClaims{"token": map[string]any{}}),
		"garbage":         "not.a.jwt",
	}
	b := newBridge()
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.ResolveCredential(context.Background(), tok)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err=%v want ErrInvalidToken", err)
			}
		})
	}
}

func TestResolveCredential_RejectsOtherAlgorithms(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"token": map[string]any{"access_token": "a"},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newBridge().ResolveCredential(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err=%v want ErrInvalidToken", err)
	}
}

func TestResolveCredential_SecretFailureIsNotInvalidToken(t *testing.T) {
	b := New(secrets.ProviderFunc(func(context.Context) (secrets.Credentials, error) {
		return secrets.Credentials{}, errors.New("connection refused")
	}))
	_, err := b.ResolveCredential(context.Background(), "x.y.z")
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err=%v want non-token error", err)
	}
}

func TestResolveCredential_CacheHonoursExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	var fetches atomic.Int32
	b := New(secrets.ProviderFunc(func(context.Context) (secrets.Credentials, error) {
		fetches.Add(1)
		return secrets.Credentials{ClientID: "edsc", JWTSecret: testSecret}, nil
	}), WithClock(clock))

	tok := sign(t, testSecret, jwt.MapClaims{
		"token": map[string]any{"access_token": "abc"},
		"exp":   now.Add(time.Minute).Unix(),
	})
	for range 3 {
		if _, err := b.ResolveCredential(context.Background(), tok); err != nil {
			t.Fatalf("ResolveCredential: %v", err)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Fatalf("secrets fetched %d times, want 1", n)
	}

	now = now.Add(2 * time.Minute)
	if _, err := b.ResolveCredential(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired cached token accepted: %v", err)
	}
}

func TestNew_FetchesSecretsOncePerBridge(t *testing.T) {
	var fetches atomic.Int32
	b := New(secrets.ProviderFunc(func(context.Context) (secrets.Credentials, error) {
		fetches.Add(1)
		return secrets.Credentials{ClientID: "edsc", JWTSecret: testSecret}, nil
	}))
	for _, access := range []string{"a1", "a2", "a3"} {
		tok := sign(t, testSecret, jwt.MapClaims{
			"token": map[string]any{"access_token": access},
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		cred, err := b.ResolveCredential(context.Background(), tok)
		if err != nil {
			t.Fatalf("ResolveCredential: %v", err)
		}
		if cred.AccessToken != access {
			t.Fatalf("access token=%q want %q", cred.AccessToken, access)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Fatalf("secrets fetched %d times across distinct tokens, want 1", n)
	}
}

func TestPropagateRenewedToken(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want string
	}{
		{"empty", nil, "jwt-token"},
		{"appends", []string{"CMR-Hits,CMR-Took"}, "CMR-Hits, CMR-Took, jwt-token"},
		{"no duplicate", []string{"CMR-Hits, jwt-token"}, "CMR-Hits, jwt-token"},
		{"skips blanks", []string{",CMR-Hits,,"}, "CMR-Hits, jwt-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			for _, v := range tc.in {
				h.Add(ExposeHeaders, v)
			}
			if got := PropagateRenewedToken(h); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/granules", nil)
	if got := TokenFromRequest(r); got != "" {
		t.Fatalf("got %q want empty", got)
	}
	r.Header.Set("Authorization", "Bearer abc.def")
	if got := TokenFromRequest(r); got != "abc.def" {
		t.Fatalf("got %q", got)
	}
}
