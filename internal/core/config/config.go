package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/catalog-gateway/internal/state"
)

type ThumbnailSize struct {
	Height int `yaml:"height"`
	Width  int `yaml:"width"`
}

// File is the optional YAML overlay named by GATEWAY_CONFIG. Environment
// variables win over anything it sets.
type File struct {
	CMRHost          string            `yaml:"cmr_host"`
	APIHost          string            `yaml:"api_host"`
	ThumbnailSize    ThumbnailSize     `yaml:"thumbnail_size"`
	DefaultTags      []string          `yaml:"default_cmr_search_tags"`
	CacheTTLDefault  string            `yaml:"cache_ttl_default"`
	CacheTTLOverride map[string]string `yaml:"cache_ttl_overrides"`
}

type Config struct {
	Addr     string
	LogLevel string
	Scenario string

	CMRHost          string
	APIHost          string
	ThumbnailSize    ThumbnailSize
	DefaultTags      []string
	UnavailableImage string

	RedisAddr       string
	CacheOpTimeout  time.Duration
	CacheTTLDefault time.Duration
	CacheTTLOvr     map[string]time.Duration
	MetadataTTL     time.Duration
	MetadataLRUSize int

	ResolveMaxWorkers int
	OrderChunkSize    int
	UpstreamTimeout   time.Duration

	SecretsFile string

	KafkaBrokers   string
	UpdatesEnabled bool
	UpdatesTopic   string
	UpdatesQueue   int

	MetricsEnabled bool
	Version        string
}

// FromEnv reads the configuration, applying the YAML overlay named by
// GATEWAY_CONFIG first. A broken overlay is an error; a missing variable is not.
func FromEnv() (Config, error) {
	var f File
	if path := strings.TrimSpace(os.Getenv("GATEWAY_CONFIG")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config overlay: %w", err)
		}
		if err := yaml.Unmarshal(b, &f); err != nil {
			return Config{}, fmt.Errorf("parse config overlay %s: %w", path, err)
		}
	}
	return fromEnv(f), nil
}

func fromEnv(f File) Config {
	thumb := ThumbnailSize{Height: 85, Width: 85}
	if f.ThumbnailSize.Height > 0 {
		thumb.Height = f.ThumbnailSize.Height
	}
	if f.ThumbnailSize.Width > 0 {
		thumb.Width = f.ThumbnailSize.Width
	}
	thumb.Height = getint("THUMBNAIL_HEIGHT", thumb.Height)
	thumb.Width = getint("THUMBNAIL_WIDTH", thumb.Width)

	tags := splitList(state.DefaultIncludeTags)
	if len(f.DefaultTags) > 0 {
		tags = f.DefaultTags
	}
	if v := os.Getenv("DEFAULT_CMR_SEARCH_TAGS"); v != "" {
		tags = splitList(v)
	}

	ttlDefault := 60 * time.Second
	if d, err := time.ParseDuration(f.CacheTTLDefault); err == nil && d > 0 {
		ttlDefault = d
	}
	ttlDefault = getduration("CACHE_TTL_DEFAULT", ttlDefault)

	ttlOvr := map[string]time.Duration{}
	for k, v := range f.CacheTTLOverride {
		if d, err := time.ParseDuration(v); err == nil {
			ttlOvr[k] = d
		}
	}
	for k, d := range parseDurationMap(getenv("CACHE_TTL_OVERRIDES", "")) {
		ttlOvr[k] = d
	}

	chunk := getint("ORDER_CHUNK_SIZE", 2000)
	if chunk <= 0 {
		chunk = 2000
	}

	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Scenario: getenv("SCENARIO", "baseline"),

		CMRHost:          strings.TrimRight(getenv("CMR_HOST", or(f.CMRHost, "https://cmr.earthdata.nasa.gov")), "/"),
		APIHost:          strings.TrimRight(getenv("API_HOST", or(f.APIHost, "http://localhost:3001")), "/"),
		ThumbnailSize:    thumb,
		DefaultTags:      tags,
		UnavailableImage: getenv("UNAVAILABLE_IMAGE", "/images/image-unavailable.svg"),

		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		CacheOpTimeout:  getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		CacheTTLDefault: ttlDefault,
		CacheTTLOvr:     ttlOvr,
		MetadataTTL:     getduration("METADATA_TTL", time.Hour),
		MetadataLRUSize: getint("METADATA_LRU_SIZE", 4096),

		ResolveMaxWorkers: getint("RESOLVE_MAX_WORKERS", 8),
		OrderChunkSize:    chunk,
		UpstreamTimeout:   getduration("UPSTREAM_TIMEOUT", 30*time.Second),

		SecretsFile: getenv("SECRETS_FILE", ""),

		KafkaBrokers:   getenv("KAFKA_BROKERS", "localhost:9092"),
		UpdatesEnabled: getbool("UPDATES_ENABLED", false),
		UpdatesTopic:   getenv("UPDATES_TOPIC", "catalog-gateway-updates"),
		UpdatesQueue:   getint("UPDATES_QUEUE", 1024),

		MetricsEnabled: getbool("METRICS_ENABLED", true),
		Version:        getenv("VERSION", "dev"),
	}
}

// TTLFor returns the response cache TTL for a catalog resource.
func (c Config) TTLFor(resource string) time.Duration {
	if d, ok := c.CacheTTLOvr[resource]; ok {
		return d
	}
	return c.CacheTTLDefault
}

func (c Config) Brokers() []string { return splitList(c.KafkaBrokers) }

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}

// parse "collections=5m,granules=30s" into map
func parseDurationMap(s string) map[string]time.Duration {
	out := map[string]time.Duration{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			out[k] = d
		}
	}
	return out
}
