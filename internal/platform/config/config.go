// Package config loads process configuration from defaults, an optional YAML
// file named by PHONEINT_CONFIG and environment variables, in increasing
// order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"phoneintel/internal/risk"
	pstrings "phoneintel/pkg/platform/strings"
)

// Cache backends.
const (
	CacheBackendSQLite   = "sqlite"
	CacheBackendMemory   = "memory"
	CacheBackendPostgres = "postgres"
	CacheBackendRedis    = "redis"
)

// Audit sinks.
const (
	AuditSinkMemory   = "memory"
	AuditSinkJSONL    = "jsonl"
	AuditSinkPostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	Server   Server         `yaml:"server"`
	Logging  Logging        `yaml:"logging"`
	HTTP     HTTP           `yaml:"http"`
	Cache    Cache          `yaml:"cache"`
	Adapters Adapters       `yaml:"adapters"`
	Score    Score          `yaml:"score"`
	Owner    Owner          `yaml:"owner"`
	Audit    Audit          `yaml:"audit"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	JWTSigningKey   string        `yaml:"jwt_signing_key"`
	JWTIssuer       string        `yaml:"jwt_issuer"`
	AdminToken      string        `yaml:"admin_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LookupTimeout   time.Duration `yaml:"lookup_timeout"`
}

type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// HTTP configures the outbound retrying transport.
type HTTP struct {
	Timeout                time.Duration `yaml:"timeout"`
	MaxRetries             int           `yaml:"max_retries"`
	BackoffBase            time.Duration `yaml:"backoff_base"`
	BackoffMax             time.Duration `yaml:"backoff_max"`
	RateLimitPerHostPerSec float64       `yaml:"rate_limit_per_host_per_second"`
	UserAgent              string        `yaml:"user_agent"`
}

// Cache configures the evidence TTL cache.
type Cache struct {
	Enabled       bool          `yaml:"enabled"`
	Backend       string        `yaml:"backend"`
	Path          string        `yaml:"path"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Adapters configures the reputation sources.
type Adapters struct {
	Default       []string `yaml:"default"`
	Limit         int      `yaml:"limit"`
	ScamListPath  string   `yaml:"scam_list_path"`
	GoogleAPIKey  string   `yaml:"google_api_key"`
	GoogleCX      string   `yaml:"google_cx"`
	OverridesPath string   `yaml:"overrides_path"`
}

// Score holds risk weight overrides merged over risk.DefaultWeights.
type Score struct {
	Weights map[string]float64 `yaml:"weights"`
}

// Owner configures owner intelligence.
type Owner struct {
	Weights        map[string]float64 `yaml:"weights"`
	CallerIDAPIKey string             `yaml:"callerid_api_key"`
	CallerIDURL    string             `yaml:"callerid_url"`
}

// Audit configures where owner audit records go.
type Audit struct {
	Sink       string `yaml:"sink"`
	JSONLPath  string `yaml:"jsonl_path"`
	KafkaTopic string `yaml:"kafka_topic"`

	// MirrorFallbackPath receives mirrored records while the broker is down.
	MirrorFallbackPath string `yaml:"mirror_fallback_path"`
}

// RedisConfig configures the redis client. An empty URL disables redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

// KafkaConfig configures the audit mirror. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Group   string   `yaml:"group"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			JWTIssuer:       "phoneintel",
			ShutdownTimeout: 10 * time.Second,
			LookupTimeout:   60 * time.Second,
		},
		Logging: Logging{Level: "info"},
		HTTP: HTTP{
			Timeout:                10 * time.Second,
			MaxRetries:             2,
			BackoffBase:            500 * time.Millisecond,
			BackoffMax:             8 * time.Second,
			RateLimitPerHostPerSec: 1.0,
			UserAgent:              "phoneintel/1.0 (lawful OSINT only)",
		},
		Cache: Cache{
			Enabled:       true,
			Backend:       CacheBackendSQLite,
			Path:          ".cache/phoneint.sqlite3",
			TTL:           time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Adapters: Adapters{
			Default: []string{"duckduckgo", "public"},
			Limit:   5,
		},
		Audit: Audit{
			Sink:               AuditSinkMemory,
			JSONLPath:          ".cache/owner_audit.jsonl",
			MirrorFallbackPath: ".cache/owner_audit_mirror.jsonl",
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// PHONEINT_CONFIG (if any) and environment variables.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(getenv("PHONEINT_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := Overlay(&cfg, data); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Overlay decodes YAML onto cfg. Keys absent from the document keep their
// current values.
func Overlay(cfg *Config, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// Validate rejects values the rest of the process cannot run with.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendSQLite, CacheBackendMemory, CacheBackendPostgres, CacheBackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Audit.Sink {
	case AuditSinkMemory, AuditSinkJSONL, AuditSinkPostgres:
	default:
		return fmt.Errorf("unknown audit sink %q", c.Audit.Sink)
	}
	if c.Cache.Enabled && c.Cache.Backend == CacheBackendRedis && c.Redis.URL == "" {
		return fmt.Errorf("cache backend redis requires REDIS_URL")
	}
	if c.Cache.Enabled && c.Cache.Backend == CacheBackendPostgres && c.Postgres.URL == "" {
		return fmt.Errorf("cache backend postgres requires DATABASE_URL")
	}
	if c.Audit.Sink == AuditSinkPostgres && c.Postgres.URL == "" {
		return fmt.Errorf("audit sink postgres requires DATABASE_URL")
	}
	if c.Cache.Enabled && c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache sweep interval must be positive, got %s", c.Cache.SweepInterval)
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http max retries must be >= 0")
	}
	return nil
}

// RiskWeights merges configured overrides over the default risk weights.
func (c Config) RiskWeights() risk.Weights {
	return risk.DefaultWeights().Merge(c.Score.Weights)
}

// envReader collects the first parse error so applyEnv reads linearly.
type envReader struct {
	getenv func(string) string
	err    error
}

func (r *envReader) str(key string, dst *string) {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		*dst = v
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		r.fail(key, v)
	}
}

func (r *envReader) integer(key string, dst *int) {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v)
		return
	}
	*dst = n
}

func (r *envReader) float(key string, dst *float64) {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v)
		return
	}
	*dst = f
}

// seconds reads a possibly fractional number of seconds.
func (r *envReader) seconds(key string, dst *time.Duration) {
	var f float64
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return
	}
	r.float(key, &f)
	if r.err == nil {
		*dst = time.Duration(f * float64(time.Second))
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		*dst = pstrings.SplitList(v)
	}
}

func (r *envReader) weights(key string, dst *map[string]float64) {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return
	}
	var m map[string]float64
	if err := json.Unmarshal([]byte(v), &m); err != nil {
		r.fail(key, "invalid JSON object")
		return
	}
	if *dst == nil {
		*dst = make(map[string]float64, len(m))
	}
	for k, w := range m {
		(*dst)[k] = w
	}
}

func (r *envReader) fail(key, value string) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid value for %s: %q", key, value)
	}
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	r := &envReader{getenv: getenv}

	r.str("PHONEINT_ADDR", &cfg.Server.Addr)
	r.str("JWT_SIGNING_KEY", &cfg.Server.JWTSigningKey)
	r.str("JWT_ISSUER", &cfg.Server.JWTIssuer)
	r.str("PHONEINT_ADMIN_TOKEN", &cfg.Server.AdminToken)
	r.seconds("PHONEINT_SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeout)
	r.seconds("PHONEINT_LOOKUP_TIMEOUT_SECONDS", &cfg.Server.LookupTimeout)

	r.str("PHONEINT_LOG_LEVEL", &cfg.Logging.Level)
	r.boolean("PHONEINT_JSON_LOGGING", &cfg.Logging.JSON)

	r.seconds("PHONEINT_HTTP_TIMEOUT_SECONDS", &cfg.HTTP.Timeout)
	r.integer("PHONEINT_HTTP_MAX_RETRIES", &cfg.HTTP.MaxRetries)
	r.seconds("PHONEINT_HTTP_BACKOFF_BASE_SECONDS", &cfg.HTTP.BackoffBase)
	r.seconds("PHONEINT_HTTP_BACKOFF_MAX_SECONDS", &cfg.HTTP.BackoffMax)
	r.float("PHONEINT_HTTP_RATE_LIMIT_PER_HOST_PER_SECOND", &cfg.HTTP.RateLimitPerHostPerSec)
	r.str("PHONEINT_HTTP_USER_AGENT", &cfg.HTTP.UserAgent)

	r.boolean("PHONEINT_CACHE_ENABLED", &cfg.Cache.Enabled)
	r.str("PHONEINT_CACHE_BACKEND", &cfg.Cache.Backend)
	r.str("PHONEINT_CACHE_PATH", &cfg.Cache.Path)
	r.seconds("PHONEINT_CACHE_TTL_SECONDS", &cfg.Cache.TTL)
	r.seconds("PHONEINT_CACHE_SWEEP_SECONDS", &cfg.Cache.SweepInterval)

	r.list("PHONEINT_ADAPTERS", &cfg.Adapters.Default)
	r.integer("PHONEINT_ADAPTER_LIMIT", &cfg.Adapters.Limit)
	r.str("PHONEINT_SCAM_LIST_PATH", &cfg.Adapters.ScamListPath)
	r.str("GCS_API_KEY", &cfg.Adapters.GoogleAPIKey)
	r.str("GCS_CX", &cfg.Adapters.GoogleCX)
	r.str("PHONEINT_SIGNAL_OVERRIDES_PATH", &cfg.Adapters.OverridesPath)

	r.weights("PHONEINT_SCORE_WEIGHTS", &cfg.Score.Weights)
	r.weights("PHONEINT_OWNER_WEIGHTS", &cfg.Owner.Weights)
	r.str("PHONEINT_CALLERID_API_KEY", &cfg.Owner.CallerIDAPIKey)
	r.str("PHONEINT_CALLERID_URL", &cfg.Owner.CallerIDURL)

	r.str("PHONEINT_AUDIT_SINK", &cfg.Audit.Sink)
	r.str("PHONEINT_AUDIT_JSONL_PATH", &cfg.Audit.JSONLPath)
	r.str("PHONEINT_AUDIT_TOPIC", &cfg.Audit.KafkaTopic)
	r.str("PHONEINT_AUDIT_MIRROR_FALLBACK_PATH", &cfg.Audit.MirrorFallbackPath)

	r.str("REDIS_URL", &cfg.Redis.URL)
	r.integer("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	r.str("DATABASE_URL", &cfg.Postgres.URL)
	r.list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	r.str("KAFKA_AUDIT_GROUP", &cfg.Kafka.Group)

	cfg.Cache.Backend = strings.ToLower(cfg.Cache.Backend)
	cfg.Audit.Sink = strings.ToLower(cfg.Audit.Sink)
	return r.err
}
