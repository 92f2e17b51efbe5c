package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/healthmon/internal/alert"
	"github.com/hamed0406/healthmon/internal/domain"
)

var ErrInvalid = errors.New("invalid configuration")

// Sink names accepted in SINKS.
const (
	SinkJSONL    = "jsonl"
	SinkPostgres = "postgres"
	SinkElastic  = "elastic"
	SinkMemory   = "memory"
)

type Config struct {
	Monitor    MonitorConfig
	Thresholds ThresholdConfig
	Endpoints  EndpointConfig
	Storage    StorageConfig
	API        APIConfig
	Log        LogConfig
	Notify     NotifyConfig
}

type MonitorConfig struct {
	Interval       time.Duration `envconfig:"MONITOR_INTERVAL" default:"30s"`
	ProbeTimeout   time.Duration `envconfig:"PROBE_TIMEOUT" default:"10s"`
	RetryAttempts  int           `envconfig:"RETRY_ATTEMPTS" default:"1"`
	RetryBackoff   time.Duration `envconfig:"RETRY_BACKOFF" default:"300ms"`
	LedgerCapacity int           `envconfig:"LEDGER_CAPACITY" default:"100"`
	QueueSize      int           `envconfig:"PERSIST_QUEUE_SIZE" default:"16"`
	Render         bool          `envconfig:"RENDER" default:"true"`
}

type ThresholdConfig struct {
	SuccessRateMin     float64           `envconfig:"SUCCESS_RATE_MIN" default:"0.95"`
	LatencyMaxMS       float64           `envconfig:"LATENCY_MAX_MS" default:"1000"`
	MemoryUsageMaxPct  float64           `envconfig:"MEMORY_USAGE_MAX_PCT" default:"80"`
	CPUUsageMaxPct     float64           `envconfig:"CPU_USAGE_MAX_PCT" default:"80"`
	ErrorRateMaxPct    float64           `envconfig:"ERROR_RATE_MAX_PCT" default:"5"`
	CacheHitRateMinPct float64           `envconfig:"CACHE_HIT_RATE_MIN_PCT" default:"0"`
	SeverityPolicyFile string            `envconfig:"SEVERITY_POLICY_FILE"`
	SeverityOverrides  map[string]string `envconfig:"SEVERITY_OVERRIDES"`
}

// EndpointConfig lists probe targets. An empty endpoint disables its probe.
type EndpointConfig struct {
	CoordinationURL  string   `envconfig:"COORDINATION_URL"`
	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopics      []string `envconfig:"KAFKA_TOPICS"`
	RedisAddr        string   `envconfig:"REDIS_ADDR"`
	RedisPassword    string   `envconfig:"REDIS_PASSWORD"`
	RedisDB          int      `envconfig:"REDIS_DB" default:"0"`
	DatabaseURL      string   `envconfig:"DATABASE_URL"`
	ElasticAddresses []string `envconfig:"ELASTIC_ADDRESSES"`
	ElasticUsername  string   `envconfig:"ELASTIC_USERNAME"`
	ElasticPassword  string   `envconfig:"ELASTIC_PASSWORD"`
}

type StorageConfig struct {
	DataDir            string   `envconfig:"DATA_DIR" default:"data"`
	Sinks              []string `envconfig:"SINKS" default:"jsonl"`
	ElasticIndexPrefix string   `envconfig:"ELASTIC_INDEX_PREFIX" default:"health-snapshots"`
}

type APIConfig struct {
	Addr           string   `envconfig:"STATUS_ADDR" default:"127.0.0.1:8090"`
	APIKeys        []string `envconfig:"API_KEYS"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	RateLimitRPM   int      `envconfig:"RATE_LIMIT_RPM" default:"120"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"60"`
}

type LogConfig struct {
	Dir   string `envconfig:"LOG_DIR" default:"logs"`
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

type NotifyConfig struct {
	SlackWebhook  string `envconfig:"SLACK_WEBHOOK_URL"`
	SlackUsername string `envconfig:"SLACK_USERNAME" default:"healthmon"`
	MinSeverity   string `envconfig:"NOTIFY_MIN_SEVERITY" default:"medium"`
}

// Load reads an optional dotenv file, then the environment, and validates
// the result.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	for i, s := range c.Storage.Sinks {
		c.Storage.Sinks[i] = strings.ToLower(strings.TrimSpace(s))
	}
	c.Endpoints.KafkaBrokers = trimAll(c.Endpoints.KafkaBrokers)
	c.Endpoints.KafkaTopics = trimAll(c.Endpoints.KafkaTopics)
	c.Endpoints.ElasticAddresses = trimAll(c.Endpoints.ElasticAddresses)
	c.API.APIKeys = trimAll(c.API.APIKeys)
	c.API.AllowedOrigins = trimAll(c.API.AllowedOrigins)
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate reports every problem at once, wrapped in ErrInvalid.
func (c Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	m := c.Monitor
	if m.Interval <= 0 {
		add("MONITOR_INTERVAL must be positive, got %s", m.Interval)
	}
	if m.ProbeTimeout <= 0 {
		add("PROBE_TIMEOUT must be positive, got %s", m.ProbeTimeout)
	}
	if m.RetryAttempts < 1 {
		add("RETRY_ATTEMPTS must be at least 1, got %d", m.RetryAttempts)
	}
	if m.LedgerCapacity < 1 {
		add("LEDGER_CAPACITY must be at least 1, got %d", m.LedgerCapacity)
	}
	if m.QueueSize < 1 {
		add("PERSIST_QUEUE_SIZE must be at least 1, got %d", m.QueueSize)
	}

	t := c.Thresholds
	if t.SuccessRateMin < 0 || t.SuccessRateMin > 1 {
		add("SUCCESS_RATE_MIN must be within [0,1], got %g", t.SuccessRateMin)
	}
	if t.LatencyMaxMS <= 0 {
		add("LATENCY_MAX_MS must be positive, got %g", t.LatencyMaxMS)
	}
	for name, v := range map[string]float64{
		"MEMORY_USAGE_MAX_PCT": t.MemoryUsageMaxPct,
		"CPU_USAGE_MAX_PCT":    t.CPUUsageMaxPct,
		"ERROR_RATE_MAX_PCT":   t.ErrorRateMaxPct,
	} {
		if v <= 0 || v > 100 {
			add("%s must be within (0,100], got %g", name, v)
		}
	}
	if t.CacheHitRateMinPct < 0 || t.CacheHitRateMinPct > 100 {
		add("CACHE_HIT_RATE_MIN_PCT must be within [0,100], got %g", t.CacheHitRateMinPct)
	}
	for id, sev := range t.SeverityOverrides {
		if _, err := domain.ParseSeverity(sev); err != nil {
			add("SEVERITY_OVERRIDES %s: %v", id, err)
		}
	}

	if len(c.Storage.Sinks) == 0 {
		add("SINKS must name at least one sink")
	}
	for _, s := range c.Storage.Sinks {
		switch s {
		case SinkJSONL, SinkMemory:
		case SinkPostgres:
			if c.Endpoints.DatabaseURL == "" {
				add("SINKS=postgres requires DATABASE_URL")
			}
		case SinkElastic:
			if len(c.Endpoints.ElasticAddresses) == 0 {
				add("SINKS=elastic requires ELASTIC_ADDRESSES")
			}
		default:
			add("unknown sink %q", s)
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add("LOG_LEVEL: %v", err)
	}
	if _, err := domain.ParseSeverity(c.Notify.MinSeverity); err != nil {
		add("NOTIFY_MIN_SEVERITY: %v", err)
	}
	if c.API.RateLimitRPM < 0 || c.API.RateLimitBurst < 0 {
		add("RATE_LIMIT_RPM and RATE_LIMIT_BURST must not be negative")
	}

	if errs != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, errs)
	}
	return nil
}

func (c Config) DomainThresholds() domain.ThresholdConfig {
	return domain.ThresholdConfig{
		SuccessRateMin:    c.Thresholds.SuccessRateMin,
		LatencyMaxMS:      c.Thresholds.LatencyMaxMS,
		MemoryUsageMaxPct: c.Thresholds.MemoryUsageMaxPct,
		CPUUsageMaxPct:    c.Thresholds.CPUUsageMaxPct,
		ErrorRateMaxPct:   c.Thresholds.ErrorRateMaxPct,
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.Storage.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

type policyFile struct {
	Severities map[string]string `yaml:"severities"`
}

// Policy returns the rule severities: defaults, then the policy file, then
// SEVERITY_OVERRIDES.
func (c Config) Policy() (alert.Policy, error) {
	p := alert.DefaultPolicy()
	if path := c.Thresholds.SeverityPolicyFile; path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read severity policy: %w", err)
		}
		var f policyFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
		if err := apply(p, f.Severities); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
	}
	if err := apply(p, c.Thresholds.SeverityOverrides); err != nil {
		return nil, fmt.Errorf("%w: SEVERITY_OVERRIDES: %v", ErrInvalid, err)
	}
	return p, nil
}

func apply(p alert.Policy, in map[string]string) error {
	for id, s := range in {
		sev, err := domain.ParseSeverity(strings.ToLower(strings.TrimSpace(s)))
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		p[strings.TrimSpace(id)] = sev
	}
	return nil
}
