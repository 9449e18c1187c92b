package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const envPrefix = "HLSFETCH_"

// Config holds the fully processed application configuration.
type Config struct {
	// WorkRoot is where the working directory and the output file are created.
	WorkRoot string `yaml:"workRoot"`
	// Concurrency is the hard bound on segment downloads in flight.
	Concurrency int `yaml:"concurrency"`
	// SegmentTimeout bounds a single segment download attempt.
	SegmentTimeout time.Duration `yaml:"segmentTimeout"`
	// RetryDelay is the fixed wait before a failed segment is retried.
	RetryDelay time.Duration `yaml:"retryDelay"`
	// MaxAttempts caps attempts per segment; zero retries forever.
	MaxAttempts int `yaml:"maxAttempts"`
	// UserAgent is sent with every request when set.
	UserAgent string `yaml:"userAgent"`
	// RequestsPerSecond limits outgoing requests; zero disables the limit.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	LogLevel          string  `yaml:"logLevel"`
	// StatusAddr enables the status and metrics endpoint when set, e.g. ":9090".
	StatusAddr string  `yaml:"statusAddr"`
	Publish    Publish `yaml:"publish"`
}

// Publish configures the optional upload of the output file to an S3-compatible bucket.
type Publish struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
}

// Enabled reports whether an upload target is configured.
func (p Publish) Enabled() bool {
	return p.Bucket != ""
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		WorkRoot:       ".",
		Concurrency:    10,
		SegmentTimeout: 5 * time.Minute,
		RetryDelay:     100 * time.Millisecond,
		LogLevel:       "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file at path, a .env file in
// the current directory and HLSFETCH_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}

	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency))
	}
	if c.SegmentTimeout <= 0 {
		errs = append(errs, fmt.Errorf("segmentTimeout must be positive, got %s", c.SegmentTimeout))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retryDelay must not be negative, got %s", c.RetryDelay))
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("maxAttempts must not be negative, got %d", c.MaxAttempts))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requestsPerSecond must not be negative, got %g", c.RequestsPerSecond))
	}
	if c.WorkRoot == "" {
		errs = append(errs, errors.New("workRoot must not be empty"))
	}
	if c.Publish.Enabled() && c.Publish.Endpoint == "" {
		errs = append(errs, errors.New("publish.endpoint is required when publish.bucket is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s is not a valid integer: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s is not a valid duration: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("WORK_ROOT", &cfg.WorkRoot)
	integer("CONCURRENCY", &cfg.Concurrency)
	duration("SEGMENT_TIMEOUT", &cfg.SegmentTimeout)
	duration("RETRY_DELAY", &cfg.RetryDelay)
	integer("MAX_ATTEMPTS", &cfg.MaxAttempts)
	str("USER_AGENT", &cfg.UserAgent)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("STATUS_ADDR", &cfg.StatusAddr)
	str("S3_ENDPOINT", &cfg.Publish.Endpoint)
	str("S3_BUCKET", &cfg.Publish.Bucket)
	str("S3_PREFIX", &cfg.Publish.Prefix)
	str("S3_ACCESS_KEY", &cfg.Publish.AccessKey)
	str("S3_SECRET_KEY", &cfg.Publish.SecretKey)

	if v, ok := lookup(envPrefix + "REQUESTS_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_SECOND is not a valid number: %w", envPrefix, err))
		} else {
			cfg.RequestsPerSecond = f
		}
	}
	if v, ok := lookup(envPrefix + "S3_USE_SSL"); ok {
		cfg.Publish.UseSSL = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
