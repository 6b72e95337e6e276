// Package config assembles process configuration from an optional .env
// file and GRADEPROXY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhisek/gradeproxy/internal/grading"
	"github.com/abhisek/gradeproxy/internal/llm"
	"github.com/abhisek/gradeproxy/internal/logging"
	"github.com/abhisek/gradeproxy/internal/media"
)

// DefaultEnvFile is read when no env file is named. Its absence is not an
// error.
const DefaultEnvFile = ".env"

// Config is the full process configuration.
type Config struct {
	HTTP    HTTPConfig
	Log     LogConfig
	LLM     llm.Config
	S3      media.S3Config
	Fetch   media.FetcherConfig
	Grading grading.Config

	// DBPath is the event log location. Empty defers to the CLI flag and
	// then to the XDG default.
	DBPath string

	// CatalogPath overrides the embedded subject catalog.
	CatalogPath string
}

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string
	Output string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      3 * time.Minute,
			ShutdownTimeout:   15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Output: "stderr",
		},
		LLM: llm.DefaultConfig(),
		Fetch: media.FetcherConfig{
			Timeout:  30 * time.Second,
			MaxBytes: 10 << 20,
		},
		Grading: grading.DefaultConfig(),
	}
}

// Load reads envFile (or DefaultEnvFile when empty) into the environment
// without overriding variables already set, then builds a Config.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", DefaultEnvFile, err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.LLM = llm.ConfigFromEnv()

	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("GRADEPROXY_ADDR", &cfg.HTTP.Addr)
	dur("GRADEPROXY_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	dur("GRADEPROXY_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	dur("GRADEPROXY_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)

	str("GRADEPROXY_LOG_LEVEL", &cfg.Log.Level)
	str("GRADEPROXY_LOG_OUTPUT", &cfg.Log.Output)

	str("GRADEPROXY_DB", &cfg.DBPath)
	str("GRADEPROXY_CATALOG", &cfg.CatalogPath)

	str("GRADEPROXY_S3_BUCKET", &cfg.S3.Bucket)
	str("GRADEPROXY_S3_REGION", &cfg.S3.Region)
	str("GRADEPROXY_S3_ENDPOINT", &cfg.S3.Endpoint)
	str("GRADEPROXY_S3_ACCESS_KEY_ID", &cfg.S3.AccessKeyID)
	str("GRADEPROXY_S3_SECRET_ACCESS_KEY", &cfg.S3.SecretAccessKey)
	str("GRADEPROXY_S3_PREFIX", &cfg.S3.Prefix)
	dur("GRADEPROXY_S3_URL_EXPIRY", &cfg.S3.URLExpiry)
	boolean("GRADEPROXY_S3_PATH_STYLE", &cfg.S3.UsePathStyle)

	dur("GRADEPROXY_FETCH_TIMEOUT", &cfg.Fetch.Timeout)
	if v := os.Getenv("GRADEPROXY_FETCH_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GRADEPROXY_FETCH_MAX_BYTES: %w", err))
		} else {
			cfg.Fetch.MaxBytes = n
		}
	}

	integer("GRADEPROXY_PARSE_RETRIES", &cfg.Grading.ParseRetries)
	boolean("GRADEPROXY_LENIENT_JSON", &cfg.Grading.Lenient)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first problem with cfg.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http address is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Grading.ParseRetries < 0 || c.Grading.ParseRetries > 5 {
		return fmt.Errorf("parse retries must be between 0 and 5, got %d", c.Grading.ParseRetries)
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch max bytes must be positive, got %d", c.Fetch.MaxBytes)
	}
	if c.S3.Bucket == "" && c.S3.Endpoint != "" {
		return errors.New("GRADEPROXY_S3_ENDPOINT is set but GRADEPROXY_S3_BUCKET is empty")
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return errors.New("S3 access key id and secret access key must be set together")
	}
	return c.LLM.Validate()
}
