package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rcourtman/tunnelpass/pkg/licensing"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "TUNNELPASS_"

const cacheFileName = "receipt.db"

// Config holds process configuration loaded from the environment.
type Config struct {
	Platform     string        `env:"PLATFORM" envDefault:"ios"`
	Unrestricted []string      `env:"UNRESTRICTED" envSeparator:","`
	ForcedLevel  string        `env:"FORCED_LEVEL"`
	Grandfather  bool          `env:"GRANDFATHER" envDefault:"true"`
	ReceiptPath  string        `env:"RECEIPT_PATH"`
	CacheDir     string        `env:"CACHE_DIR"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string        `env:"LOG_FORMAT" envDefault:"auto"`
	MetricsAddr  string        `env:"METRICS_ADDR" envDefault:"127.0.0.1:9464"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
}

// Load reads configuration from the process environment. Variables from
// envFiles fill in anything the environment does not set; with no files a
// .env in the working directory is used if present.
func Load(envFiles ...string) (*Config, error) {
	opts := env.Options{Prefix: EnvPrefix}

	if len(envFiles) == 0 {
		// Best-effort .env loading (not required)
		_ = godotenv.Load()
	} else {
		fileVars, err := godotenv.Read(envFiles...)
		if err != nil {
			return nil, fmt.Errorf("read env files: %w", err)
		}
		environ := environMap()
		for k, v := range fileVars {
			if _, ok := environ[k]; !ok {
				environ[k] = v
			}
		}
		opts.Environment = environ
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func environMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}

func (c *Config) normalize() {
	c.Platform = strings.TrimSpace(c.Platform)
	c.ForcedLevel = strings.TrimSpace(c.ForcedLevel)
	c.ReceiptPath = strings.TrimSpace(c.ReceiptPath)
	c.CacheDir = strings.TrimSpace(c.CacheDir)
	c.MetricsAddr = strings.TrimSpace(c.MetricsAddr)

	features := c.Unrestricted[:0]
	for _, raw := range c.Unrestricted {
		if raw = strings.TrimSpace(raw); raw != "" {
			features = append(features, raw)
		}
	}
	c.Unrestricted = features
}

func (c *Config) validate() error {
	if _, err := licensing.ParsePlatform(c.Platform); err != nil {
		return fmt.Errorf("%sPLATFORM: %w", EnvPrefix, err)
	}
	for _, raw := range c.Unrestricted {
		if _, ok := licensing.ParseFeature(raw); !ok {
			return fmt.Errorf("%sUNRESTRICTED: %w: %q", EnvPrefix, licensing.ErrUnknownFeature, raw)
		}
	}
	if _, err := licensing.ParseUserLevel(c.ForcedLevel); err != nil {
		return fmt.Errorf("%sFORCED_LEVEL: %w", EnvPrefix, err)
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("%sMETRICS_ADDR must be host:port: %w", EnvPrefix, err)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%sPOLL_INTERVAL must be greater than 0, got %s", EnvPrefix, c.PollInterval)
	}
	return nil
}

// Licensing converts the process configuration into engine configuration.
func (c *Config) Licensing() (licensing.Config, error) {
	platform, err := licensing.ParsePlatform(c.Platform)
	if err != nil {
		return licensing.Config{}, err
	}
	level, err := licensing.ParseUserLevel(c.ForcedLevel)
	if err != nil {
		return licensing.Config{}, err
	}

	out := licensing.Config{
		Platform:    platform,
		ForcedLevel: level,
	}
	if c.Grandfather {
		out.Grandfather = licensing.DefaultGrandfatherRules()
	}

	unrestricted := make([]licensing.Feature, 0, len(c.Unrestricted))
	for _, raw := range c.Unrestricted {
		f, ok := licensing.ParseFeature(raw)
		if !ok {
			return licensing.Config{}, fmt.Errorf("%w: %q", licensing.ErrUnknownFeature, raw)
		}
		unrestricted = append(unrestricted, f)
	}
	out.Unrestricted = licensing.NewFeatureSet(unrestricted...)
	return out, nil
}

// CachePath returns the receipt cache database path, defaulting to the user
// cache directory.
func (c *Config) CachePath() (string, error) {
	dir := c.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("resolve user cache dir: %w", err)
		}
		dir = filepath.Join(base, "tunnelpass")
	}
	return filepath.Join(dir, cacheFileName), nil
}
