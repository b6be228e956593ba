package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting used by the worker and the starter CLI.
type Config struct {
	Temporal   TemporalConfig   `yaml:"temporal"`
	Backend    BackendConfig    `yaml:"backend"`
	Stripe     StripeConfig     `yaml:"stripe"`
	Geocoding  GeocodingConfig  `yaml:"geocoding"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Crops      CropsConfig      `yaml:"crops"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TemporalConfig configures the Temporal client and worker.
type TemporalConfig struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
	// EncryptionKey is a hex encoded 32 byte key shared by worker and starter.
	// Empty means a key is generated at start up.
	EncryptionKey string `yaml:"encryption_key"`
}

// BackendConfig configures the marketplace REST backend.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
	// SessionCookie is forwarded as the PHPSESSID cookie when set.
	SessionCookie string `yaml:"session_cookie"`
}

// StripeConfig configures card confirmation.
type StripeConfig struct {
	PublishableKey string `yaml:"publishable_key"`
	// APIURL overrides https://api.stripe.com, used against stripe-mock.
	APIURL string `yaml:"api_url"`
}

// GeocodingConfig configures the Nominatim client and the location resolver.
type GeocodingConfig struct {
	BaseURL     string  `yaml:"base_url"`
	UserAgent   string  `yaml:"user_agent"`
	CountryCode string  `yaml:"country_code"`
	Debounce    string  `yaml:"debounce"`
	Timeout     string  `yaml:"timeout"`
	ResultLimit int     `yaml:"result_limit"`
	RateLimit   float64 `yaml:"rate_limit"` // requests per second
}

// AssessmentConfig configures the land assessment payment.
type AssessmentConfig struct {
	Fee             float64 `yaml:"fee"`
	ActivityTimeout string  `yaml:"activity_timeout"`
}

// CropsConfig configures the new crop poller.
type CropsConfig struct {
	PollInterval string `yaml:"poll_interval"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a Config that works against a local stack.
func DefaultConfig() *Config {
	return &Config{
		Temporal: TemporalConfig{
			Address:   "localhost:7233",
			Namespace: "default",
			TaskQueue: "land-assessment-queue",
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: "15s",
		},
		Geocoding: GeocodingConfig{
			BaseURL:     "https://nominatim.openstreetmap.org",
			UserAgent:   "land-assessment-system/1.0",
			CountryCode: "lk",
			Debounce:    "500ms",
			Timeout:     "10s",
			ResultLimit: 8,
			RateLimit:   1,
		},
		Assessment: AssessmentConfig{
			Fee:             5000,
			ActivityTimeout: "30s",
		},
		Crops: CropsConfig{
			PollInterval: "10s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path, then .env, then environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// .env is optional, but a present one must parse
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TEMPORAL_ADDRESS"); v != "" {
		c.Temporal.Address = v
	}
	if v := os.Getenv("TEMPORAL_NAMESPACE"); v != "" {
		c.Temporal.Namespace = v
	}
	if v := os.Getenv("TASK_QUEUE"); v != "" {
		c.Temporal.TaskQueue = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.Temporal.EncryptionKey = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("BACKEND_SESSION_COOKIE"); v != "" {
		c.Backend.SessionCookie = v
	}
	if v := os.Getenv("STRIPE_PUBLISHABLE_KEY"); v != "" {
		c.Stripe.PublishableKey = v
	}
	if v := os.Getenv("STRIPE_API_URL"); v != "" {
		c.Stripe.APIURL = v
	}
	if v := os.Getenv("NOMINATIM_URL"); v != "" {
		c.Geocoding.BaseURL = v
	}
	if v := os.Getenv("ASSESSMENT_FEE"); v != "" {
		fee, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid ASSESSMENT_FEE %q: %w", v, err)
		}
		c.Assessment.Fee = fee
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Assessment.Fee <= 0 {
		return fmt.Errorf("assessment fee must be positive, got %.2f", c.Assessment.Fee)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required")
	}
	if c.Geocoding.BaseURL == "" {
		return fmt.Errorf("geocoding base_url is required")
	}
	if c.Geocoding.ResultLimit <= 0 {
		return fmt.Errorf("geocoding result_limit must be positive, got %d", c.Geocoding.ResultLimit)
	}
	if c.Temporal.EncryptionKey != "" {
		key, err := hex.DecodeString(c.Temporal.EncryptionKey)
		if err != nil {
			return fmt.Errorf("encryption key is not hex: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
		}
	}
	for name, d := range map[string]string{
		"backend.timeout":             c.Backend.Timeout,
		"geocoding.debounce":          c.Geocoding.Debounce,
		"geocoding.timeout":           c.Geocoding.Timeout,
		"assessment.activity_timeout": c.Assessment.ActivityTimeout,
		"crops.poll_interval":         c.Crops.PollInterval,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, d, err)
		}
	}
	return nil
}

// Duration parses a duration field that Validate already checked.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
