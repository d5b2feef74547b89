package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the TTS gateway service
type Config struct {
	// Server configuration
	Port            string `envconfig:"PORT" default:"8000"`
	GRPCPort        string `envconfig:"GRPC_PORT" default:"9090"`            // gRPC health service; empty disables it
	MaxRequestBytes int64  `envconfig:"MAX_REQUEST_BYTES" default:"1048576"` // Request body cap
	CORSOrigins     string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`    // Comma-separated origins
	RequestTimeout  int    `envconfig:"REQUEST_TIMEOUT" default:"300"`       // seconds, whole synthesis request
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"`       // seconds

	// Legacy provider (base64 MP3 over form-encoded POST)
	LegacyTTSURL       string `envconfig:"LEGACY_TTS_URL" default:"https://api.tiktokv.com/media/api/text/speech/invoke/"`
	LegacyTTSSessionID string `envconfig:"LEGACY_TTS_SESSION_ID" required:"true"` // Value of the sessionid cookie
	LegacyTTSUserAgent string `envconfig:"LEGACY_TTS_USER_AGENT" default:"com.zhiliaoapp.musically/2022600030 (Linux; U; Android 7.1.2; es_ES; SM-G988N; Build/NRD90M;tt-ok/3.12.13.1)"`

	// Generative provider (WAV over multipart POST)
	GenerativeTTSURL       string `envconfig:"GENERATIVE_TTS_URL" default:"https://www.openai.fm/api/generate"`
	GenerativeTTSUserAgent string `envconfig:"GENERATIVE_TTS_USER_AGENT" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"`

	// Deepgram speak API (optional; endpoint disabled without a key)
	DeepgramAPIKey     string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramHost       string `envconfig:"DEEPGRAM_HOST" default:""`                 // Empty uses the SDK default
	DeepgramModel      string `envconfig:"DEEPGRAM_MODEL" default:"aura-asteria-en"` // Voice model
	DeepgramSampleRate int    `envconfig:"DEEPGRAM_SAMPLE_RATE" default:"24000"`

	// Outbound HTTP
	ProviderTimeout int `envconfig:"PROVIDER_TIMEOUT" default:"30"` // seconds, per provider call

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot express
func (c *Config) Validate() error {
	if c.LegacyTTSSessionID == "" {
		return fmt.Errorf("LEGACY_TTS_SESSION_ID is required")
	}
	if c.LegacyTTSURL == "" {
		return fmt.Errorf("LEGACY_TTS_URL must not be empty")
	}
	if c.GenerativeTTSURL == "" {
		return fmt.Errorf("GENERATIVE_TTS_URL must not be empty")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %d", c.ProviderTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %d", c.RequestTimeout)
	}
	if c.CircuitBreakerMaxFailures <= 0 {
		return fmt.Errorf("CIRCUIT_BREAKER_MAX_FAILURES must be positive, got %d", c.CircuitBreakerMaxFailures)
	}
	return nil
}

// DeepgramEnabled reports whether the Deepgram provider is configured
func (c *Config) DeepgramEnabled() bool {
	return c.DeepgramAPIKey != ""
}

// ProviderTimeoutDuration returns the per-call provider timeout
func (c *Config) ProviderTimeoutDuration() time.Duration {
	return time.Duration(c.ProviderTimeout) * time.Second
}

// RequestTimeoutDuration returns the deadline for one whole synthesis request
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// CircuitBreakerResetDuration returns the breaker reset timeout
func (c *Config) CircuitBreakerResetDuration() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}
