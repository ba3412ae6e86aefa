package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DataConfig struct {
	// SampleFiles are demo Search Console exports loaded into every new
	// session when AutoloadSamples is on and the files exist.
	SampleFiles     []string
	AutoloadSamples bool
	MaxUploadBytes  int64
	SessionTTL      time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

// Load reads configuration from the environment. A .env file is merged in
// first when present, for local development.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            envString("SERVER_HOST", "localhost"),
			Port:            envInt("SERVER_PORT", 8086),
			ReadTimeout:     envDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    envDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     envDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: envDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			SampleFiles:     envStrings("SAMPLE_CSV_FILES", []string{"sample_data.csv", "sample_data_domain2.csv"}),
			AutoloadSamples: envBool("SAMPLE_AUTOLOAD", true),
			MaxUploadBytes:  envInt64("MAX_UPLOAD_BYTES", 32<<20),
			SessionTTL:      envDuration("SESSION_TTL", 2*time.Hour),
		},
		Logger: LoggerConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: envBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    envInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  envInt("SECURITY_RATE_LIMIT_BURST", 20),
			AllowedOrigins:  envStrings("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8086"}),
			TrustedProxies:  envStrings("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Data.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if c.Data.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q", c.Logger.Level)
	}
	if !slices.Contains([]string{"json", "text"}, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q", c.Logger.Format)
	}
	if c.Security.RateLimitRPS <= 0 || c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envStrings(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}
