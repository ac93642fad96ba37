package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds every recognised runtime option. It is built once in main
// and passed down explicitly.
type Config struct {
	Environment string
	ListenAddr  string
	DatabaseDSN string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	AllowedOrigins []string
	RequestTimeout time.Duration

	EnableMetrics bool
	EnableSwagger bool

	LogLevel  string
	LogFormat string

	ImportMappingPath string
}

// Load reads configuration from the environment and, when present, a
// config.yaml or .env file in the working directory.
func Load() *Config {
	return LoadFrom(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// fall back to a dotenv file; both are optional
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISS", "erp-asset-api")
	v.SetDefault("JWT_AUD", "erp-asset-api")
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("ENABLE_METRICS", false)
	v.SetDefault("ENABLE_SWAGGER", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	return v
}

// LoadFrom builds a Config from an already prepared viper instance.
func LoadFrom(v *viper.Viper) *Config {
	cfg := &Config{
		Environment:       v.GetString("ENVIRONMENT"),
		ListenAddr:        v.GetString("LISTEN_ADDR"),
		DatabaseDSN:       v.GetString("DB_DSN"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTIssuer:         v.GetString("JWT_ISS"),
		JWTAudience:       v.GetString("JWT_AUD"),
		JWTExpiry:         24 * time.Hour,
		RequestTimeout:    15 * time.Second,
		EnableMetrics:     v.GetBool("ENABLE_METRICS"),
		EnableSwagger:     v.GetBool("ENABLE_SWAGGER"),
		LogLevel:          strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:         strings.ToLower(v.GetString("LOG_FORMAT")),
		ImportMappingPath: v.GetString("IMPORT_MAPPING"),
		AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
	}

	// Unparseable durations keep their defaults; Validate reports the range.
	if d, err := time.ParseDuration(v.GetString("JWT_EXPIRY")); err == nil {
		cfg.JWTExpiry = d
	}
	if d, err := time.ParseDuration(v.GetString("REQUEST_TIMEOUT")); err == nil {
		cfg.RequestTimeout = d
	}
	return cfg
}

// LoadAndValidate loads the configuration and validates it.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can run the server.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret)))
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be changed in production"))
	}
	if c.JWTIssuer == "" {
		errs = append(errs, errors.New("JWT_ISS is required"))
	}
	if c.JWTAudience == "" {
		errs = append(errs, errors.New("JWT_AUD is required"))
	}
	if c.JWTExpiry < time.Minute || c.JWTExpiry > 30*24*time.Hour {
		errs = append(errs, fmt.Errorf("JWT_EXPIRY must be between 1m and 720h, got %v", c.JWTExpiry))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.RequestTimeout))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
