package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	DatabaseDriver string
	DatabaseURL    string
	SslCertPath    string
	JWTSecret      string
	TokenTTL       time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string
	LogLevel       string
	LogFormat      string
	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string
}

// ArchiveEnabled reports whether object storage credentials are configured.
func (c *Config) ArchiveEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_DRIVER", "pgx")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SSL_CERT_PATH", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("AWS_ACCESS_KEY", "")
	v.SetDefault("AWS_SECRET_KEY", "")
	v.SetDefault("AWS_REGION", "us-east-2")
	v.SetDefault("BUCKET_NAME", "inkwell-exports")
}

// LoadConfig reads .env (if present), the optional inkwell.yaml and the
// environment, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("inkwell")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/inkwell")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetString("PORT"),
		DatabaseDriver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		SslCertPath:    v.GetString("SSL_CERT_PATH"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		TokenTTL:       v.GetDuration("TOKEN_TTL"),
		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		AwsAccessKey:   v.GetString("AWS_ACCESS_KEY"),
		AwsSecretKey:   v.GetString("AWS_SECRET_KEY"),
		AwsRegion:      v.GetString("AWS_REGION"),
		BucketName:     v.GetString("BUCKET_NAME"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET not set")
	}
	switch cfg.DatabaseDriver {
	case "pgx", "sqlite":
	default:
		return nil, fmt.Errorf("DATABASE_DRIVER %q not supported (pgx or sqlite)", cfg.DatabaseDriver)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", cfg.RequestTimeout)
	}

	return cfg, nil
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
