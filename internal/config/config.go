package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// AI interpretation service (OpenAI-compatible chat completions).
	OpenAIAPIKey     string  `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel      string  `mapstructure:"OPENAI_MODEL"`
	OpenAITemp       float64 `mapstructure:"OPENAI_TEMPERATURE"`
	OpenAITimeoutSec int     `mapstructure:"OPENAI_TIMEOUT_SEC"`

	// Extraction and OCR.
	MinTextChars      int    `mapstructure:"MIN_TEXT_CHARS"`
	OCRTesseract      string `mapstructure:"OCR_TESSERACT"`
	OCRPdftoppm       string `mapstructure:"OCR_PDFTOPPM"`
	OCRLang           string `mapstructure:"OCR_LANG"`
	OCRDPI            int    `mapstructure:"OCR_DPI"`
	OCRPageTimeoutSec int    `mapstructure:"OCR_PAGE_TIMEOUT_SEC"`

	ShareTokenTTLHours int `mapstructure:"SHARE_TOKEN_TTL_HOURS"`

	// Optional MinIO storage for uploaded documents. When the endpoint is
	// empty, uploads are kept in the in-memory store.
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_TEMPERATURE", 0.1)
	v.SetDefault("OPENAI_TIMEOUT_SEC", 60)
	v.SetDefault("MIN_TEXT_CHARS", 120)
	v.SetDefault("OCR_TESSERACT", "tesseract")
	v.SetDefault("OCR_PDFTOPPM", "pdftoppm")
	v.SetDefault("OCR_LANG", "por+eng")
	v.SetDefault("OCR_DPI", 300)
	v.SetDefault("OCR_PAGE_TIMEOUT_SEC", 30)
	v.SetDefault("SHARE_TOKEN_TTL_HOURS", 72)
	v.SetDefault("MINIO_BUCKET", "lab-uploads")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"CORS_ORIGINS", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"OPENAI_TEMPERATURE", "OPENAI_TIMEOUT_SEC",
		"MIN_TEXT_CHARS", "OCR_TESSERACT", "OCR_PDFTOPPM", "OCR_LANG",
		"OCR_DPI", "OCR_PAGE_TIMEOUT_SEC", "SHARE_TOKEN_TTL_HOURS",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
		"MINIO_BUCKET", "MINIO_USE_SSL",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAITimeoutSec) * time.Second
}

func (c *Config) OCRPageTimeout() time.Duration {
	return time.Duration(c.OCRPageTimeoutSec) * time.Second
}

func (c *Config) ShareTokenTTL() time.Duration {
	return time.Duration(c.ShareTokenTTLHours) * time.Hour
}

// Validate checks that the configuration is safe to run. Outside development
// an AI key and an auth issuer are required: the pipeline cannot interpret
// reports without the former, and the submission endpoint must not run open.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required outside development")
		}
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER is required outside development")
		}
	}
	if c.MinTextChars <= 0 {
		return fmt.Errorf("MIN_TEXT_CHARS must be positive, got %d", c.MinTextChars)
	}
	if c.ShareTokenTTLHours <= 0 {
		return fmt.Errorf("SHARE_TOKEN_TTL_HOURS must be positive, got %d", c.ShareTokenTTLHours)
	}
	if c.MinioEndpoint != "" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	return nil
}
