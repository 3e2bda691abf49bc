package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the admissions service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	ImagesFolder           string
	DocumentsFolder        string
	UploadMaxMB            int
	WizardSessionTTL       time.Duration
	StatsCacheTTL          time.Duration
	EventChannel           string
	PublicSubmitRateLimit  int
	PublicSubmitRateWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LSA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Little Sprouts Admissions API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("storage.images_folder", "littlesprouts/images")
	v.SetDefault("storage.documents_folder", "littlesprouts/documents")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("wizard.session_ttl", "24h")
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("events.channel", "admissions")
	v.SetDefault("submit.rate_limit", 5)
	v.SetDefault("submit.rate_window", "1m")

	sessionTTL, err := time.ParseDuration(v.GetString("wizard.session_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid wizard session ttl: %w", err)
	}

	statsTTL, err := time.ParseDuration(v.GetString("stats.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	rateWindow, err := time.ParseDuration(v.GetString("submit.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid submit rate window: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		ImagesFolder:           v.GetString("storage.images_folder"),
		DocumentsFolder:        v.GetString("storage.documents_folder"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		WizardSessionTTL:       sessionTTL,
		StatsCacheTTL:          statsTTL,
		EventChannel:           v.GetString("events.channel"),
		PublicSubmitRateLimit:  v.GetInt("submit.rate_limit"),
		PublicSubmitRateWindow: rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}

	return cfg, nil
}
