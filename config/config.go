package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", EnvDevelopment)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_multipart_memory", 32<<20)

	v.SetDefault("store.driver", "mongo")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "streetlight")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 72*time.Hour)
	v.SetDefault("auth.cookie_domain", "")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.lock_duration", time.Hour)
	v.SetDefault("auth.reset_token_ttl", 10*time.Minute)
	v.SetDefault("auth.allow_role_signup", false)

	v.SetDefault("reports.duplicate_radius", 50.0)
	v.SetDefault("reports.duplicate_limit", 5)
	v.SetDefault("reports.max_images", 5)
	v.SetDefault("reports.max_image_bytes", 5<<20)
	v.SetDefault("reports.max_image_pixels", 50_000_000)

	v.SetDefault("media.driver", "gcs")
	v.SetDefault("media.bucket", "")
	v.SetDefault("media.credentials_file", "")
	v.SetDefault("media.base_url", "")
	v.SetDefault("media.timeout", 30*time.Second)

	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "StreetLightWatch/1.0")
	v.SetDefault("geocode.timeout", 5*time.Second)
	v.SetDefault("geocode.cache_ttl", 24*time.Hour)

	v.SetDefault("rate_limit.login_limit", 5)
	v.SetDefault("rate_limit.login_window", 15*time.Minute)
	v.SetDefault("rate_limit.report_limit", 20)
	v.SetDefault("rate_limit.report_window", 24*time.Hour)
	v.SetDefault("rate_limit.key_prefix", "streetlight:ratelimit")
}

// legacyEnv maps keys onto the plain variable names used in existing
// deployments' .env files.
var legacyEnv = map[string][]string{
	"server.port":        {"PORT"},
	"server.env":         {"GO_ENV", "APP_ENV"},
	"mongo.uri":          {"MONGODB_URI"},
	"redis.address":      {"REDIS_ADDRESS"},
	"redis.password":     {"REDIS_PASSWORD"},
	"auth.jwt_secret":    {"JWT_SECRET"},
	"auth.cookie_domain": {"DOMAIN"},
}

// LoadConfig reads .env, an optional config file and the environment, in
// increasing order of precedence. Environment keys are the upper-cased
// dotted path with dots replaced by underscores, e.g. MONGO_DATABASE.
func LoadConfig() (*AppConfig, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		args := append([]string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *AppConfig) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}
	switch c.Store.Driver {
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("please define the MONGODB_URI environment variable")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Media.Driver {
	case "gcs":
		if c.Media.Bucket == "" {
			return errors.New("media.bucket is required when media.driver is gcs")
		}
	case "none":
	default:
		return fmt.Errorf("unknown media driver %q", c.Media.Driver)
	}
	if c.Reports.DuplicateRadius <= 0 || c.Reports.DuplicateLimit <= 0 {
		return errors.New("reports.duplicate_radius and reports.duplicate_limit must be positive")
	}
	return nil
}
