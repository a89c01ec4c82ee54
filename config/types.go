package config

import "time"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

type ServerConfig struct {
	Port               string        `mapstructure:"port"`
	Env                string        `mapstructure:"env"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxMultipartMemory int64         `mapstructure:"max_multipart_memory"`
}

type StoreConfig struct {
	// Driver is "mongo" or "memory".
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	CookieDomain     string        `mapstructure:"cookie_domain"`
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LockDuration     time.Duration `mapstructure:"lock_duration"`
	ResetTokenTTL    time.Duration `mapstructure:"reset_token_ttl"`
	AllowRoleSignup  bool          `mapstructure:"allow_role_signup"`
}

type ReportsConfig struct {
	DuplicateRadius float64 `mapstructure:"duplicate_radius"`
	DuplicateLimit  int64   `mapstructure:"duplicate_limit"`
	MaxImages       int     `mapstructure:"max_images"`
	MaxImageBytes   int64   `mapstructure:"max_image_bytes"`
	MaxImagePixels  int64   `mapstructure:"max_image_pixels"`
}

type MediaConfig struct {
	// Driver is "gcs" or "none". With "none" every upload fails and
	// reports go to review.
	Driver          string        `mapstructure:"driver"`
	Bucket          string        `mapstructure:"bucket"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type GeocodeConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type RateLimitConfig struct {
	LoginLimit   int64         `mapstructure:"login_limit"`
	LoginWindow  time.Duration `mapstructure:"login_window"`
	ReportLimit  int64         `mapstructure:"report_limit"`
	ReportWindow time.Duration `mapstructure:"report_window"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Media     MediaConfig     `mapstructure:"media"`
	Geocode   GeocodeConfig   `mapstructure:"geocode"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

func (c *AppConfig) IsProduction() bool {
	return c.Server.Env == EnvProduction
}
