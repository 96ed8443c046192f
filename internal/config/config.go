package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Partner   PartnerConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// PartnerConfig covers the partner integration: the credentials we were given
// at registration, the issuer string the partner puts in every token it sends,
// the Lookup API endpoint, and the behaviour toggles (nonce enforcement, lazy
// account/user creation) that exist for testing and debugging.
type PartnerConfig struct {
	IntegrationID  string
	SharedSecret   string
	Issuer         string
	LookupEndpoint string
	LookupTimeout  time.Duration
	EnforceNonce   bool
	CreateAccounts bool
	CreateUsers    bool
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5002")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "addressmapper")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("PARTNER_ISSUER", "http://www.tribehr.com")
	viper.SetDefault("PARTNER_LOOKUP_ENDPOINT", "https://app.tribehr.com/lookup/")
	viper.SetDefault("PARTNER_LOOKUP_TIMEOUT", 10)
	viper.SetDefault("ENFORCE_NONCE", true)
	viper.SetDefault("CREATE_ACCOUNT_IF_NOT_EXISTS", true)
	viper.SetDefault("CREATE_USER_IF_NOT_EXISTS", true)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Partner: PartnerConfig{
			IntegrationID:  viper.GetString("PARTNER_INTEGRATION_ID"),
			SharedSecret:   os.Getenv("PARTNER_SHARED_SECRET"),
			Issuer:         viper.GetString("PARTNER_ISSUER"),
			LookupEndpoint: viper.GetString("PARTNER_LOOKUP_ENDPOINT"),
			LookupTimeout:  time.Duration(viper.GetInt("PARTNER_LOOKUP_TIMEOUT")) * time.Second,
			EnforceNonce:   viper.GetBool("ENFORCE_NONCE"),
			CreateAccounts: viper.GetBool("CREATE_ACCOUNT_IF_NOT_EXISTS"),
			CreateUsers:    viper.GetBool("CREATE_USER_IF_NOT_EXISTS"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	// Basic validation
	if cfg.Partner.SharedSecret == "" {
		log.Println("WARNING: PARTNER_SHARED_SECRET is not set; incoming tokens cannot be verified without it")
	}

	return cfg, nil
}
