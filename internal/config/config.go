package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vaultx/internal/crypto"
	"vaultx/internal/shard"

	"github.com/joho/godotenv"
)

// Config is the storage server configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type StorageConfig struct {
	MaxBlobSize int64
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Enabled           bool
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	refreshExp, err := time.ParseDuration(getEnv("REFRESH_TOKEN_EXPIRATION", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_EXPIRATION: %w", err)
	}

	maxBlob := getEnvAsInt64("MAX_BLOB_SIZE", 32<<20)
	if maxBlob <= 0 {
		return nil, fmt.Errorf("invalid MAX_BLOB_SIZE: %d", maxBlob)
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "vaultx"),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration:             jwtExp,
			RefreshTokenExpiration: refreshExp,
		},
		Storage: StorageConfig{
			MaxBlobSize: maxBlob,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// ClientConfig is the vaultctl configuration.
type ClientConfig struct {
	ServerURL      string
	DataDir        string
	Env            string
	KDFIterations  int
	ShardCount     int
	IdleTimeout    time.Duration
	MaxAttempts    int
	CooldownPeriod time.Duration
	RetryMax       int
	MaxBlobSize    int64
	Logging        LoggingConfig
}

func LoadClient() (*ClientConfig, error) {
	godotenv.Load()

	cfg := &ClientConfig{
		ServerURL:      getEnv("VAULTX_SERVER_URL", "http://localhost:8080"),
		DataDir:        getEnv("VAULTX_DATA_DIR", defaultDataDir()),
		Env:            getEnv("ENV", "production"),
		KDFIterations:  getEnvAsInt("VAULTX_KDF_ITERATIONS", crypto.DefaultIterations),
		ShardCount:     getEnvAsInt("VAULTX_SHARD_COUNT", shard.DefaultCount),
		IdleTimeout:    getEnvAsDuration("VAULTX_IDLE_TIMEOUT", 5*time.Minute),
		MaxAttempts:    getEnvAsInt("VAULTX_MAX_ATTEMPTS", 5),
		CooldownPeriod: getEnvAsDuration("VAULTX_COOLDOWN", 30*time.Second),
		RetryMax:       getEnvAsInt("VAULTX_RETRY_MAX", 3),
		MaxBlobSize:    getEnvAsInt64("VAULTX_MAX_BLOB_SIZE", 32<<20),
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "warn"),
		},
	}

	if cfg.KDFIterations < crypto.MinIterations {
		return nil, fmt.Errorf("invalid VAULTX_KDF_ITERATIONS: %d is below %d", cfg.KDFIterations, crypto.MinIterations)
	}
	if cfg.ShardCount < 1 || cfg.ShardCount > shard.MaxCount {
		return nil, fmt.Errorf("invalid VAULTX_SHARD_COUNT: %d", cfg.ShardCount)
	}
	if cfg.RetryMax < 0 {
		return nil, fmt.Errorf("invalid VAULTX_RETRY_MAX: %d", cfg.RetryMax)
	}
	if cfg.MaxBlobSize <= 0 {
		return nil, fmt.Errorf("invalid VAULTX_MAX_BLOB_SIZE: %d", cfg.MaxBlobSize)
	}
	return cfg, nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vaultx")
	}
	return ".vaultx"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
