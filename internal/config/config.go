package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the console.
type Config struct {
	App        AppConfig
	Backend    BackendConfig
	Store      StoreConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	DevBackend DevBackendConfig
}

// AppConfig controls the local console HTTP surface.
type AppConfig struct {
	Name    string
	Env     string
	Host    string
	Port    string
	Version string
}

// BackendConfig points the request gateway at the trading backend.
type BackendConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
}

// StoreConfig selects where the single credential is persisted.
type StoreConfig struct {
	Driver   string
	FilePath string
	Key      string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how credentials are decoded on the client.
type AuthConfig struct {
	// VerifySecret enables HS256 signature checks when non-empty.
	VerifySecret string
}

// DevBackendConfig configures the in-process development backend.
type DevBackendConfig struct {
	Host                  string
	Port                  string
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	AdminEmail            string
	AdminPassword         string
}

const (
	StoreDriverFile     = "file"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	driver := getEnv("CREDENTIAL_STORE", StoreDriverFile)
	switch driver {
	case StoreDriverFile, StoreDriverRedis, StoreDriverPostgres, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("invalid CREDENTIAL_STORE %q", driver)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "trader-console"),
			Env:     getEnv("APP_ENV", "development"),
			Host:    getEnv("APP_HOST", "127.0.0.1"),
			Port:    getEnv("APP_PORT", "3000"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Backend: BackendConfig{
			BaseURL:               getEnv("BACKEND_BASE_URL", "http://127.0.0.1:8000/api"),
			RequestTimeoutSeconds: getEnvAsInt("BACKEND_REQUEST_TIMEOUT_SECONDS", 15),
		},
		Store: StoreConfig{
			Driver:   driver,
			FilePath: getEnv("CREDENTIAL_FILE", defaultCredentialFile()),
			Key:      getEnv("CREDENTIAL_KEY", "trader-console:credential"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 2)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 0)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			VerifySecret: os.Getenv("AUTH_VERIFY_SECRET"),
		},
		DevBackend: DevBackendConfig{
			Host:                  getEnv("DEV_BACKEND_HOST", "127.0.0.1"),
			Port:                  getEnv("DEV_BACKEND_PORT", "8000"),
			JWTSecret:             getEnv("DEV_BACKEND_JWT_SECRET", "your-jwt-secret-key"),
			AccessTokenTTLMinutes: getEnvAsInt("DEV_BACKEND_TOKEN_TTL_MINUTES", 24*60),
			BcryptCost:            getEnvAsInt("DEV_BACKEND_BCRYPT_COST", 10),
			AdminEmail:            os.Getenv("DEV_BACKEND_ADMIN_EMAIL"),
			AdminPassword:         os.Getenv("DEV_BACKEND_ADMIN_PASSWORD"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// Addr returns the dev backend bind address.
func (d DevBackendConfig) Addr() string {
	return fmt.Sprintf("%s:%s", d.Host, d.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (b BackendConfig) RequestTimeout() time.Duration {
	if b.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.RequestTimeoutSeconds) * time.Second
}

func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "trader-console", "credential.json")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
