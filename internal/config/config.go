package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	Port             string
	AppName          string
	StoreDriver      string
	DBPath           string
	DatabaseURL      string
	MongoURI         string
	MongoDatabase    string
	UploadDir        string
	AllowedOrigin    string
	MaxUploadMB      int
	StrictValidation bool
	AMQPURL          string
	AMQPQueue        string
	LogLevel         string
	LogFormat        string
}

// LoadDotEnv reads key=value files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	maxUploadMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_MB", "10"))
	if err != nil || maxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be a positive integer")
	}

	strict, err := strconv.ParseBool(getEnv("STRICT_VALIDATION", "false"))
	if err != nil {
		return nil, fmt.Errorf("STRICT_VALIDATION must be a boolean: %w", err)
	}

	port, err := resolvePort()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:             port,
		AppName:          getEnv("APP_NAME", "Health Intake"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
		DBPath:           getEnv("DB_PATH", filepath.Join("data", "health.db")),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "healthDB"),
		UploadDir:        getEnv("UPLOAD_DIR", "uploads"),
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		MaxUploadMB:      maxUploadMB,
		StrictValidation: strict,
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPQueue:        getEnv("AMQP_QUEUE", "health-records"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	switch cfg.StoreDriver {
	case StoreSQLite, StoreMongo:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

// BodyLimit is the request body cap in bytes. One extra megabyte leaves room
// for the text fields and multipart framing around a maximum-size file.
func (cfg *Config) BodyLimit() int {
	return (cfg.MaxUploadMB + 1) * 1024 * 1024
}

func (cfg *Config) ListenAddress() string {
	return ":" + cfg.Port
}

func resolvePort() (string, error) {
	raw := getEnv("PORT", "5000")
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("PORT must be a number between 1 and 65535, got %q", raw)
	}
	return raw, nil
}

func getEnv(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
