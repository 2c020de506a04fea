package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Services   ServicesConfig
	Warehouse  WarehouseConfig
	Deltas     DeltaConfig
	Auth       AuthConfig
	Simulation SimulationConfig
	Tracing    TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type ServicesConfig struct {
	IceAPI          string
	IceUsername     string
	IcePassword     string
	IDMapperAPI     string
	ModelStorageAPI string
	HTTPTimeout     time.Duration
}

type WarehouseConfig struct {
	Driver    string // "http", "postgres" or "file"
	ModelsDir string
	Preload   []string
}

type DeltaConfig struct {
	Store      string // "redis", "badger" or "memory"
	BadgerPath string
}

type AuthConfig struct {
	JWTSecret    string
	JWTPublicKey string
}

type SimulationConfig struct {
	Concurrency     int
	SaltsPath       string
	CalibrationPath string
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Services: ServicesConfig{
			IceAPI:          getEnv("ICE_API", ""),
			IceUsername:     getEnv("ICE_USERNAME", ""),
			IcePassword:     getEnv("ICE_PASSWORD", ""),
			IDMapperAPI:     getEnv("ID_MAPPER_API", ""),
			ModelStorageAPI: getEnv("MODEL_STORAGE_API", ""),
			HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		},
		Warehouse: WarehouseConfig{
			Driver:    getEnv("WAREHOUSE_DRIVER", "http"),
			ModelsDir: getEnv("MODELS_DIR", "models"),
			Preload:   getEnvAsList("PRELOAD_MODELS"),
		},
		Deltas: DeltaConfig{
			Store:      getEnv("DELTA_STORE", "redis"),
			BadgerPath: getEnv("BADGER_PATH", "data/deltas"),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			JWTPublicKey: getEnv("JWT_PUBLIC_KEY", ""),
		},
		Simulation: SimulationConfig{
			Concurrency:     getEnvAsInt("SIMULATION_CONCURRENCY", 4),
			SaltsPath:       getEnv("SALTS_PATH", ""),
			CalibrationPath: getEnv("CALIBRATION_PATH", ""),
		},
		Tracing: TracingConfig{
			Enabled:  getEnv("OTEL_ENABLED", "false") == "true",
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("45s") and plain seconds ("45").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
