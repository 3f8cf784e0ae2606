package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	Password string // shared secret; empty disables auth

	DatabasePath      string
	LogDirectory      string
	SnapshotDirectory string
	StaticDirectory   string

	ModelWeightsPath string
	ModelConfigPath  string
	ModelNamesPath   string
	ConfidenceThresh float64
	NMSThresh        float64
	ModelInputSize   int

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	SMSAPIURL  string
	SMSAPIKey  string
	SMSTimeout time.Duration

	DroneTargetLat float64
	DroneTargetLon float64
	DroneTargetAlt float64
	DroneStepDelay time.Duration

	SnapshotBufferLimit   int
	SnapshotFlushInterval time.Duration
	MaxSnapshotDirMB      int64

	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads configuration from the environment, importing a .env file first
// when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Password: getEnv("FRONT_PASSWORD", ""),

		DatabasePath:      getEnv("DB_PATH", filepath.Join(".", "data", "firewatch.db")),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		SnapshotDirectory: getEnv("SNAPSHOT_DIR", filepath.Join(".", "snapshots")),
		StaticDirectory:   getEnv("STATIC_DIR", filepath.Join(".", "static")),

		ModelWeightsPath: getEnv("MODEL_WEIGHTS", filepath.Join(".", "models", "fire.weights")),
		ModelConfigPath:  getEnv("MODEL_CONFIG", filepath.Join(".", "models", "fire.cfg")),
		ModelNamesPath:   getEnv("MODEL_NAMES", filepath.Join(".", "models", "fire.names")),
		ConfidenceThresh: getEnvAsFloat("DETECT_CONFIDENCE", 0.45),
		NMSThresh:        getEnvAsFloat("DETECT_NMS", 0.4),
		ModelInputSize:   getEnvAsInt("MODEL_INPUT_SIZE", 416),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvAsInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),

		SMSAPIURL:  getEnv("SMS_API_URL", ""),
		SMSAPIKey:  getEnv("SMS_API_KEY", ""),
		SMSTimeout: getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),

		DroneTargetLat: getEnvAsFloat("DRONE_TARGET_LAT", 0),
		DroneTargetLon: getEnvAsFloat("DRONE_TARGET_LON", 0),
		DroneTargetAlt: getEnvAsFloat("DRONE_TARGET_ALT", 50),
		DroneStepDelay: getEnvAsDuration("DRONE_STEP_DELAY", 0),

		SnapshotBufferLimit:   getEnvAsInt("SNAPSHOT_BUFFER", 10),
		SnapshotFlushInterval: getEnvAsDuration("SNAPSHOT_FLUSH", 30*time.Second),
		MaxSnapshotDirMB:      getEnvAsInt64("SNAPSHOT_MAX_MB", 512),

		LogMaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
	}
}

// AuthEnabled reports whether a shared secret is configured.
func (c *Config) AuthEnabled() bool {
	return c.Password != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("30s") or bare seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
