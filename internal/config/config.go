package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load env vars from .env file directly
func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// Config holds the runtime configuration for the render-job service.
type Config struct {
	Env  string
	Port string

	MaxActiveJobsPerOwner int
	JobSnapshotTTL        time.Duration
	AllowInsecureHTTP     bool

	ScratchDir string
	FFmpegBin  string
	FFprobeBin string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	CircuitBreakerStallThreshold int
	CircuitBreakerCooldown       time.Duration
}

// Load builds a Config from environment variables, applying the defaults from §6.
func Load() *Config {
	env := getEnv("NODE_ENV", "development")

	cfg := &Config{
		Env:                          env,
		Port:                         getEnv("PORT", "8080"),
		MaxActiveJobsPerOwner:        getEnvInt("MAX_ACTIVE_JOBS_PER_OWNER", 2),
		JobSnapshotTTL:               time.Duration(getEnvInt("JOB_SNAPSHOT_TTL_SECONDS", 86400)) * time.Second,
		AllowInsecureHTTP:            getEnvBool("ALLOW_INSECURE_HTTP_SOURCES", env != "production"),
		ScratchDir:                   getEnv("OUTPUT_DIR", "./scratch"),
		FFmpegBin:                    getEnv("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:                   getEnv("FFPROBE_BIN", "ffprobe"),
		RedisAddr:                    getEnv("REDIS_ADDR", ""),
		RedisPassword:                getEnv("REDIS_PASSWORD", ""),
		RedisDB:                      getEnvInt("REDIS_DB", 0),
		R2AccountID:                  getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:                getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:            getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:                 getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:                  getEnv("R2_PUBLIC_URL", ""),
		CircuitBreakerStallThreshold: getEnvInt("CIRCUIT_BREAKER_STALL_THRESHOLD", 2),
		CircuitBreakerCooldown:       time.Duration(getEnvInt("CIRCUIT_BREAKER_COOLDOWN_SECONDS", 60)) * time.Second,
	}

	return cfg
}

// GetAllowedOrigins returns a slice of allowed origins from the environment variable.
// It defaults to localhost:3000 if not set.
func GetAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}

	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}
