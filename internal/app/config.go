package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	DataDir         string
	RequireAuth     bool
	JWTSecret       string
	IdleTTL         time.Duration
	CreationTimeout time.Duration
	CORSOrigins     []string
}

// minIdleTTL is the effective floor for the idle-eviction TTL regardless of
// how small IDLE_TTL_MINUTES is configured.
const minIdleTTL = time.Second

func LoadConfig() Config {
	ttl := time.Duration(getEnvInt64("IDLE_TTL_MINUTES", 5)) * time.Minute
	if ttl < minIdleTTL {
		ttl = minIdleTTL
	}

	createTimeout := time.Duration(getEnvInt64("SESSION_CREATE_TIMEOUT_S", 20)) * time.Second
	if createTimeout <= 0 {
		createTimeout = 20 * time.Second
	}

	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", defaultAddr()),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DataDir:         getEnv("DATA_DIR", "tmp"),
		RequireAuth:     getEnvBool("REQUIRE_AUTH", false),
		JWTSecret:       getEnv("JWT_SECRET", "supersecretkey"),
		IdleTTL:         ttl,
		CreationTimeout: createTimeout,
		CORSOrigins:     splitCommaList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

// defaultAddr honors a bare PORT variable for compatibility with older
// deployments; HTTP_ADDR takes precedence when both are set.
func defaultAddr() string {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		return ":" + port
	}
	return ":3000"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	return value == "true" || value == "1"
}

func splitCommaList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
