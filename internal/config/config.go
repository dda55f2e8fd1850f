// Package config reads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration recognized by the server.
type Config struct {
	DatabaseURL string
	Port        string
	Env         string // development | test | production
	LogLevel    string

	BcryptRounds int

	JWTKeyID      string
	JWTIssuer     string
	JWTAudience   string
	JWTPrivateKey string // PEM content
	AccessTokenTTL time.Duration

	AuthCodeTTL time.Duration

	CORSOrigins []string

	BFFClientID       string
	BFFClientSecret   string
	BFFClientName     string
	BFFRedirectURIs   []string

	AutoCleanupInterval time.Duration
}

// Load reads configuration from environment variables, applying the
// defaults documented in the server's configuration reference.
func Load() Config {
	return Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("NODE_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		BcryptRounds: getEnvAsInt("BCRYPT_ROUNDS", 10),

		JWTKeyID:       getEnv("JWT_KEY_ID", "sig-1"),
		JWTIssuer:      getEnv("JWT_ISSUER", "https://auth.example.local"),
		JWTAudience:    getEnv("JWT_AUDIENCE", "api"),
		JWTPrivateKey:  os.Getenv("JWT_PRIVATE_KEY"),
		AccessTokenTTL: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRES_IN", 3600)) * time.Second,

		AuthCodeTTL: time.Duration(getEnvAsInt("OAUTH2_AUTH_CODE_EXPIRES_IN", 600)) * time.Second,

		CORSOrigins: getEnvAsList("CORS_ORIGINS"),

		BFFClientID:     os.Getenv("BFF_CLIENT_ID"),
		BFFClientSecret: os.Getenv("BFF_CLIENT_SECRET"),
		BFFClientName:   getEnv("BFF_CLIENT_NAME", "Backend for Frontend"),
		BFFRedirectURIs: getEnvAsList("BFF_CLIENT_REDIRECT_URIS"),

		AutoCleanupInterval: time.Duration(getEnvAsInt("AUTO_CLEANUP_INTERVAL_MS", 3600000)) * time.Millisecond,
	}
}

func getEnv(name, defaultVal string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsList(name string) []string {
	valStr := os.Getenv(name)
	if valStr == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
