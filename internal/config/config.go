package config

import (
	"os"
	"strings"
)

type Config struct {
	PostgresURI         string
	RedisURI            string
	MongoURI            string
	JWTSecret           string
	Port                string
	FrontendURL         string
	ShareBaseURL        string   // Public base for share link URLs (e.g. https://app.casefile.io/share)
	AllowedOrigins      []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	Host                string // Raw HOST env (e.g. https://api.casefile.io)
	AllowedHost         string // Hostname only for strict host check (production only)
	Environment         string // ENV: production, development, etc.
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")

	// AllowedHost is only set in production; host check is skipped in development
	var allowedHost string
	if env == "production" {
		allowedHost = stripToHostname(host)
	}

	frontendURL := getEnv("FRONTEND_URL", "http://localhost:3000")

	// CORS: allow multiple origins so the production frontend works alongside
	// local development
	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{frontendURL, getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	shareBase := getEnv("SHARE_BASE_URL", "")
	if shareBase == "" {
		shareBase = strings.TrimRight(frontendURL, "/") + "/share"
	}

	return &Config{
		PostgresURI:         getEnv("POSTGRES_URI", "postgres://localhost:5432/casefile?sslmode=disable"),
		RedisURI:            getEnv("REDIS_URI", "redis://localhost:6379/0"),
		MongoURI:            getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/casefile")),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		Host:                host,
		AllowedHost:         allowedHost,
		Environment:         env,
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         frontendURL,
		ShareBaseURL:        strings.TrimRight(shareBase, "/"),
		AllowedOrigins:      allowedOrigins,
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
	}
}

// stripToHostname reduces a URL or host:port to the bare hostname.
func stripToHostname(s string) string {
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	if idx := strings.Index(s, "/"); idx != -1 {
		s = s[:idx]
	}
	if idx := strings.Index(s, ":"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
