package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port    string
	AppName string

	// AkashML inference provider
	AkashAPIKey  string
	AkashBaseURL string
	MaxRetries   int

	// Model overrides per depth (empty = built-in default)
	ModelQuick    string
	ModelStandard string
	ModelDeep     string

	// Diff input limits
	MaxDiffBytes int
	MaxDiffLines int
	MaxLineChars int
	MaxFiles     int
	ChunkChars   int

	// Rate limiting
	RateLimitPerMinute int
	TrustProxyHeaders  bool

	// Result cache
	CacheTTLSeconds int
	CacheMaxEntries int

	// End-to-end audit deadline
	RequestTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// History store (empty = disabled, service runs in-memory only)
	DatabaseURL string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envOrDefault("PORT", "3001"),
		AppName: envOrDefault("APP_NAME", "Diff Auditor"),

		AkashAPIKey:  os.Getenv("AKASHML_API_KEY"),
		AkashBaseURL: envOrDefault("AKASHML_BASE_URL", "https://api.akashml.com/v1"),
		MaxRetries:   envOrDefaultInt("AKASHML_MAX_RETRIES", 2),

		ModelQuick:    os.Getenv("MODEL_QUICK"),
		ModelStandard: os.Getenv("MODEL_STANDARD"),
		ModelDeep:     os.Getenv("MODEL_DEEP"),

		MaxDiffBytes: envOrDefaultInt("MAX_DIFF_BYTES", 500000),
		MaxDiffLines: envOrDefaultInt("MAX_DIFF_LINES", 2000),
		MaxLineChars: envOrDefaultInt("MAX_LINE_CHARS", 5000),
		MaxFiles:     envOrDefaultInt("MAX_FILES", 50),
		ChunkChars:   envOrDefaultInt("CHUNK_CHARS", 120000),

		RateLimitPerMinute: envOrDefaultInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustProxyHeaders:  envOrDefaultBool("TRUST_PROXY_HEADERS", false),

		CacheTTLSeconds: envOrDefaultInt("CACHE_TTL_SECONDS", 300),
		CacheMaxEntries: envOrDefaultInt("CACHE_MAX_ENTRIES", 256),

		RequestTimeoutSeconds: envOrDefaultInt("REQUEST_TIMEOUT_SECONDS", 300),

		CORSAllowedOrigins: envOrDefault("CORS_ALLOWED_ORIGINS", "*"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}
