// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	DatabaseURL string

	// Provider credentials. Empty keys disable the provider; the server
	// degrades instead of failing to start.
	AssemblyAIAPIKey string
	GoogleTTSAPIKey  string
	TogetherAPIKey   string
	CohereAPIKey     string
	GeminiAPIKey     string

	// If true, client identity may be derived from proxy headers like
	// X-Forwarded-For. Enable only behind a trusted proxy/LB.
	TrustProxyHeaders bool

	MaxBodyBytes int64

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Per-minute per-client budgets for the upstream services.
	RateLimitSTT     int
	RateLimitTTS     int
	RateLimitChat    int
	RateLimitGeneral int
	RateLimitWindow  time.Duration

	// Circuit breaker tuning.
	BreakerFailureThreshold int
	BreakerTimeout          time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                    envOr("VOXSTUDY_ADDR", ":8080"),
		DatabaseURL:             envOr("VOXSTUDY_DATABASE_URL", ""),
		AssemblyAIAPIKey:        envOr("ASSEMBLYAI_API_KEY", ""),
		GoogleTTSAPIKey:         envOr("GOOGLE_TTS_API_KEY", ""),
		TogetherAPIKey:          envOr("TOGETHER_API_KEY", ""),
		CohereAPIKey:            envOr("COHERE_API_KEY", ""),
		GeminiAPIKey:            envOr("GEMINI_API_KEY", ""),
		TrustProxyHeaders:       envBoolOr("VOXSTUDY_TRUST_PROXY_HEADERS", false),
		MaxBodyBytes:            envInt64Or("VOXSTUDY_MAX_BODY_BYTES", 16<<20), // 16 MiB, recordings included
		CORSAllowedOrigins:      make(map[string]struct{}),
		RateLimitSTT:            envIntOr("VOXSTUDY_RATE_LIMIT_STT", 10),
		RateLimitTTS:            envIntOr("VOXSTUDY_RATE_LIMIT_TTS", 50),
		RateLimitChat:           envIntOr("VOXSTUDY_RATE_LIMIT_CHAT", 60),
		RateLimitGeneral:        envIntOr("VOXSTUDY_RATE_LIMIT_GENERAL", 100),
		RateLimitWindow:         envDurationOr("VOXSTUDY_RATE_LIMIT_WINDOW", time.Minute),
		BreakerFailureThreshold: envIntOr("VOXSTUDY_BREAKER_FAILURES", 5),
		BreakerTimeout:          envDurationOr("VOXSTUDY_BREAKER_TIMEOUT", 60*time.Second),
		ReadHeaderTimeout:       envDurationOr("VOXSTUDY_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:             envDurationOr("VOXSTUDY_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:     envDurationOr("VOXSTUDY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("VOXSTUDY_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, fmt.Errorf("VOXSTUDY_DATABASE_URL must be set")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_MAX_BODY_BYTES must be > 0")
	}
	if cfg.RateLimitSTT <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_RATE_LIMIT_STT must be > 0")
	}
	if cfg.RateLimitTTS <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_RATE_LIMIT_TTS must be > 0")
	}
	if cfg.RateLimitChat <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_RATE_LIMIT_CHAT must be > 0")
	}
	if cfg.RateLimitGeneral <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_RATE_LIMIT_GENERAL must be > 0")
	}
	if cfg.RateLimitWindow <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_RATE_LIMIT_WINDOW must be > 0")
	}
	if cfg.BreakerFailureThreshold <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_BREAKER_FAILURES must be > 0")
	}
	if cfg.BreakerTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_BREAKER_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOXSTUDY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
