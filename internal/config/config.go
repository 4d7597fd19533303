// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// KVバックエンドの種別。
const (
	KVBackendMemory   = "memory"
	KVBackendRedis    = "redis"
	KVBackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// KV永続化
	KVBackend   string // memory | redis | postgres
	KVNamespace string
	DatabaseURL string // KVBackend=postgresの場合に必須
	RedisURL    string // KVBackend=redisの場合に必須

	// テキスト補完
	GeminiAPIKey string // 未設定の場合はフォールバック文字列のみ返す縮退モード
	GeminiModel  string

	// バッキングコールのシミュレーション
	BackendLatency     time.Duration
	BackendFailureRate float64
	BackendMaxAttempts int

	// Rate Limit
	RateLimitGeneral int
	RateLimitPosting int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 選択されたKVバックエンドに必要な接続URLが未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.KVBackend = getEnvString("KV_BACKEND", KVBackendMemory)
	cfg.KVNamespace = getEnvString("KV_NAMESPACE", "agora")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")

	switch cfg.KVBackend {
	case KVBackendMemory:
	case KVBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("KV_BACKEND=redis requires REDIS_URL")
		}
	case KVBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("KV_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unknown KV_BACKEND: %q", cfg.KVBackend)
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.5-flash")

	cfg.BackendLatency = getEnvDuration("BACKEND_LATENCY", 300*time.Millisecond)
	cfg.BackendFailureRate = getEnvFloat("BACKEND_FAILURE_RATE", 0)
	if cfg.BackendFailureRate < 0 || cfg.BackendFailureRate > 1 {
		return nil, fmt.Errorf("BACKEND_FAILURE_RATE must be in [0, 1], got %v", cfg.BackendFailureRate)
	}
	cfg.BackendMaxAttempts = getEnvInt("BACKEND_MAX_ATTEMPTS", 3)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPosting = getEnvInt("RATE_LIMIT_POSTING", 10)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
