package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Sites はROHLIK_SITEで選択できるショップとベースURLの対応。
var Sites = map[string]string{
	"rohlik.cz": "https://www.rohlik.cz",
	"knuspr.de": "https://www.knuspr.de",
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Account
	Email    string
	Password string
	BaseURL  string

	// Vendor HTTP
	HTTPTimeout  time.Duration
	RequestRate  float64
	RequestBurst int
	SafeNetwork  bool

	// Refresh
	RefreshInterval time.Duration

	// Server
	ServerPort string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.Email = os.Getenv("ROHLIK_EMAIL")
	if cfg.Email == "" {
		missing = append(missing, "ROHLIK_EMAIL")
	}

	cfg.Password = os.Getenv("ROHLIK_PASSWORD")
	if cfg.Password == "" {
		missing = append(missing, "ROHLIK_PASSWORD")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// ROHLIK_BASE_URL はROHLIK_SITEより優先する
	site := strings.ToLower(getEnvString("ROHLIK_SITE", "rohlik.cz"))
	baseURL, ok := Sites[site]
	if !ok {
		return nil, fmt.Errorf("unknown ROHLIK_SITE: %q (allowed: rohlik.cz, knuspr.de)", site)
	}
	cfg.BaseURL = strings.TrimRight(getEnvString("ROHLIK_BASE_URL", baseURL), "/")

	// Optional fields with defaults
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.RequestRate = getEnvFloat("REQUEST_RATE", 5)
	cfg.RequestBurst = getEnvInt("REQUEST_BURST", 10)
	// バーストが1未満だと全リクエストが待機に失敗する
	if cfg.RequestRate > 0 && cfg.RequestBurst < 1 {
		return nil, fmt.Errorf("REQUEST_BURST must be at least 1 when REQUEST_RATE is positive: %d", cfg.RequestBurst)
	}
	cfg.SafeNetwork = getEnvBool("SAFE_NETWORK", true)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", 10*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
