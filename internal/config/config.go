// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// defaultGeocoderEndpoint はLocationIQリバースジオコーディングAPIのエンドポイント。
const defaultGeocoderEndpoint = "https://us1.locationiq.com/v1/reverse"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Geocoder
	GeocoderEndpoint  string
	GeocoderAPIKey    string
	GeocodeTimeout    time.Duration
	GeocodeMaxRetries int

	// 許可国。リゾルバが返した国名との完全一致（大文字小文字を区別）で判定する。
	AllowedCountry string

	// Rate Limit（req/min単位）
	RateLimitGeneral int
	RateLimitSignup  int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GeocoderAPIKey = os.Getenv("LOCATIONIQ_API_KEY")
	if cfg.GeocoderAPIKey == "" {
		missing = append(missing, "LOCATIONIQ_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GeocoderEndpoint = getEnvString("GEOCODER_ENDPOINT", defaultGeocoderEndpoint)
	cfg.GeocodeTimeout = getEnvDuration("GEOCODE_TIMEOUT", 5*time.Second)
	cfg.GeocodeMaxRetries = getEnvInt("GEOCODE_MAX_RETRIES", 0)
	cfg.AllowedCountry = getEnvString("ALLOWED_COUNTRY", "Egypt")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSignup = getEnvInt("RATE_LIMIT_SIGNUP", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

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
