package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DedupScheme の設定値。
const (
	DedupHeadlineLink = "headline_link"
	DedupHeadline     = "headline"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort        string
	CORSAllowedOrigin string // 空文字列の場合はCORSヘッダーを付与しない

	// Logging
	LogLevel string

	// Fetch
	FetchTimeout         time.Duration
	FetchConnectTimeout  time.Duration
	FetchMaxSize         int64
	FetchMaxConcurrent   int
	FetchMaxEntries      int
	AllowPrivateNetworks bool

	// Sources
	SourcesFile string // 空文字列の場合は組み込みのソース一覧を使う

	// Pipeline
	LookbackWindow    time.Duration
	MaxLookbackWindow time.Duration // sinceで指定できる期間の上限
	SummaryMaxChars   int
	DedupScheme       string

	// Cache
	CacheTTL        time.Duration
	CacheSize       int
	RefreshInterval time.Duration

	// Rate Limit
	RateLimitRefresh int
}

// Load は環境変数からConfigを読み込む。
// 全項目にデフォルト値があるため、値の検証に失敗した場合のみエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:           getEnvString("SERVER_PORT", "8080"),
		CORSAllowedOrigin:    getEnvString("CORS_ALLOWED_ORIGIN", ""),
		LogLevel:             strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		FetchTimeout:         getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		FetchConnectTimeout:  getEnvDuration("FETCH_CONNECT_TIMEOUT", 5*time.Second),
		FetchMaxSize:         getEnvInt64("FETCH_MAX_SIZE", 5242880),
		FetchMaxConcurrent:   getEnvInt("FETCH_MAX_CONCURRENT", 15),
		FetchMaxEntries:      getEnvInt("FETCH_MAX_ENTRIES", 50),
		AllowPrivateNetworks: getEnvBool("ALLOW_PRIVATE_NETWORKS", false),
		SourcesFile:          getEnvString("SOURCES_FILE", ""),
		LookbackWindow:       getEnvDuration("LOOKBACK_WINDOW", 7*24*time.Hour),
		MaxLookbackWindow:    getEnvDuration("MAX_LOOKBACK_WINDOW", 30*24*time.Hour),
		SummaryMaxChars:      getEnvInt("SUMMARY_MAX_CHARS", 300),
		DedupScheme:          strings.ToLower(getEnvString("DEDUP_SCHEME", DedupHeadlineLink)),
		CacheTTL:             getEnvDuration("CACHE_TTL", 30*time.Minute),
		CacheSize:            getEnvInt("CACHE_SIZE", 16),
		RefreshInterval:      getEnvDuration("REFRESH_INTERVAL", 0),
		RateLimitRefresh:     getEnvInt("RATE_LIMIT_REFRESH", 6),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	var invalid []string

	if c.FetchTimeout <= 0 {
		invalid = append(invalid, "FETCH_TIMEOUT")
	}
	if c.FetchConnectTimeout <= 0 || c.FetchConnectTimeout > c.FetchTimeout {
		invalid = append(invalid, "FETCH_CONNECT_TIMEOUT")
	}
	if c.FetchMaxSize <= 0 {
		invalid = append(invalid, "FETCH_MAX_SIZE")
	}
	if c.FetchMaxConcurrent <= 0 {
		invalid = append(invalid, "FETCH_MAX_CONCURRENT")
	}
	if c.FetchMaxEntries <= 0 {
		invalid = append(invalid, "FETCH_MAX_ENTRIES")
	}
	if c.LookbackWindow <= 0 {
		invalid = append(invalid, "LOOKBACK_WINDOW")
	}
	if c.MaxLookbackWindow < c.LookbackWindow {
		invalid = append(invalid, "MAX_LOOKBACK_WINDOW")
	}
	if c.SummaryMaxChars <= 0 {
		invalid = append(invalid, "SUMMARY_MAX_CHARS")
	}
	if c.DedupScheme != DedupHeadlineLink && c.DedupScheme != DedupHeadline {
		invalid = append(invalid, "DEDUP_SCHEME")
	}
	if c.CacheTTL <= 0 {
		invalid = append(invalid, "CACHE_TTL")
	}
	if c.CacheSize <= 0 {
		invalid = append(invalid, "CACHE_SIZE")
	}
	if c.RefreshInterval < 0 {
		invalid = append(invalid, "REFRESH_INTERVAL")
	}
	if c.RateLimitRefresh <= 0 {
		invalid = append(invalid, "RATE_LIMIT_REFRESH")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return nil
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
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
