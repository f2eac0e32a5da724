// Package config loads Libris server configuration from command-line flags,
// environment variables and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Data       DataConfig
	Server     ServerConfig
	Auth       AuthConfig
	Redis      RedisConfig
	Recommend  RecommendConfig
	Similarity SimilarityConfig
	Metrics    MetricsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig locates on-disk state. DatabasePath, SearchIndexPath and
// KeyPath default to files under BasePath.
type DataConfig struct {
	BasePath        string
	DatabasePath    string
	SearchIndexPath string
	KeyPath         string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        // default: 8080
	ReadTimeout    time.Duration // default: 15s
	WriteTimeout   time.Duration // default: 15s
	IdleTimeout    time.Duration // default: 60s
	AllowedOrigins []string      // CORS origins, default: *
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	AccessTokenDuration  time.Duration // default: 15m
	RefreshTokenDuration time.Duration // default: 720h
	LoginRatePerMinute   int           // per client IP, default: 10
}

// RedisConfig configures the recommendation cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // default: 1h
}

// RecommendConfig tunes the recommendation engine.
type RecommendConfig struct {
	TopK          int    // default: 5
	FavoriteLimit int    // default: 20
	Strategy      string // fold or sql, default: fold
}

// SimilarityConfig configures similarity-edge ingestion.
type SimilarityConfig struct {
	WatchDir   string // empty disables the drop-folder watcher
	Symmetrize bool   // default: true
	Debounce   time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// flags mirrors every setting as an optional string flag so that an empty
// value means "not set" and falls through to the environment.
type flags struct {
	env, logLevel, dataPath, dbPath, indexPath, keyPath          *string
	port, readTimeout, writeTimeout, idleTimeout, allowedOrigins *string
	accessDuration, refreshDuration, loginRate                   *string
	redisEnabled, redisAddr, redisPassword, redisDB, redisTTL    *string
	topK, favoriteLimit, strategy                                *string
	watchDir, symmetrize, debounce                               *string
	metricsEnabled                                               *string
	envFile                                                      *string
}

func registerFlags(fs *flag.FlagSet) *flags {
	return &flags{
		env:             fs.String("env", "", "Environment (development, staging, production)"),
		logLevel:        fs.String("log-level", "", "Log level (debug, info, warn, error)"),
		dataPath:        fs.String("data-path", "", "Base directory for database, search index and keys"),
		dbPath:          fs.String("db-path", "", "SQLite database file (default: {data-path}/libris.db)"),
		indexPath:       fs.String("search-index-path", "", "Search index directory (default: {data-path}/search)"),
		keyPath:         fs.String("key-path", "", "Token key directory (default: {data-path})"),
		port:            fs.String("port", "", "Server port (default: 8080)"),
		readTimeout:     fs.String("read-timeout", "", "HTTP read timeout (default: 15s)"),
		writeTimeout:    fs.String("write-timeout", "", "HTTP write timeout (default: 15s)"),
		idleTimeout:     fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)"),
		allowedOrigins:  fs.String("allowed-origins", "", "Comma-separated CORS origins (default: *)"),
		accessDuration:  fs.String("access-token-duration", "", "Access token lifetime (e.g., 15m)"),
		refreshDuration: fs.String("refresh-token-duration", "", "Refresh token lifetime (e.g., 720h)"),
		loginRate:       fs.String("login-rate", "", "Auth requests per minute per client IP (default: 10)"),
		redisEnabled:    fs.String("redis-enabled", "", "Cache recommendations in Redis (default: false)"),
		redisAddr:       fs.String("redis-addr", "", "Redis address (default: localhost:6379)"),
		redisPassword:   fs.String("redis-password", "", "Redis password"),
		redisDB:         fs.String("redis-db", "", "Redis database number (default: 0)"),
		redisTTL:        fs.String("redis-ttl", "", "Recommendation cache TTL (default: 1h)"),
		topK:            fs.String("recommend-top-k", "", "Recommendations returned per user (default: 5)"),
		favoriteLimit:   fs.String("favorite-limit", "", "Maximum favorites per user (default: 20)"),
		strategy:        fs.String("recommend-strategy", "", "Where scores are aggregated: fold or sql (default: fold)"),
		watchDir:        fs.String("similarity-watch-dir", "", "Directory watched for similarity files"),
		symmetrize:      fs.String("similarity-symmetrize", "", "Write both directions of imported edges (default: true)"),
		debounce:        fs.String("similarity-debounce", "", "Wait after the last file event before importing (default: 2s)"),
		metricsEnabled:  fs.String("metrics-enabled", "", "Expose /metrics (default: true)"),
		envFile:         fs.String("env-file", ".env", "Path to .env file"),
	}
}

// LoadConfig parses os.Args and loads configuration.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("libris", flag.ContinueOnError)
	f := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// A missing .env file is fine.
	_ = loadEnvFile(*f.envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*f.env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*f.logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath:        getConfigValue(*f.dataPath, "DATA_PATH", ""),
			DatabasePath:    getConfigValue(*f.dbPath, "DB_PATH", ""),
			SearchIndexPath: getConfigValue(*f.indexPath, "SEARCH_INDEX_PATH", ""),
			KeyPath:         getConfigValue(*f.keyPath, "KEY_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*f.port, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*f.allowedOrigins, "ALLOWED_ORIGINS", "*")),
		},
		Auth: AuthConfig{
			LoginRatePerMinute: getIntConfigValue(*f.loginRate, "LOGIN_RATE_PER_MINUTE", 10),
		},
		Redis: RedisConfig{
			Enabled:  getBoolConfigValue(*f.redisEnabled, "REDIS_ENABLED", false),
			Addr:     getConfigValue(*f.redisAddr, "REDIS_ADDR", "localhost:6379"),
			Password: getConfigValue(*f.redisPassword, "REDIS_PASSWORD", ""),
			DB:       getIntConfigValue(*f.redisDB, "REDIS_DB", 0),
		},
		Recommend: RecommendConfig{
			TopK:          getIntConfigValue(*f.topK, "RECOMMEND_TOP_K", 5),
			FavoriteLimit: getIntConfigValue(*f.favoriteLimit, "FAVORITE_LIMIT", 20),
			Strategy:      strings.ToLower(getConfigValue(*f.strategy, "RECOMMEND_STRATEGY", "fold")),
		},
		Similarity: SimilarityConfig{
			WatchDir:   getConfigValue(*f.watchDir, "SIMILARITY_WATCH_DIR", ""),
			Symmetrize: getBoolConfigValue(*f.symmetrize, "SIMILARITY_SYMMETRIZE", true),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolConfigValue(*f.metricsEnabled, "METRICS_ENABLED", true),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		env      string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *f.readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *f.writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *f.idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Auth.AccessTokenDuration, *f.accessDuration, "ACCESS_TOKEN_DURATION", "15m"},
		{&cfg.Auth.RefreshTokenDuration, *f.refreshDuration, "REFRESH_TOKEN_DURATION", "720h"},
		{&cfg.Redis.TTL, *f.redisTTL, "REDIS_TTL", "1h"},
		{&cfg.Similarity.Debounce, *f.debounce, "SIMILARITY_DEBOUNCE", "2s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, d.fallback)
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.env), raw, err)
		}
		*d.dst = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and in range.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.DatabasePath == "" {
		return errors.New("database path cannot be empty after expansion")
	}
	if c.Recommend.TopK <= 0 {
		return fmt.Errorf("recommend top k must be positive, got %d", c.Recommend.TopK)
	}
	if c.Recommend.FavoriteLimit <= 0 {
		return fmt.Errorf("favorite limit must be positive, got %d", c.Recommend.FavoriteLimit)
	}
	if c.Recommend.Strategy != "fold" && c.Recommend.Strategy != "sql" {
		return fmt.Errorf("invalid recommend strategy: %q (must be fold or sql)", c.Recommend.Strategy)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis address is required when redis is enabled")
	}
	if c.Auth.LoginRatePerMinute <= 0 {
		return fmt.Errorf("login rate must be positive, got %d", c.Auth.LoginRatePerMinute)
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned as-is.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves BasePath (default ~/Libris) and derives the
// per-file defaults from it.
func (c *Config) expandPaths() error {
	base := c.Data.BasePath
	if base == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(homeDir, "Libris")
	}
	base, err := expandPath(base, "")
	if err != nil {
		return err
	}
	c.Data.BasePath = base

	targets := []struct {
		dst      *string
		fallback string
	}{
		{&c.Data.DatabasePath, filepath.Join(base, "libris.db")},
		{&c.Data.SearchIndexPath, filepath.Join(base, "search")},
		{&c.Data.KeyPath, base},
	}
	for _, t := range targets {
		expanded, err := expandPath(*t.dst, t.fallback)
		if err != nil {
			return err
		}
		*t.dst = expanded
	}

	if c.Similarity.WatchDir != "" {
		if c.Similarity.WatchDir, err = expandPath(c.Similarity.WatchDir, ""); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return v
}

// loadEnvFile loads KEY=value lines from a .env file. Variables already set
// in the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
