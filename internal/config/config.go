// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Server    ServerConfig
	Storage   StorageConfig
	Transcode TranscodeConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds the local data directory used for the database, search index
// and the filesystem/badger object stores.
type DataConfig struct {
	BasePath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Backend          string        // fs, s3 or badger (default: fs)
	CategoryBucket   string        // Bucket for category thumbnails and heroes
	PageBucket       string        // Bucket for coloring page originals and derived images
	Upsert           bool          // Overwrite existing objects at the same key (default: true)
	OperationTimeout time.Duration // Bound for each object store call (default: 30s)
	CleanupTimeout   time.Duration // Bound for background deletion of superseded blobs (default: 1m)

	S3Endpoint     string
	S3Region       string
	S3AccessKeyID  string
	S3SecretKey    string
	S3UsePathStyle bool
}

// TranscodeConfig holds derived image configuration.
type TranscodeConfig struct {
	Quality int // JPEG quality for derived images, 1-100 (default: 80)
	MaxEdge int // Longest edge of derived images in pixels (default: 1600)
}

// RateLimitConfig holds write endpoint rate limiting.
type RateLimitConfig struct {
	WritesPerSecond float64
	Burst           int
}

// LoadConfig loads configuration from the process arguments and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("colorbook", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for database, index and local blobs")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 30s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 60s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	maxUpload := fs.String("max-upload-bytes", "", "Maximum multipart upload size (default: 20971520)")

	backend := fs.String("storage-backend", "", "Object storage backend: fs, s3, badger (default: fs)")
	opTimeout := fs.String("storage-timeout", "", "Timeout for each object store call (default: 30s)")
	quality := fs.String("transcode-quality", "", "Derived image JPEG quality (default: 80)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			MaxUploadBytes: int64(getIntConfigValue(*maxUpload, "MAX_UPLOAD_BYTES", 20<<20)),
			AllowedOrigins: splitList(getConfigValue("", "CORS_ALLOWED_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendFS)),
			CategoryBucket: getConfigValue("", "STORAGE_CATEGORY_BUCKET", "categories"),
			PageBucket:     getConfigValue("", "STORAGE_PAGE_BUCKET", "coloring-pages"),
			Upsert:         getBoolConfigValue("", "STORAGE_UPSERT", true),
			S3Endpoint:     getConfigValue("", "S3_ENDPOINT", ""),
			S3Region:       getConfigValue("", "S3_REGION", "us-east-1"),
			S3AccessKeyID:  getConfigValue("", "S3_ACCESS_KEY_ID", ""),
			S3SecretKey:    getConfigValue("", "S3_SECRET_ACCESS_KEY", ""),
			S3UsePathStyle: getBoolConfigValue("", "S3_USE_PATH_STYLE", true),
		},
		Transcode: TranscodeConfig{
			Quality: getIntConfigValue(*quality, "TRANSCODE_QUALITY", 80),
			MaxEdge: getIntConfigValue("", "TRANSCODE_MAX_EDGE", 1600),
		},
		RateLimit: RateLimitConfig{
			WritesPerSecond: float64(getIntConfigValue("", "RATE_LIMIT_WRITES_PER_SECOND", 5)),
			Burst:           getIntConfigValue("", "RATE_LIMIT_BURST", 10),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dst       *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "30s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "60s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*opTimeout, "STORAGE_OPERATION_TIMEOUT", "30s", &cfg.Storage.OperationTimeout},
		{"", "STORAGE_CLEANUP_TIMEOUT", "1m", &cfg.Storage.CleanupTimeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
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

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	switch c.Storage.Backend {
	case BackendFS, BackendBadger:
	case BackendS3:
		if c.Storage.S3AccessKeyID == "" || c.Storage.S3SecretKey == "" {
			return errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be fs, s3, or badger)", c.Storage.Backend)
	}

	if c.Storage.CategoryBucket == "" || c.Storage.PageBucket == "" {
		return errors.New("storage buckets cannot be empty")
	}
	if c.Storage.OperationTimeout <= 0 {
		return errors.New("storage operation timeout must be positive")
	}

	if c.Transcode.Quality < 1 || c.Transcode.Quality > 100 {
		return fmt.Errorf("invalid transcode quality: %d (must be 1-100)", c.Transcode.Quality)
	}
	if c.Transcode.MaxEdge < 16 {
		return fmt.Errorf("invalid transcode max edge: %d (must be at least 16)", c.Transcode.MaxEdge)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
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

// expandDataPath defaults the data directory to ~/Colorbook/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Colorbook", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
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

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
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
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
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

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Real env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
