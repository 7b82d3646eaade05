package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: "/some/path"},
		Storage: StorageConfig{
			Backend:          BackendFS,
			CategoryBucket:   "categories",
			PageBucket:       "coloring-pages",
			OperationTimeout: 30 * time.Second,
		},
		Transcode: TranscodeConfig{Quality: 80, MaxEdge: 1600},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_StorageBackends(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"badger ok", func(c *Config) { c.Storage.Backend = BackendBadger }, ""},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }, "invalid storage backend"},
		{"s3 without credentials", func(c *Config) { c.Storage.Backend = BackendS3 }, "S3_ACCESS_KEY_ID"},
		{"s3 with credentials", func(c *Config) {
			c.Storage.Backend = BackendS3
			c.Storage.S3AccessKeyID = "key"
			c.Storage.S3SecretKey = "secret"
		}, ""},
		{"empty bucket", func(c *Config) { c.Storage.PageBucket = "" }, "buckets cannot be empty"},
		{"zero timeout", func(c *Config) { c.Storage.OperationTimeout = 0 }, "timeout must be positive"},
		{"quality too high", func(c *Config) { c.Transcode.Quality = 101 }, "invalid transcode quality"},
		{"tiny edge", func(c *Config) { c.Transcode.MaxEdge = 8 }, "invalid transcode max edge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("# comment\nTRANSCODE_QUALITY=55\nSERVER_PORT=\"9000\"\n"), 0o644))

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("TRANSCODE_QUALITY", "")
	t.Setenv("STORAGE_BACKEND", "badger")
	t.Cleanup(func() {
		os.Unsetenv("TRANSCODE_QUALITY")
		os.Unsetenv("SERVER_PORT")
	})

	cfg, err := Load([]string{
		"-env-file", envFile,
		"-data-path", dir,
		"-storage-timeout", "5s",
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 55, cfg.Transcode.Quality)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, 5*time.Second, cfg.Storage.OperationTimeout)
	assert.Equal(t, dir, cfg.Data.BasePath)
	assert.True(t, cfg.Storage.Upsert)
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load([]string{"-env-file", "/nonexistent", "-data-path", t.TempDir(), "-read-timeout", "soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_READ_TIMEOUT")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/colorbook", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "colorbook"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitList(""))
}
