package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"http_addr":         "www.example:9000",
		"database_dsn":      "postgres://x",
		"jwt_secret":        "my_secret",
		"jwks_url":          "https://idp/jwks",
		"jwt_issuer":        "https://idp",
		"jwt_audience":      "authenticated",
		"s3_access_key":     "user",
		"s3_secret_key":     "password",
		"s3_bucket":         "bucket",
		"s3_region":         "region",
		"s3_base_endpoint":  "base_endpoint",
		"s3_use_path_style": false,
		"allowed_origins":   []string{"https://merchant.example"},
		"shutdown_timeout":  "30s",
		"log_level":         "warn",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret", cfg.JWTSecret)
		assert.Equal(t, "https://idp/jwks", cfg.JWKSURL)
		assert.Equal(t, "https://idp", cfg.JWTIssuer)
		assert.Equal(t, "authenticated", cfg.JWTAudience)
		assert.Equal(t, "user", cfg.S3AccessKey)
		assert.Equal(t, "password", cfg.S3SecretKey)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.False(t, cfg.S3UsePathStyle)
		assert.Equal(t, []string{"https://merchant.example"}, cfg.AllowedOrigins)
		assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("no config flag leaves values", func(t *testing.T) {
		cfg := &Config{HTTPAddr: "defaults:1234", S3Bucket: "keep"}
		require.NoError(t, parseJSON(cfg, []string{"-a", ":1"}))

		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
		assert.Equal(t, "keep", cfg.S3Bucket)
	})

	t.Run("partial file keeps the rest", func(t *testing.T) {
		partial := writeTempJSON(t, map[string]any{"s3_bucket": "other"})
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-c", partial}))

		assert.Equal(t, "other", cfg.S3Bucket)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.True(t, cfg.S3UsePathStyle)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		require.Error(t, parseJSON(&Config{}, []string{"-c", bad}))
	})

	t.Run("missing file", func(t *testing.T) {
		require.Error(t, parseJSON(&Config{}, []string{"-c", filepath.Join(t.TempDir(), "nope.json")}))
	})
}
