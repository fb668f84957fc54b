package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/merchantdesk/internal/flagx"
	"github.com/dmitrijs2005/merchantdesk/internal/timex"
)

// jsonConfig is the on-disk shape of the config file. Pointer fields let an
// explicit false or empty value be told apart from an absent key.
type jsonConfig struct {
	HTTPAddr        string          `json:"http_addr"`
	DatabaseDSN     string          `json:"database_dsn"`
	JWTSecret       string          `json:"jwt_secret"`
	JWKSURL         string          `json:"jwks_url"`
	JWTIssuer       string          `json:"jwt_issuer"`
	JWTAudience     string          `json:"jwt_audience"`
	S3AccessKey     string          `json:"s3_access_key"`
	S3SecretKey     string          `json:"s3_secret_key"`
	S3Bucket        string          `json:"s3_bucket"`
	S3Region        string          `json:"s3_region"`
	S3BaseEndpoint  string          `json:"s3_base_endpoint"`
	S3UsePathStyle  *bool           `json:"s3_use_path_style"`
	AllowedOrigins  []string        `json:"allowed_origins"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`
	LogLevel        string          `json:"log_level"`
}

// parseJSON overlays values from the file named by -c/-config onto config.
// Keys missing from the file leave the current value untouched.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var c jsonConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return err
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.JWTSecret, c.JWTSecret)
	setString(&config.JWKSURL, c.JWKSURL)
	setString(&config.JWTIssuer, c.JWTIssuer)
	setString(&config.JWTAudience, c.JWTAudience)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	if c.AllowedOrigins != nil {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
