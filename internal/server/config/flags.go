package config

import (
	"flag"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/merchantdesk/internal/flagx"
)

var ownFlags = []string{"-a", "-d", "-s", "-k", "-i", "-aud", "-u", "-p", "-b", "-g", "-e", "-o", "-t", "-l"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HS256 secret
//	-k string   JWKS URL of the identity provider
//	-i string   expected JWT issuer
//	-aud string expected JWT audience
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-o string   comma separated CORS origins
//	-t int      graceful shutdown timeout, seconds
//	-l string   log level
//
// Only the flags above are picked out of args, so the same command line may
// carry flags for other components.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT HS256 secret")
	fs.StringVar(&config.JWKSURL, "k", config.JWKSURL, "JWKS URL")
	fs.StringVar(&config.JWTIssuer, "i", config.JWTIssuer, "expected JWT issuer")
	fs.StringVar(&config.JWTAudience, "aud", config.JWTAudience, "expected JWT audience")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	origins := fs.String("o", strings.Join(config.AllowedOrigins, ","), "comma separated CORS origins")
	shutdown := fs.Int("t", int(config.ShutdownTimeout.Seconds()), "shutdown timeout (in seconds)")

	if err := fs.Parse(flagx.Select(args, ownFlags...)); err != nil {
		return err
	}

	config.AllowedOrigins = splitList(*origins)
	config.ShutdownTimeout = time.Duration(*shutdown) * time.Second
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
