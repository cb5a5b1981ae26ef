// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment and command-line flags.
package config

import (
	"fmt"
	"os"
	"time"
)

// Blob backend selectors.
const (
	BlobBackendFS = "fs"
	BlobBackendS3 = "s3"
)

// TokenSecretEnv is the environment variable holding the HMAC secret for
// signing session tokens. The server refuses to start without it.
const TokenSecretEnv = "TOKEN_SECRET"

// Config holds runtime settings for the object storage server.
//
// Fields:
//   - EndpointAddr: bind address for the TCP listener.
//   - DataDir: trusted root directory for session, metadata and blob files.
//   - SecretKey: HMAC secret for signing session tokens (HS384). Taken from
//     the TOKEN_SECRET environment variable; there is no default.
//   - SessionIdleDuration: idle time after which unprivileged sessions are reaped.
//   - BlobBackend: "fs" (local files under DataDir) or "s3".
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
type Config struct {
	EndpointAddr        string
	DataDir             string
	SecretKey           string
	SessionIdleDuration time.Duration
	BlobBackend         string
	S3RootUser          string
	S3RootPassword      string
	S3Bucket            string
	S3Region            string
	S3BaseEndpoint      string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = "0.0.0.0:4000"
	c.DataDir = "/tmp"
	c.SessionIdleDuration = 1800 * time.Second
	c.BlobBackend = BlobBackendFS
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "vault"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
}

// Validate checks invariants that cannot be defaulted away.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("%s environment variable is not set", TokenSecretEnv)
	}
	if c.BlobBackend != BlobBackendFS && c.BlobBackend != BlobBackendS3 {
		return fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line
// flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	cfg.SecretKey = os.Getenv(TokenSecretEnv)
	parseFlags(cfg)
	return cfg
}
