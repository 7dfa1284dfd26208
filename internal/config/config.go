// Package config loads bulkindex settings from environment variables,
// applies defaults and validates everything on startup.
package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Run      RunConfig
	Archive  ArchiveConfig
	Server   ServerConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// DatabaseConfig selects and tunes the reference database backend.
type DatabaseConfig struct {
	// Driver is postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the snapshot database file used by the sqlite driver.
	SQLitePath string `env:"SQLITE_PATH" default:"mgd-snapshot.db"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RunConfig holds the file locations and behavior of a run.
type RunConfig struct {
	// InputFileDefault is the input file name used when none is given.
	InputFileDefault string `env:"INPUT_FILE_DEFAULT"`

	// InputDir resolves a relative InputFileDefault.
	InputDir string `env:"INPUTDIR"`

	// OutputDir receives the bulk-load file (default: current directory)
	OutputDir string `env:"OUTPUTDIR" default:"."`

	// DiagFile and ErrorFile are the load mode log files.
	// They default to files in OutputDir.
	DiagFile  string `env:"LOG_DIAG"`
	ErrorFile string `env:"LOG_ERROR"`

	// Encoding of the input file: latin1 or utf-8 (default: latin1)
	Encoding string `env:"INPUT_ENCODING" default:"latin1"`

	// Timeout bounds a whole run (default: 30m)
	Timeout time.Duration `env:"RUN_TIMEOUT" default:"30m"`

	// LoadEnabled copies a clean bulk file into the database (default: false)
	LoadEnabled bool `env:"BULKLOAD_ENABLED" default:"false"`
}

// ArchiveConfig selects where run artifacts are published.
type ArchiveConfig struct {
	// Driver is none, fs, s3 or memory (default: none)
	Driver string `env:"ARCHIVE_DRIVER" default:"none"`

	FSRoot string `env:"ARCHIVE_FS_ROOT" default:"./archive"`

	S3Bucket    string `env:"ARCHIVE_S3_BUCKET"`
	S3Region    string `env:"ARCHIVE_S3_REGION" default:"us-east-1"`
	S3Endpoint  string `env:"ARCHIVE_S3_ENDPOINT"`
	S3PathStyle bool   `env:"ARCHIVE_S3_PATH_STYLE" default:"false"`

	// Prefix is prepended to every artifact key (default: bulkindex)
	Prefix string `env:"ARCHIVE_PREFIX" default:"bulkindex"`
}

// ServerConfig holds preview service settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// MaxUploadSize caps a preview request body in bytes (default: 32MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"33554432"`

	// MaxConcurrentRuns caps simultaneous previews (default: 4)
	MaxConcurrentRuns int `env:"SERVER_MAX_CONCURRENT_RUNS" default:"4"`

	// RunWaitTime is how long a preview waits for a free slot (default: 30s)
	RunWaitTime time.Duration `env:"SERVER_RUN_WAIT_TIME" default:"30s"`

	// TrustedProxies is a comma separated list of CIDRs whose X-Real-IP and
	// X-Forwarded-For headers are honored.
	TrustedProxies string `env:"SERVER_TRUSTED_PROXIES"`

	// APIKeys is a comma separated list of keys accepted in X-API-Key.
	// Empty disables authentication.
	APIKeys string `env:"SERVER_API_KEYS"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics of a CLI run in the
	// node_exporter textfile format.
	Textfile string `env:"METRICS_TEXTFILE"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// TrustedProxyList splits TrustedProxies.
func (c *ServerConfig) TrustedProxyList() []string { return splitList(c.TrustedProxies) }

// APIKeyList splits APIKeys.
func (c *ServerConfig) APIKeyList() []string { return splitList(c.APIKeys) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DiagPath returns the load mode diagnostics file.
func (c *RunConfig) DiagPath() string {
	if c.DiagFile != "" {
		return c.DiagFile
	}
	return filepath.Join(c.OutputDir, "curatorbulkindexload.diag.log")
}

// ErrorPath returns the load mode error file.
func (c *RunConfig) ErrorPath() string {
	if c.ErrorFile != "" {
		return c.ErrorFile
	}
	return filepath.Join(c.OutputDir, "curatorbulkindexload.error.log")
}

// InputPath returns name unchanged, relative to the working directory.
// An empty name selects InputFileDefault, resolved against InputDir.
func (c *RunConfig) InputPath(name string) string {
	if name != "" {
		return name
	}
	name = c.InputFileDefault
	if name == "" || filepath.IsAbs(name) || c.InputDir == "" {
		return name
	}
	return filepath.Join(c.InputDir, name)
}
