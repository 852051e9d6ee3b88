package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// LogLevel defines the minimum severity for log output.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// CORS match modes understood by ServerConfig.CORSMatch. Anything else is
// compiled as a regular expression matched against the request Origin.
const (
	CORSMatchDisabled = ""
	CORSMatchWildcard = "*"
)

const (
	DefaultPort               = 8080
	DefaultFilesDir           = "public"
	DefaultIndexName          = "index.html"
	DefaultByteRangeChunkSize = 262144
	DefaultShutdownTimeout    = "5s"
)

// Config is the top-level configuration structure for the server.
type Config struct {
	Server  ServerConfig  `json:"server,omitempty" toml:"server,omitempty" yaml:"server,omitempty"`
	Static  StaticConfig  `json:"static,omitempty" toml:"static,omitempty" yaml:"static,omitempty"`
	Logging LoggingConfig `json:"logging,omitempty" toml:"logging,omitempty" yaml:"logging,omitempty"`
}

// ServerConfig holds listener and lifecycle settings.
type ServerConfig struct {
	Port int `json:"port,omitempty" toml:"port,omitempty" yaml:"port,omitempty"`

	// MaxConnections caps concurrently accepted connections. Zero means
	// unlimited.
	MaxConnections int `json:"max_connections,omitempty" toml:"max_connections,omitempty" yaml:"max_connections,omitempty"`

	// GracefulShutdownTimeout bounds request draining on shutdown,
	// e.g. "30s".
	GracefulShutdownTimeout string `json:"graceful_shutdown_timeout,omitempty" toml:"graceful_shutdown_timeout,omitempty" yaml:"graceful_shutdown_timeout,omitempty"`

	// CORSMatch selects the CORS policy: empty disables CORS headers,
	// "*" answers every origin, any other value is an origin pattern.
	CORSMatch string `json:"cors_match,omitempty" toml:"cors_match,omitempty" yaml:"cors_match,omitempty"`
}

// StaticConfig holds settings for the static file resolution layer.
type StaticConfig struct {
	FilesDir  string `json:"files_dir,omitempty" toml:"files_dir,omitempty" yaml:"files_dir,omitempty"`
	IndexName string `json:"index_name,omitempty" toml:"index_name,omitempty" yaml:"index_name,omitempty"`

	// MemoryCache enables the in-process content cache keyed by path and
	// query-string version token.
	MemoryCache bool `json:"memory_cache,omitempty" toml:"memory_cache,omitempty" yaml:"memory_cache,omitempty"`

	// ByteRangeChunkSize caps the number of bytes served for an
	// open-ended range request.
	ByteRangeChunkSize int64 `json:"byte_range_chunk_size,omitempty" toml:"byte_range_chunk_size,omitempty" yaml:"byte_range_chunk_size,omitempty"`

	// MimeTypes maps file extensions (with or without the leading dot)
	// to content types, merged over the built-in table.
	MimeTypes map[string]string `json:"mime_types,omitempty" toml:"mime_types,omitempty" yaml:"mime_types,omitempty"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level LogLevel `json:"level,omitempty" toml:"level,omitempty" yaml:"level,omitempty"`

	// Target is "stdout", "stderr" or a file path.
	Target string `json:"target,omitempty" toml:"target,omitempty" yaml:"target,omitempty"`

	// AccessLog toggles per-request completion logging. Defaults to
	// enabled when unset.
	AccessLog *bool `json:"access_log,omitempty" toml:"access_log,omitempty" yaml:"access_log,omitempty"`
}

// Default returns a Config populated with every default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file, decoding it by extension (.toml,
// .yaml/.yml or .json), applies defaults for unset fields and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (want .toml, .yaml or .json)", ext)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.GracefulShutdownTimeout == "" {
		c.Server.GracefulShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Static.FilesDir == "" {
		c.Static.FilesDir = DefaultFilesDir
	}
	if c.Static.IndexName == "" {
		c.Static.IndexName = DefaultIndexName
	}
	if c.Static.ByteRangeChunkSize == 0 {
		c.Static.ByteRangeChunkSize = DefaultByteRangeChunkSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}
	if c.Logging.Target == "" {
		c.Logging.Target = "stdout"
	}
	if c.Logging.AccessLog == nil {
		enabled := true
		c.Logging.AccessLog = &enabled
	}
}

// Validate checks the configuration for values that can never work.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 0-65535", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative, got %d", c.Server.MaxConnections)
	}
	if _, err := time.ParseDuration(c.Server.GracefulShutdownTimeout); err != nil {
		return fmt.Errorf("server.graceful_shutdown_timeout: %w", err)
	}
	if m := c.Server.CORSMatch; m != CORSMatchDisabled && m != CORSMatchWildcard {
		if _, err := regexp.Compile(m); err != nil {
			return fmt.Errorf("server.cors_match is not a valid pattern: %w", err)
		}
	}
	if c.Static.ByteRangeChunkSize <= 0 {
		return fmt.Errorf("static.byte_range_chunk_size must be positive, got %d", c.Static.ByteRangeChunkSize)
	}
	switch c.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		return fmt.Errorf("logging.level %q is not one of DEBUG, INFO, WARNING, ERROR", c.Logging.Level)
	}
	return nil
}

// ShutdownTimeout returns the parsed graceful shutdown timeout. Call
// only after Validate.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.GracefulShutdownTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultShutdownTimeout)
	}
	return d
}

// AccessLogEnabled reports whether per-request logging is on.
func (c *Config) AccessLogEnabled() bool {
	return c.Logging.AccessLog == nil || *c.Logging.AccessLog
}
