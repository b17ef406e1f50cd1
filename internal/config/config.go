// Package config provides configuration loading and management for the npm sync server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/npm-sync/internal/telemetry"
)

// EnvPrefix is the prefix used for environment variable overrides
const EnvPrefix = "NPM_SYNC"

// StorageType identifies the storage backend family
type StorageType string

const (
	// StorageTypeFile keeps state on local disk and queues in memory (single process)
	StorageTypeFile StorageType = "file"

	// StorageTypeDatabase keeps everything in PostgreSQL
	StorageTypeDatabase StorageType = "database"
)

// Queue names used across the pipeline
const (
	QueueSync         = "sync"
	QueueBulkSync     = "bulk-sync"
	QueueBackfillTick = "backfill-tick"
	QueueChat         = "chat-delivery"
	QueueEmail        = "email-delivery"
)

const (
	defaultRegistryURL  = "https://registry.npmjs.org"
	defaultReplicateURL = "https://replicate.npmjs.com"
	defaultDownloadsURL = "https://api.npmjs.org"
	defaultOSVURL       = "https://api.osv.dev"
	defaultGitHubURL    = "https://api.github.com"
	defaultBaseDir      = "./data"

	defaultHTTPTimeout = 30 * time.Second

	defaultPollLimit       = 1000
	defaultPollInterval    = 2 * time.Second
	defaultPollMaxInterval = 30 * time.Second
	defaultPollGrowth      = 2.0
	defaultErrorMultiplier = 5

	defaultBackfillBatchSize = 500
	defaultBackfillChunkSize = 50
	defaultTickInterval      = 5 * time.Second
	defaultEnumeratePageSize = 10000

	defaultChangelogMaxLength = 500
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Registry      RegistryConfig         `yaml:"registry"`
	Changes       ChangesConfig          `yaml:"changes"`
	Backfill      BackfillConfig         `yaml:"backfill"`
	Queues        map[string]QueueConfig `yaml:"queues,omitempty"`
	Notifications NotificationsConfig    `yaml:"notifications"`
	Telemetry     *telemetry.Config      `yaml:"telemetry,omitempty"`
	FileStorage   *FileStorageConfig     `yaml:"fileStorage,omitempty"`
	Database      *DatabaseConfig        `yaml:"database,omitempty"`
}

// RegistryConfig defines the upstream npm endpoints
type RegistryConfig struct {
	// URL is the packument endpoint base, e.g. https://registry.npmjs.org
	URL string `yaml:"url,omitempty"`

	// ReplicateURL serves the _changes feed
	ReplicateURL string `yaml:"replicateUrl,omitempty"`

	// DownloadsURL serves the download count API
	DownloadsURL string `yaml:"downloadsUrl,omitempty"`

	// Timeout for a single upstream request (e.g. "30s")
	Timeout string `yaml:"timeout,omitempty"`
}

// ChangesConfig defines change feed polling settings
type ChangesConfig struct {
	Enabled         *bool   `yaml:"enabled,omitempty"`
	Limit           int     `yaml:"limit,omitempty"`
	Interval        string  `yaml:"interval,omitempty"`
	MaxInterval     string  `yaml:"maxInterval,omitempty"`
	Growth          float64 `yaml:"growth,omitempty"`
	ErrorMultiplier int     `yaml:"errorMultiplier,omitempty"`
}

// BackfillConfig defines backfill orchestration settings
type BackfillConfig struct {
	BatchSize         int    `yaml:"batchSize,omitempty"`
	ChunkSize         int    `yaml:"chunkSize,omitempty"`
	TickInterval      string `yaml:"tickInterval,omitempty"`
	EnumeratePageSize int    `yaml:"enumeratePageSize,omitempty"`
}

// QueueConfig overrides the consumer settings of one queue
type QueueConfig struct {
	Concurrency int              `yaml:"concurrency,omitempty"`
	RateLimit   *RateLimitConfig `yaml:"rateLimit,omitempty"`
	MaxAttempts int              `yaml:"maxAttempts,omitempty"`
	Backoff     string           `yaml:"backoff,omitempty"`
	MaxBackoff  string           `yaml:"maxBackoff,omitempty"`
	Visibility  string           `yaml:"visibility,omitempty"`
	Retention   *RetentionConfig `yaml:"retention,omitempty"`
}

// RateLimitConfig allows Max jobs per Period
type RateLimitConfig struct {
	Max    int    `yaml:"max"`
	Period string `yaml:"period"`
}

// RetentionConfig caps completed and failed job history
type RetentionConfig struct {
	Completed int `yaml:"completed"`
	Failed    int `yaml:"failed"`
}

// NotificationsConfig defines enrichment and delivery settings
type NotificationsConfig struct {
	OSVURL             string       `yaml:"osvUrl,omitempty"`
	GitHubURL          string       `yaml:"githubUrl,omitempty"`
	GitHubTokenFile    string       `yaml:"githubTokenFile,omitempty"`
	ChangelogMaxLength int          `yaml:"changelogMaxLength,omitempty"`
	Email              *EmailConfig `yaml:"email,omitempty"`
}

// EmailConfig defines the transactional email HTTP API
type EmailConfig struct {
	Endpoint   string `yaml:"endpoint"`
	From       string `yaml:"from"`
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`
	AppURL     string `yaml:"appUrl,omitempty"`
}

// FileStorageConfig defines local file storage settings
type FileStorageConfig struct {
	// BaseDir is the directory holding persisted state
	BaseDir string `yaml:"baseDir"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from NPM_SYNC_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		return readSecretFile(d.PasswordFile)
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	return d.connectionString("postgres")
}

// GetMigrationURL returns the connection URL understood by the pgx/v5 migrate driver
func (d *DatabaseConfig) GetMigrationURL() (string, error) {
	return d.connectionString("pgx5")
}

func (d *DatabaseConfig) connectionString(scheme string) (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme,
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// GetConnMaxLifetime returns the parsed connection lifetime, or zero if unset
func (d *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	return parseDurationOr(d.ConnMaxLifetime, 0)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration document
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetStorageType returns database when a database section is present, file otherwise
func (c *Config) GetStorageType() StorageType {
	if c.Database != nil {
		return StorageTypeDatabase
	}
	return StorageTypeFile
}

// GetFileStorageBaseDir returns the base directory for file storage
func (c *Config) GetFileStorageBaseDir() string {
	if c.FileStorage == nil || c.FileStorage.BaseDir == "" {
		return defaultBaseDir
	}
	return c.FileStorage.BaseDir
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	for field, value := range map[string]string{
		"registry.url":            c.Registry.URL,
		"registry.replicateUrl":   c.Registry.ReplicateURL,
		"registry.downloadsUrl":   c.Registry.DownloadsURL,
		"notifications.osvUrl":    c.Notifications.OSVURL,
		"notifications.githubUrl": c.Notifications.GitHubURL,
	} {
		if value == "" {
			continue
		}
		if _, err := url.ParseRequestURI(value); err != nil {
			return fmt.Errorf("%s must be a valid URL: %w", field, err)
		}
	}

	durations := map[string]string{
		"registry.timeout":      c.Registry.Timeout,
		"changes.interval":      c.Changes.Interval,
		"changes.maxInterval":   c.Changes.MaxInterval,
		"backfill.tickInterval": c.Backfill.TickInterval,
	}
	for name, q := range c.Queues {
		durations["queues."+name+".backoff"] = q.Backoff
		durations["queues."+name+".maxBackoff"] = q.MaxBackoff
		durations["queues."+name+".visibility"] = q.Visibility
		if q.RateLimit != nil {
			if q.RateLimit.Max <= 0 {
				return fmt.Errorf("queues.%s.rateLimit.max must be positive", name)
			}
			if q.RateLimit.Period == "" {
				return fmt.Errorf("queues.%s.rateLimit.period is required", name)
			}
			durations["queues."+name+".rateLimit.period"] = q.RateLimit.Period
		}
		if q.Concurrency < 0 {
			return fmt.Errorf("queues.%s.concurrency must not be negative", name)
		}
	}
	if err := validateDurations(durations); err != nil {
		return err
	}

	if c.Changes.Growth != 0 && c.Changes.Growth < 1 {
		return fmt.Errorf("changes.growth must be at least 1, got %v", c.Changes.Growth)
	}
	if c.Backfill.ChunkSize < 0 || c.Backfill.BatchSize < 0 {
		return fmt.Errorf("backfill sizes must not be negative")
	}
	if c.Backfill.ChunkSize > 0 && c.Backfill.BatchSize > 0 && c.Backfill.ChunkSize > c.Backfill.BatchSize {
		return fmt.Errorf("backfill.chunkSize (%d) cannot exceed backfill.batchSize (%d)",
			c.Backfill.ChunkSize, c.Backfill.BatchSize)
	}

	if c.Notifications.Email != nil {
		if c.Notifications.Email.Endpoint == "" {
			return fmt.Errorf("notifications.email.endpoint is required")
		}
		if c.Notifications.Email.From == "" {
			return fmt.Errorf("notifications.email.from is required")
		}
	}

	if c.Database != nil {
		if err := c.Database.validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("host is required")
	}
	if d.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if d.User == "" {
		return fmt.Errorf("user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("connMaxLifetime must be a valid duration: %w", err)
		}
	}
	return nil
}

func validateDurations(durations map[string]string) error {
	for name, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '5s', '1m'): %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// readSecretFile reads a secret and trims surrounding whitespace
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func intOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
