// Package config provides configuration loading and management for the
// playlist sync server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// StorageTypeFile keeps sync state on the local filesystem
	StorageTypeFile = "file"

	// StorageTypeDatabase keeps sync state and videos in Postgres
	StorageTypeDatabase = "database"
)

// Defaults applied by ApplyDefaults when the corresponding field is unset.
const (
	defaultDataDir       = "./data"
	defaultLeaseTTL      = 5 * time.Minute
	defaultGraceWindow   = 30 * time.Minute
	defaultIdleBatchSize = 20
	defaultHotInterval   = 2 * time.Minute
	defaultSlowInterval  = 30 * time.Minute
	defaultActiveWindow  = 6 * time.Hour
	defaultCacheCapacity = 256
	defaultCacheTTL      = 5 * time.Minute
	defaultFeedTimeout   = 10 * time.Second
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

		// Validate the path to prevent path traversal attacks
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
	// Playlists is the set of tracked playlists
	Playlists []PlaylistConfig `yaml:"playlists"`

	Storage  StorageConfig   `yaml:"storage"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Feed     FeedConfig      `yaml:"feed"`
	Sync     SyncConfig      `yaml:"sync,omitempty"`
	WebSub   *WebSubConfig   `yaml:"websub,omitempty"`
	CDN      *CDNConfig      `yaml:"cdn,omitempty"`
	Server   ServerConfig    `yaml:"server,omitempty"`
	Cache    CacheConfig     `yaml:"cache,omitempty"`
}

// PlaylistConfig identifies one tracked playlist
type PlaylistConfig struct {
	// ID is the upstream playlist identifier
	ID string `yaml:"id"`

	// Title is the display title used in UI projections
	Title string `yaml:"title,omitempty"`
}

// StorageConfig selects the sync state backend
type StorageConfig struct {
	// Type is "file" or "database"
	Type string `yaml:"type"`

	// DataDir is the base directory for file-backed state
	DataDir string `yaml:"dataDir,omitempty"`
}

// FeedConfig defines the upstream playlist feed endpoint
type FeedConfig struct {
	// BaseURL is the base API URL of the video hosting feed (without path)
	BaseURL string `yaml:"baseURL"`

	// Timeout is the per-request timeout (e.g. "10s")
	Timeout string `yaml:"timeout,omitempty"`
}

// SyncConfig defines sync engine tunables
type SyncConfig struct {
	// LeaseTTL bounds how long one run may hold the sync lease (e.g. "5m").
	// It must be comfortably longer than a worst-case fetch+diff+apply
	// but short enough to bound recovery from a crashed owner.
	LeaseTTL string `yaml:"leaseTTL,omitempty"`

	// GraceWindow is how long an item may be absent from the feed before
	// removal may be finalized (e.g. "30m")
	GraceWindow string `yaml:"graceWindow,omitempty"`

	// IdleBatchSize is the number of idle re-checks per coordinator pass
	IdleBatchSize int `yaml:"idleBatchSize,omitempty"`

	// HotInterval is the poll cadence while a playlist is inside its
	// active window (e.g. "2m")
	HotInterval string `yaml:"hotInterval,omitempty"`

	// SlowInterval is the default poll cadence (e.g. "30m")
	SlowInterval string `yaml:"slowInterval,omitempty"`

	// ActiveWindow is how long a playlist stays hot after a sync that
	// observed changes (e.g. "6h")
	ActiveWindow string `yaml:"activeWindow,omitempty"`
}

// WebSubConfig defines the WebSub hub used for change notifications
type WebSubConfig struct {
	// HubURL is the WebSub hub publish endpoint
	HubURL string `yaml:"hubURL"`

	// TopicTemplate builds the per-video topic URL from a video id,
	// e.g. "https://example.com/videos/%s/feed.xml"
	TopicTemplate string `yaml:"topicTemplate"`

	// MaxConcurrent bounds parallel notification posts
	MaxConcurrent int `yaml:"maxConcurrent,omitempty"`
}

// CDNConfig defines the CDN purge API
type CDNConfig struct {
	// Endpoint is the purge API URL
	Endpoint string `yaml:"endpoint"`

	// TokenFile is the path to a file containing the API token.
	// A missing token is a configuration condition, not an error:
	// purge becomes a logged no-op.
	TokenFile string `yaml:"tokenFile,omitempty"`
}

// ServerConfig defines the HTTP server settings
type ServerConfig struct {
	// AdminTokenFile is the path to a file containing the shared admin
	// bearer token. Admin routes are disabled when unset.
	AdminTokenFile string `yaml:"adminTokenFile,omitempty"`
}

// CacheConfig defines the bounded read-through cache used by read paths
type CacheConfig struct {
	// Capacity is the maximum number of cached entries
	Capacity int `yaml:"capacity,omitempty"`

	// TTL is the entry time-to-live (e.g. "5m")
	TTL string `yaml:"ttl,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// This is the recommended approach for production deployments.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from PSYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv("PSYNC_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or PSYNC_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper
// password handling. The password is URL-escaped to handle special characters.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
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

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DataDir returns the configured data directory, using the default if unset
func (c *Config) DataDir() string {
	if c.Storage.DataDir == "" {
		return defaultDataDir
	}
	return c.Storage.DataDir
}

// LeaseTTL returns the parsed lease TTL, falling back to the default
func (c *Config) LeaseTTL() time.Duration {
	return durationOrDefault(c.Sync.LeaseTTL, defaultLeaseTTL)
}

// GraceWindow returns the parsed removal grace window
func (c *Config) GraceWindow() time.Duration {
	return durationOrDefault(c.Sync.GraceWindow, defaultGraceWindow)
}

// IdleBatchSize returns the idle re-check batch size
func (c *Config) IdleBatchSize() int {
	if c.Sync.IdleBatchSize <= 0 {
		return defaultIdleBatchSize
	}
	return c.Sync.IdleBatchSize
}

// HotInterval returns the poll cadence for playlists inside their active window
func (c *Config) HotInterval() time.Duration {
	return durationOrDefault(c.Sync.HotInterval, defaultHotInterval)
}

// SlowInterval returns the default poll cadence
func (c *Config) SlowInterval() time.Duration {
	return durationOrDefault(c.Sync.SlowInterval, defaultSlowInterval)
}

// ActiveWindow returns how long a playlist stays hot after observed changes
func (c *Config) ActiveWindow() time.Duration {
	return durationOrDefault(c.Sync.ActiveWindow, defaultActiveWindow)
}

// CacheCapacity returns the read-through cache capacity
func (c *Config) CacheCapacity() int {
	if c.Cache.Capacity <= 0 {
		return defaultCacheCapacity
	}
	return c.Cache.Capacity
}

// CacheTTL returns the read-through cache entry TTL
func (c *Config) CacheTTL() time.Duration {
	return durationOrDefault(c.Cache.TTL, defaultCacheTTL)
}

// FeedTimeout returns the per-request feed timeout
func (c *Config) FeedTimeout() time.Duration {
	return durationOrDefault(c.Feed.Timeout, defaultFeedTimeout)
}

func durationOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if len(c.Playlists) == 0 {
		return fmt.Errorf("at least one playlist must be configured")
	}

	playlistIDs := make(map[string]bool)
	for i, pl := range c.Playlists {
		if pl.ID == "" {
			return fmt.Errorf("playlist[%d]: id is required", i)
		}
		if playlistIDs[pl.ID] {
			return fmt.Errorf("playlist[%d]: duplicate playlist id '%s'", i, pl.ID)
		}
		playlistIDs[pl.ID] = true
	}

	switch c.Storage.Type {
	case "", StorageTypeFile:
		// file is the default; DataDir has a default as well
	case StorageTypeDatabase:
		if c.Database == nil {
			return fmt.Errorf("storage type '%s' requires a database section", StorageTypeDatabase)
		}
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database port is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed baseURL is required")
	}
	if _, err := url.Parse(c.Feed.BaseURL); err != nil {
		return fmt.Errorf("invalid feed baseURL: %w", err)
	}

	if err := validateDurations(map[string]string{
		"sync.leaseTTL":     c.Sync.LeaseTTL,
		"sync.graceWindow":  c.Sync.GraceWindow,
		"sync.hotInterval":  c.Sync.HotInterval,
		"sync.slowInterval": c.Sync.SlowInterval,
		"sync.activeWindow": c.Sync.ActiveWindow,
		"feed.timeout":      c.Feed.Timeout,
		"cache.ttl":         c.Cache.TTL,
	}); err != nil {
		return err
	}

	if c.WebSub != nil {
		if c.WebSub.HubURL == "" {
			return fmt.Errorf("websub hubURL is required when websub is configured")
		}
		if !strings.Contains(c.WebSub.TopicTemplate, "%s") {
			return fmt.Errorf("websub topicTemplate must contain a '%%s' placeholder")
		}
	}

	if c.CDN != nil && c.CDN.Endpoint == "" {
		return fmt.Errorf("cdn endpoint is required when cdn is configured")
	}

	return nil
}

func validateDurations(fields map[string]string) error {
	for name, value := range fields {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}
	return nil
}
