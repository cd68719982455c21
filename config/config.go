// Package config provides configuration loading and management for lccshelf.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Config represents the complete lccshelf configuration
type Config struct {
	Classification ClassificationConfig `yaml:"classification"`
	Index          IndexConfig          `yaml:"index"`
	NATS           NATSConfig           `yaml:"nats"`
	Browse         BrowseConfig         `yaml:"browse"`
}

// ClassificationConfig locates the classification outline
type ClassificationConfig struct {
	// Dir holds one outline file per top-level class
	Dir string `yaml:"dir"`
	// Pattern selects outline files below Dir (doublestar syntax)
	Pattern string `yaml:"pattern"`
	// Watch reloads the outline when its files change (default: false)
	Watch *bool `yaml:"watch,omitempty"`
	// Validate logs outline inconsistencies at load (default: true)
	Validate *bool `yaml:"validate,omitempty"`
}

// ShouldWatch reports whether outline reloading is enabled.
func (c ClassificationConfig) ShouldWatch() bool {
	return c.Watch != nil && *c.Watch
}

// ShouldValidate reports whether outline validation is enabled.
func (c ClassificationConfig) ShouldValidate() bool {
	return c.Validate == nil || *c.Validate
}

// IndexConfig configures the local SQLite term index
type IndexConfig struct {
	// Path is the database file
	Path string `yaml:"path"`
}

// NATSConfig configures the shared window cache
type NATSConfig struct {
	// URL is the NATS server URL (empty = process-local cache)
	URL string `yaml:"url"`
	// Bucket is the JetStream KV bucket for cached windows
	Bucket string `yaml:"bucket"`
}

// BrowseConfig configures shelf browsing
type BrowseConfig struct {
	// DefaultWidth is used when a request gives no width
	DefaultWidth int `yaml:"default_width"`
	// MaxWidth caps requested widths
	MaxWidth int `yaml:"max_width"`
	// CacheTTL is how long assembled windows are cached (0 = no caching,
	// default: DefaultCacheTTL)
	CacheTTL *time.Duration `yaml:"cache_ttl,omitempty"`
}

// DefaultCacheTTL applies when no layer sets browse.cache_ttl.
const DefaultCacheTTL = 5 * time.Minute

// TTL returns the effective window cache lifetime.
func (b BrowseConfig) TTL() time.Duration {
	if b.CacheTTL == nil {
		return DefaultCacheTTL
	}
	return *b.CacheTTL
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Classification: ClassificationConfig{
			Dir:     "outline",
			Pattern: "**/*.{yml,yaml}",
		},
		Index: IndexConfig{
			Path: "lccshelf.db",
		},
		NATS: NATSConfig{
			URL:    "", // Process-local cache
			Bucket: "LCCSHELF_WINDOWS",
		},
		Browse: BrowseConfig{
			DefaultWidth: 7,
			MaxWidth:     100,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Classification.Dir == "" {
		return fmt.Errorf("classification.dir is required")
	}
	if c.Classification.Pattern != "" && !doublestar.ValidatePattern(c.Classification.Pattern) {
		return fmt.Errorf("classification.pattern %q is not a valid glob", c.Classification.Pattern)
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index.path is required")
	}
	if c.Browse.DefaultWidth <= 0 {
		return fmt.Errorf("browse.default_width must be positive")
	}
	if c.Browse.MaxWidth < c.Browse.DefaultWidth {
		return fmt.Errorf("browse.max_width must be at least browse.default_width")
	}
	if c.Browse.TTL() < 0 {
		return fmt.Errorf("browse.cache_ttl must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file over the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values; pointer fields override whenever set, including to
// false or zero)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Classification
	if other.Classification.Dir != "" {
		c.Classification.Dir = other.Classification.Dir
	}
	if other.Classification.Pattern != "" {
		c.Classification.Pattern = other.Classification.Pattern
	}
	if other.Classification.Watch != nil {
		v := *other.Classification.Watch
		c.Classification.Watch = &v
	}
	if other.Classification.Validate != nil {
		v := *other.Classification.Validate
		c.Classification.Validate = &v
	}

	// Index
	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Bucket != "" {
		c.NATS.Bucket = other.NATS.Bucket
	}

	// Browse
	if other.Browse.DefaultWidth != 0 {
		c.Browse.DefaultWidth = other.Browse.DefaultWidth
	}
	if other.Browse.MaxWidth != 0 {
		c.Browse.MaxWidth = other.Browse.MaxWidth
	}
	if other.Browse.CacheTTL != nil {
		v := *other.Browse.CacheTTL
		c.Browse.CacheTTL = &v
	}
}

// resolvePaths makes relative file locations relative to base.
func (c *Config) resolvePaths(base string) {
	if c.Classification.Dir != "" && !filepath.IsAbs(c.Classification.Dir) {
		c.Classification.Dir = filepath.Join(base, c.Classification.Dir)
	}
	if c.Index.Path != "" && c.Index.Path != ":memory:" && !filepath.IsAbs(c.Index.Path) {
		c.Index.Path = filepath.Join(base, c.Index.Path)
	}
}
