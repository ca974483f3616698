package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Media   MediaConfig   `json:"media"`
	Export  ExportConfig  `json:"export"`
	Preview PreviewConfig `json:"preview"`
	Logging LoggingConfig `json:"logging"`
	// Connections are named storage/asset connections the CLI can refer to
	Connections map[string]types.Connection `json:"connections,omitempty"`
}

// MediaConfig holds configuration for loading asset content
type MediaConfig struct {
	SupportedFormats []string `json:"supported_formats"`
	HTTPTimeout      Duration `json:"http_timeout"`
}

// ExportConfig holds the defaults applied to export options
type ExportConfig struct {
	AssetState    string `json:"asset_state"`
	IncludeImages bool   `json:"include_images"`
}

// PreviewConfig holds configuration for region preview rendering
type PreviewConfig struct {
	Format  string `json:"format"`
	Quality int    `json:"quality"`
	MaxSize int    `json:"max_size"`
}

// LoggingConfig holds configuration for the structured logger
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Duration is a time.Duration written as a string ("30s") in JSON
type Duration time.Duration

// MarshalJSON encodes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "30s" style strings or a number of seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Media: MediaConfig{
			SupportedFormats: []string{"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp"},
			HTTPTimeout:      Duration(30 * time.Second),
		},
		Export: ExportConfig{
			AssetState:    "visited",
			IncludeImages: true,
		},
		Preview: PreviewConfig{
			Format:  "png",
			Quality: 90,
			MaxSize: 1600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// connections may carry keys
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Media.SupportedFormats) == 0 {
		return fmt.Errorf("media.supported_formats cannot be empty: %w", errdefs.ErrInvalidArgument)
	}

	if c.Media.HTTPTimeout <= 0 {
		return fmt.Errorf("media.http_timeout must be positive: %w", errdefs.ErrInvalidArgument)
	}

	switch c.Export.AssetState {
	case "all", "visited", "tagged":
	default:
		return fmt.Errorf("export.asset_state must be one of all, visited, tagged: %w", errdefs.ErrInvalidArgument)
	}

	if c.Preview.Quality < 1 || c.Preview.Quality > 100 {
		return fmt.Errorf("preview.quality must be between 1 and 100: %w", errdefs.ErrInvalidArgument)
	}

	switch c.Preview.Format {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("preview.format must be png, jpg or webp: %w", errdefs.ErrInvalidArgument)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	for name, conn := range c.Connections {
		if conn.ProviderType == "" {
			return fmt.Errorf("connection %q has no providerType: %w", name, errdefs.ErrInvalidArgument)
		}
	}

	return nil
}

// ParseLevel converts a level name to a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q is not one of debug, info, warn, error: %w", level, errdefs.ErrInvalidArgument)
	}
}

// NewLogger builds the slog logger described by the logging section
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Logging.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Connection returns the named connection
func (c *Config) Connection(name string) (types.Connection, error) {
	conn, ok := c.Connections[name]
	if !ok {
		return types.Connection{}, fmt.Errorf("connection %q is not configured: %w", name, errdefs.ErrNotFound)
	}
	if conn.Name == "" {
		conn.Name = name
	}
	return conn.Clone(), nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-labeler", "config.json")
}
