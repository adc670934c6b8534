package core

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/cinememe/internal/backend/commandstructure"
	"github.com/jo-hoe/cinememe/internal/editor"
)

const (
	DefaultPort             = 8080
	DefaultThumbnailWidth   = 320
	DefaultCaptionFontScale = 0.08
	DefaultMaxUploadBytes   = 20 << 20
)

type Database struct {
	Type             string `yaml:"type" env:"DATABASE_TYPE"`
	ConnectionString string `yaml:"connectionString" env:"DATABASE_CONNECTION_STRING"`
}

// Redis holds the crop session store. An empty Addr keeps sessions in
// process.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type Editor struct {
	OutputFormat     string        `yaml:"outputFormat" env:"EDITOR_OUTPUT_FORMAT"`
	JPEGQuality      int           `yaml:"jpegQuality" env:"EDITOR_JPEG_QUALITY"`
	SessionTTL       time.Duration `yaml:"sessionTTL" env:"EDITOR_SESSION_TTL"`
	ThumbnailWidth   int           `yaml:"thumbnailWidth" env:"EDITOR_THUMBNAIL_WIDTH"`
	CaptionFontScale float64       `yaml:"captionFontScale" env:"EDITOR_CAPTION_FONT_SCALE"`
	MaxUploadBytes   int64         `yaml:"maxUploadBytes" env:"EDITOR_MAX_UPLOAD_BYTES"`
}

type ServiceConfig struct {
	Port        int                              `yaml:"port" env:"PORT"`
	Environment string                           `yaml:"environment" env:"ENVIRONMENT"`
	Database    Database                         `yaml:"database"`
	Redis       Redis                            `yaml:"redis"`
	Editor      Editor                           `yaml:"editor"`
	Commands    []commandstructure.CommandConfig `yaml:"commands"`
}

// LoadConfig loads configuration from the specified YAML file. Environment
// variables override file values; unset values fall back to defaults.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultConfig returns the configuration used when no file is given: an
// in-memory database and in-process crop sessions.
func DefaultConfig() *ServiceConfig {
	config := &ServiceConfig{}
	config.applyDefaults()
	return config
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.ConnectionString == "" {
		c.Database.ConnectionString = ":memory:"
	}
	if c.Editor.OutputFormat == "" {
		c.Editor.OutputFormat = string(editor.FormatPNG)
	}
	if c.Editor.JPEGQuality == 0 {
		c.Editor.JPEGQuality = editor.DefaultJPEGQuality
	}
	if c.Editor.SessionTTL == 0 {
		c.Editor.SessionTTL = 30 * time.Minute
	}
	if c.Editor.ThumbnailWidth == 0 {
		c.Editor.ThumbnailWidth = DefaultThumbnailWidth
	}
	if c.Editor.CaptionFontScale == 0 {
		c.Editor.CaptionFontScale = DefaultCaptionFontScale
	}
	if c.Editor.MaxUploadBytes == 0 {
		c.Editor.MaxUploadBytes = DefaultMaxUploadBytes
	}
}

// Validate checks a loaded configuration.
func (c *ServiceConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if _, err := editor.ParseFormat(c.Editor.OutputFormat); err != nil {
		return fmt.Errorf("invalid editor configuration: %w", err)
	}
	if c.Editor.JPEGQuality < 1 || c.Editor.JPEGQuality > 100 {
		return fmt.Errorf("invalid editor configuration: jpegQuality %d is outside [1, 100]", c.Editor.JPEGQuality)
	}
	if c.Editor.SessionTTL < 0 {
		return fmt.Errorf("invalid editor configuration: negative sessionTTL")
	}
	if c.Editor.ThumbnailWidth < 0 || c.Editor.MaxUploadBytes < 0 {
		return fmt.Errorf("invalid editor configuration: negative size")
	}
	if c.Editor.CaptionFontScale < 0 || c.Editor.CaptionFontScale > 0.5 {
		return fmt.Errorf("invalid editor configuration: captionFontScale %g is outside (0, 0.5]", c.Editor.CaptionFontScale)
	}
	if err := validateCommands(c.Commands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}
	return nil
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []commandstructure.CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		// Validate name is not empty
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		// Validate name is unique
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true
	}

	return nil
}
