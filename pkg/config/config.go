// Copyright 2024-2026 Aiku AI

// Package config loads the importer configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix/id"
)

//go:embed example-config.json
var ExampleConfig string

// Environment variables that override values from the config file.
const (
	EnvPassword   = "RC2MATRIX_PASSWORD"
	EnvHomeserver = "RC2MATRIX_HOMESERVER"
	EnvUser       = "RC2MATRIX_USER"
	EnvRoomID     = "RC2MATRIX_ROOM_ID"
)

const (
	DefaultDeviceName  = "rc2matrix"
	DefaultInputDir    = "input"
	DefaultSessionFile = "credentials.json"
	DefaultStoreDir    = "store"
	DefaultPickleKey   = "rc2matrix"
)

// Config holds the importer configuration. The file is JSON, which the
// YAML decoder accepts as well.
type Config struct {
	Homeserver string    `yaml:"homeserver"`
	User       string    `yaml:"user"`
	Password   string    `yaml:"password"`
	DeviceName string    `yaml:"device_name"`
	RoomID     id.RoomID `yaml:"room_id"`

	// InputFile is resolved relative to InputDir.
	InputFile string `yaml:"input_file"`
	InputDir  string `yaml:"input_dir"`
	// AssetsDir defaults to the assets directory inside InputDir.
	AssetsDir   string `yaml:"assets_dir"`
	SessionFile string `yaml:"session_file"`

	Encryption bool   `yaml:"encryption"`
	StoreDir   string `yaml:"store_dir"`
	PickleKey  string `yaml:"pickle_key"`

	Logging zeroconfig.Config `yaml:"logging"`
}

// Default returns a config with every optional field set.
func Default() *Config {
	minLevel := zerolog.InfoLevel
	return &Config{
		DeviceName:  DefaultDeviceName,
		InputDir:    DefaultInputDir,
		SessionFile: DefaultSessionFile,
		Encryption:  true,
		StoreDir:    DefaultStoreDir,
		Logging: zeroconfig.Config{
			MinLevel: &minLevel,
			Writers: []zeroconfig.WriterConfig{{
				Type:   zeroconfig.WriterTypeStdout,
				Format: zeroconfig.LogFormatPrettyColored,
			}},
		},
	}
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	*c = *Default()
	return node.Decode((*rawConfig)(c))
}

// Load reads the config file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a config document and fills in defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.PostProcess()
	return cfg, nil
}

// LoadDotEnv loads environment variables from a dotenv file. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides config values with the RC2MATRIX_* variables that are
// set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPassword); v != "" {
		c.Password = v
	}
	if v := os.Getenv(EnvHomeserver); v != "" {
		c.Homeserver = v
	}
	if v := os.Getenv(EnvUser); v != "" {
		c.User = v
	}
	if v := os.Getenv(EnvRoomID); v != "" {
		c.RoomID = id.RoomID(v)
	}
}

// PostProcess fills in values derived from other fields.
func (c *Config) PostProcess() {
	if c.DeviceName == "" {
		c.DeviceName = DefaultDeviceName
	}
	if c.InputDir == "" {
		c.InputDir = DefaultInputDir
	}
	if c.AssetsDir == "" {
		c.AssetsDir = filepath.Join(c.InputDir, "assets")
	}
	if c.StoreDir == "" {
		c.StoreDir = DefaultStoreDir
	}
	if c.PickleKey == "" {
		c.PickleKey = DefaultPickleKey
	}
}

// Validate checks that every required field is present.
func (c *Config) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"homeserver", c.Homeserver},
		{"user", c.User},
		{"password", c.Password},
		{"room_id", string(c.RoomID)},
		{"input_file", c.InputFile},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config fields: %v", missing)
	}
	if c.RoomID[0] != '!' {
		return fmt.Errorf("room_id %q is not a room ID", c.RoomID)
	}
	return nil
}

// InputPath returns the path of the export file.
func (c *Config) InputPath() string {
	if filepath.IsAbs(c.InputFile) {
		return c.InputFile
	}
	return filepath.Join(c.InputDir, c.InputFile)
}

// Logger compiles the logging block.
func (c *Config) Logger() (*zerolog.Logger, error) {
	log, err := c.Logging.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return log, nil
}
