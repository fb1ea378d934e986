package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/screen-geometry/internal/logger"
	"github.com/menta2k/screen-geometry/internal/utils"
	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/geometry"
)

// EnvPrefix is prepended to environment overrides, e.g. SCREENGEOM_BACKEND_URL
const EnvPrefix = "SCREENGEOM"

// ErrUnknownProfile is returned when model.profile names no built-in or custom profile
var ErrUnknownProfile = errors.New("unknown model profile")

// Backends understood by the CLI
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Model     ModelConfig     `yaml:"model" mapstructure:"model"`
	Backend   BackendConfig   `yaml:"backend" mapstructure:"backend"`
	Downscale DownscaleConfig `yaml:"downscale" mapstructure:"downscale"`
	Observe   ObserveConfig   `yaml:"observe" mapstructure:"observe"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ModelConfig selects the vision model and its geometry profile
type ModelConfig struct {
	Name     string    `yaml:"name" mapstructure:"name"`
	Profile  string    `yaml:"profile" mapstructure:"profile"`
	Profiles []Profile `yaml:"profiles,omitempty" mapstructure:"profiles"`
}

// Profile is the image geometry a model family expects
type Profile struct {
	Name   string               `yaml:"name" mapstructure:"name"`
	Format string               `yaml:"format" mapstructure:"format"`
	Budget geometry.TokenBudget `yaml:"budget" mapstructure:"budget"`
}

// CoordFormat parses the profile's coordinate format
func (p Profile) CoordFormat() (coords.Format, error) {
	return coords.ParseFormat(p.Format)
}

// BackendConfig points at the model server
type BackendConfig struct {
	Type    string        `yaml:"type" mapstructure:"type"`
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DownscaleConfig bounds screenshots before they are transmitted
type DownscaleConfig struct {
	MaxWidth  int `yaml:"max_width" mapstructure:"max_width"`
	MaxHeight int `yaml:"max_height" mapstructure:"max_height"`
}

// ObserveConfig controls screenshot observation
type ObserveConfig struct {
	Source        string `yaml:"source" mapstructure:"source"`
	Dir           string `yaml:"dir" mapstructure:"dir"`
	HashThreshold int    `yaml:"hash_threshold" mapstructure:"hash_threshold"`
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// BuiltinProfiles returns the geometry of the supported model families
func BuiltinProfiles() []Profile {
	qwen25 := geometry.TokenBudget{MinTokens: 4, MaxTokens: 16384, MergeBase: 2, PatchSize: 14}
	return []Profile{
		{Name: "qwen2.5-vl", Format: coords.AbsResized.String(), Budget: qwen25},
		{Name: "qwen2-vl", Format: coords.QwenVL.String(), Budget: geometry.DefaultTokenBudget()},
		{Name: "molmo", Format: coords.Molmo.String(), Budget: geometry.DefaultTokenBudget()},
		{Name: "uitars", Format: coords.AbsResized.String(), Budget: qwen25},
	}
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:    "qwen2.5vl:7b",
			Profile: "qwen2.5-vl",
		},
		Backend: BackendConfig{
			Type:    BackendOllama,
			URL:     "http://localhost:11434",
			Timeout: 5 * time.Minute,
		},
		Downscale: DownscaleConfig{
			MaxWidth:  1280,
			MaxHeight: 720,
		},
		Observe: ObserveConfig{
			HashThreshold: 5,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load reads configuration from path, layered over Default and under SCREENGEOM_* environment variables.
// An empty path uses GetConfigPath when that file exists and defaults otherwise.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" && utils.FileExists(GetConfigPath()) {
		path = GetConfigPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("model.name", cfg.Model.Name)
	v.SetDefault("model.profile", cfg.Model.Profile)
	v.SetDefault("backend.type", cfg.Backend.Type)
	v.SetDefault("backend.url", cfg.Backend.URL)
	v.SetDefault("backend.timeout", cfg.Backend.Timeout)
	v.SetDefault("downscale.max_width", cfg.Downscale.MaxWidth)
	v.SetDefault("downscale.max_height", cfg.Downscale.MaxHeight)
	v.SetDefault("observe.source", cfg.Observe.Source)
	v.SetDefault("observe.dir", cfg.Observe.Dir)
	v.SetDefault("observe.hash_threshold", cfg.Observe.HashThreshold)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.json", cfg.Logging.JSON)
}

// SaveToFile writes the configuration as YAML
func (c *Config) SaveToFile(filename string) error {
	if err := utils.EnsureDir(filepath.Dir(filename)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close YAML encoder: %w", err)
	}

	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveProfile finds the active profile; custom profiles shadow built-ins of the same name
func (c *Config) ResolveProfile() (Profile, error) {
	return c.FindProfile(c.Model.Profile)
}

// FindProfile looks a profile up by name
func (c *Config) FindProfile(name string) (Profile, error) {
	match := func(p Profile) bool { return strings.EqualFold(p.Name, name) }
	if i := slices.IndexFunc(c.Model.Profiles, match); i >= 0 {
		return c.Model.Profiles[i], nil
	}
	builtins := BuiltinProfiles()
	if i := slices.IndexFunc(builtins, match); i >= 0 {
		return builtins[i], nil
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("model.name cannot be empty")
	}

	for _, p := range c.Model.Profiles {
		if err := p.validate(); err != nil {
			return err
		}
	}
	p, err := c.ResolveProfile()
	if err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}

	if c.Backend.Type != BackendOllama && c.Backend.Type != BackendLlamaCpp {
		return fmt.Errorf("backend.type must be %q or %q, got %q", BackendOllama, BackendLlamaCpp, c.Backend.Type)
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url cannot be empty")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}

	if c.Downscale.MaxWidth < 0 || c.Downscale.MaxHeight < 0 {
		return fmt.Errorf("downscale bounds must not be negative")
	}

	if c.Observe.HashThreshold < 0 || c.Observe.HashThreshold > 64 {
		return fmt.Errorf("observe.hash_threshold must be between 0 and 64")
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

func (p Profile) validate() error {
	if p.Name == "" {
		return fmt.Errorf("model profile needs a name")
	}
	if _, err := p.CoordFormat(); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	if err := p.Budget.Validate(); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "screen-geometry", "config.yaml")
}
