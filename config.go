package openroute

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the engine configuration, loadable from a TOML file.
type Config struct {
	Title       string `toml:"title"`
	Version     string `toml:"version"`
	Description string `toml:"description"`

	Contact ContactConfig `toml:"contact"`
	License LicenseConfig `toml:"license"`

	Servers []ServerConfig `toml:"servers"`

	// RoutesDir is the directory tree scanned for route declaration files.
	RoutesDir string `toml:"routes_dir"`

	// PublicPaths are path prefixes whose document entries carry no
	// security requirements.
	PublicPaths []string `toml:"public_paths"`

	// Addr is the listen address used by the CLI serve command.
	Addr string `toml:"addr"`
}

// ContactConfig is the API contact block of the generated document.
type ContactConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
	URL   string `toml:"url"`
}

func (c ContactConfig) block() *Contact {
	if c == (ContactConfig{}) {
		return nil
	}
	return &Contact{Name: c.Name, Email: c.Email, URL: c.URL}
}

// LicenseConfig is the API license block of the generated document.
type LicenseConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

func (c LicenseConfig) block() *License {
	if c == (LicenseConfig{}) {
		return nil
	}
	return &License{Name: c.Name, URL: c.URL}
}

// ServerConfig is one entry of the document's servers array.
type ServerConfig struct {
	URL         string `toml:"url"`
	Description string `toml:"description"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Title == "" {
		c.Title = "API"
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.RoutesDir == "" {
		c.RoutesDir = "routes"
	}
	if len(c.PublicPaths) == 0 {
		c.PublicPaths = []string{"/health", "/docs", "/openapi", "/ping"}
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// LoadConfig reads and parses a TOML configuration file and applies
// defaults for anything left unset.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}
