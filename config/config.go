package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the tool configuration (cloudfu.yaml)
type Config struct {
	// DataDir holds the input trees: defaults.yaml, providers.yaml, servers.yaml
	DataDir string `yaml:"data_dir"`
	// ConfDir is the root the rendered trees are written under
	// (cloud.providers.d, cloud.profiles.d, cloud.maps)
	ConfDir string `yaml:"conf_dir"`
	// Domain is the hostname suffix appended to generated host names
	Domain string `yaml:"domain"`
	// FileMode and DirMode are octal strings, salt style
	FileMode string `yaml:"file_mode"`
	DirMode  string `yaml:"dir_mode"`
	// Owner and Group are applied to written files only when set
	Owner string `yaml:"owner,omitempty"`
	Group string `yaml:"group,omitempty"`
	// StateDir holds the revision store and the apply journal
	StateDir string `yaml:"state_dir"`
	// PolicyDir holds rego policies; empty disables the gate
	PolicyDir string `yaml:"policy_dir,omitempty"`
	// Output selects the generate encoding: yaml or json
	Output string `yaml:"output"`
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Domain == "" {
		c.Domain = "example.com"
	}
	if c.FileMode == "" {
		c.FileMode = "0600"
	}
	if c.DirMode == "" {
		c.DirMode = "0700"
	}
	if c.StateDir == "" {
		c.StateDir = ".cloudfu"
	}
	if c.Output == "" {
		c.Output = "yaml"
	}
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.ConfDir == "" {
		return fmt.Errorf("conf_dir is required")
	}
	if c.Output != "yaml" && c.Output != "json" {
		return fmt.Errorf("output must be yaml or json, got %q", c.Output)
	}
	if _, err := parseMode(c.FileMode); err != nil {
		return fmt.Errorf("file_mode: %w", err)
	}
	if _, err := parseMode(c.DirMode); err != nil {
		return fmt.Errorf("dir_mode: %w", err)
	}
	return nil
}

// FilePerm returns the parsed file_mode bits; Validate has already
// checked them
func (c *Config) FilePerm() os.FileMode {
	mode, _ := parseMode(c.FileMode)
	return mode
}

// DirPerm returns the parsed dir_mode bits
func (c *Config) DirPerm() os.FileMode {
	mode, _ := parseMode(c.DirMode)
	return mode
}

func parseMode(s string) (os.FileMode, error) {
	bits, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("not an octal mode: %q", s)
	}
	return os.FileMode(bits), nil
}
