package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cloudfu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
data_dir: /srv/pillar/cloud
conf_dir: /etc/salt
domain: example.net
owner: root
group: root
state_dir: /var/lib/cloudfu
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/pillar/cloud", cfg.DataDir)
	assert.Equal(t, "example.net", cfg.Domain)

	// Unset fields pick up defaults
	assert.Equal(t, "0600", cfg.FileMode)
	assert.Equal(t, "yaml", cfg.Output)
	assert.Equal(t, os.FileMode(0600), cfg.FilePerm())
	assert.Equal(t, os.FileMode(0700), cfg.DirPerm())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Unparseable(t *testing.T) {
	path := writeConfigFile(t, "data_dir: [unclosed")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		DataDir:  "/srv/pillar/cloud",
		ConfDir:  "/etc/salt",
		FileMode: "0600",
		DirMode:  "0700",
		Output:   "yaml",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing data_dir", func(c *Config) { c.DataDir = "" }},
		{"missing conf_dir", func(c *Config) { c.ConfDir = "" }},
		{"bad output encoding", func(c *Config) { c.Output = "toml" }},
		{"bad file mode", func(c *Config) { c.FileMode = "rw-r--r--" }},
		{"bad dir mode", func(c *Config) { c.DirMode = "drwx" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
