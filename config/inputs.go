package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudfu/cloudfu/types"
	"gopkg.in/yaml.v3"
)

// Inputs are the three parsed input trees the expansion consumes.
// Each lives in its own file under the data directory, tree at the
// top level: defaults.yaml, providers.yaml, servers.yaml.
type Inputs struct {
	Defaults  types.Defaults
	Providers map[string]types.ProviderSpec
	Servers   types.ServerMap
}

// LoadInputs reads and decodes the three input trees from dataDir
func LoadInputs(dataDir string) (*Inputs, error) {
	var in Inputs
	if err := readYAML(filepath.Join(dataDir, "defaults.yaml"), &in.Defaults); err != nil {
		return nil, err
	}
	if err := readYAML(filepath.Join(dataDir, "providers.yaml"), &in.Providers); err != nil {
		return nil, err
	}
	if err := readYAML(filepath.Join(dataDir, "servers.yaml"), &in.Servers); err != nil {
		return nil, err
	}
	return &in, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from configured data_dir
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
