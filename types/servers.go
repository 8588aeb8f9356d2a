package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ServerMap is the sparse assignment input tree: provider name to
// environment name to the roles deployed there
type ServerMap map[string]map[string][]RoleEntry

// RoleEntry is one item of an environment's role list: either a bare
// role name or a single-key mapping of role name to override
// attributes for that deployment.
type RoleEntry struct {
	Role      string
	Overrides *RoleSpec
}

// UnmarshalYAML decodes both entry forms and rejects mappings that
// name more than one role
func (e *RoleEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&e.Role)
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return fmt.Errorf("role entry at line %d: must name exactly one role", value.Line)
		}
		if err := value.Content[0].Decode(&e.Role); err != nil {
			return err
		}
		var overrides RoleSpec
		if err := value.Content[1].Decode(&overrides); err != nil {
			return fmt.Errorf("role %q overrides: %w", e.Role, err)
		}
		e.Overrides = &overrides
		return nil
	default:
		return fmt.Errorf("role entry at line %d: expected role name or single-key mapping", value.Line)
	}
}
