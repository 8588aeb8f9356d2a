package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ProviderSpec is one provider block from the providers input tree.
// Identity fields pass through to the provider output; the per-role
// catalogs (sizes, images, volumes, security_groups) feed role
// resolution and subnets feed environment building. default_servers
// is consumed during expansion and never re-emitted.
type ProviderSpec struct {
	ID             string                 `yaml:"id" json:"id"`
	Key            string                 `yaml:"key" json:"key"`
	Keyname        string                 `yaml:"keyname" json:"keyname"`
	PrivateKey     string                 `yaml:"private_key,omitempty" json:"private_key,omitempty"`
	Driver         string                 `yaml:"driver" json:"driver"`
	Location       string                 `yaml:"location" json:"location"`
	Subnets        map[string][]SubnetRef `yaml:"subnets" json:"subnets"`
	Images         map[string]string      `yaml:"images,omitempty" json:"images,omitempty"`
	Sizes          map[string]string      `yaml:"sizes,omitempty" json:"sizes,omitempty"`
	Volumes        map[string][]Volume    `yaml:"volumes,omitempty" json:"volumes,omitempty"`
	SecurityGroups map[string]GroupList   `yaml:"security_groups,omitempty" json:"security_groups,omitempty"`
	DefaultServers *int                   `yaml:"default_servers,omitempty" json:"default_servers,omitempty"`
}

// SubnetRef binds one availability zone label to a subnet id.
// Declaration order inside a subnet list is significant: it fixes both
// interface indexing and hostname distribution order.
type SubnetRef struct {
	AZ     string `yaml:"az" json:"az"`
	Subnet string `yaml:"subnet" json:"subnet"`
}

// GroupList is a security group id list that also accepts a bare scalar
// in the input document
type GroupList []string

// UnmarshalYAML accepts either a single id or a sequence of ids
func (g *GroupList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*g = GroupList{single}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*g = GroupList(list)
		return nil
	default:
		return fmt.Errorf("security group list at line %d: expected id or sequence of ids", value.Line)
	}
}

// ProviderConfig is the emitted per-provider connection config: the
// declared identity fields layered over the provider defaults, with
// default_servers stripped.
type ProviderConfig struct {
	ID              string `yaml:"id" json:"id"`
	Key             string `yaml:"key" json:"key"`
	Keyname         string `yaml:"keyname" json:"keyname"`
	PrivateKey      string `yaml:"private_key,omitempty" json:"private_key,omitempty"`
	Driver          string `yaml:"driver" json:"driver"`
	Location        string `yaml:"location" json:"location"`
	RenameOnDestroy *bool  `yaml:"rename_on_destroy,omitempty" json:"rename_on_destroy,omitempty"`
	SSHInterface    string `yaml:"ssh_interface,omitempty" json:"ssh_interface,omitempty"`
	SSHUsername     string `yaml:"ssh_username,omitempty" json:"ssh_username,omitempty"`
}
