package types

// Defaults is the global defaults input tree
type Defaults struct {
	Providers ProviderDefaults `yaml:"providers" json:"providers"`
	Profiles  ProfileDefaults  `yaml:"profiles" json:"profiles"`
	Mappings  HostDefaults     `yaml:"mappings" json:"mappings"`
}

// ProviderDefaults are merged under every provider's declared fields
type ProviderDefaults struct {
	DefaultServers  *int   `yaml:"default_servers,omitempty" json:"default_servers,omitempty"`
	RenameOnDestroy *bool  `yaml:"rename_on_destroy,omitempty" json:"rename_on_destroy,omitempty"`
	SSHInterface    string `yaml:"ssh_interface,omitempty" json:"ssh_interface,omitempty"`
	SSHUsername     string `yaml:"ssh_username,omitempty" json:"ssh_username,omitempty"`
}

// ProfileDefaults is the base layer of every role resolution
type ProfileDefaults struct {
	DelRootVolOnDestroy *bool  `yaml:"del_root_vol_on_destroy,omitempty" json:"del_root_vol_on_destroy,omitempty"`
	DelAllVolsOnDestroy *bool  `yaml:"del_all_vols_on_destroy,omitempty" json:"del_all_vols_on_destroy,omitempty"`
	SyncAfterInstall    string `yaml:"sync_after_install,omitempty" json:"sync_after_install,omitempty"`
}

// RoleLayer expresses the profile defaults as a role attribute layer
func (p ProfileDefaults) RoleLayer() RoleSpec {
	return RoleSpec{
		DelRootVolOnDestroy: cloneBool(p.DelRootVolOnDestroy),
		DelAllVolsOnDestroy: cloneBool(p.DelAllVolsOnDestroy),
		SyncAfterInstall:    p.SyncAfterInstall,
	}
}

// HostDefaults is the per-host attribute block assigned to every map
// entry. It is a value type so every hostname gets its own copy.
type HostDefaults struct {
	Minion Minion `yaml:"minion" json:"minion"`
}

// Minion carries the orchestration master every host reports to
type Minion struct {
	Master string `yaml:"master" json:"master"`
}
