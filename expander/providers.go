package expander

import (
	"github.com/cloudfu/cloudfu/types"
)

// providerState is everything derived from one provider declaration
// during the first pass
type providerState struct {
	config         types.ProviderConfig
	environments   map[string]environment
	catalog        map[string]types.RoleSpec
	common         types.GroupList
	base           types.RoleSpec
	defaultServers int
}

// buildProvider derives the provider output config, the environment
// layouts and the per-role catalog. A nil state means a structural
// defect failed the whole provider.
func buildProvider(name string, spec types.ProviderSpec, defaults types.Defaults) (*providerState, types.Warnings) {
	envs, warns := buildEnvironments(name, spec.Subnets)
	if warns.HasErrors() {
		return nil, warns
	}

	servers := spec.DefaultServers
	if servers == nil {
		servers = defaults.Providers.DefaultServers
	}
	if servers == nil {
		warns = append(warns, types.Warning{
			Severity: types.SeverityError,
			Stage:    "provider",
			Provider: name,
			Message:  "default_servers set neither on the provider nor in the provider defaults",
		})
		return nil, warns
	}

	st := &providerState{
		environments:   envs,
		catalog:        buildCatalog(spec),
		common:         append(types.GroupList(nil), spec.SecurityGroups["common"]...),
		defaultServers: *servers,
		config: types.ProviderConfig{
			ID:              spec.ID,
			Key:             spec.Key,
			Keyname:         spec.Keyname,
			PrivateKey:      spec.PrivateKey,
			Driver:          spec.Driver,
			Location:        spec.Location,
			RenameOnDestroy: defaults.Providers.RenameOnDestroy,
			SSHInterface:    defaults.Providers.SSHInterface,
			SSHUsername:     defaults.Providers.SSHUsername,
		},
	}
	st.base = defaults.Profiles.RoleLayer().Merge(st.catalog["default"])
	return st, warns
}

// buildCatalog folds the provider's per-role attribute maps into one
// layer per role name. The pseudo-roles default and common stay in
// the catalog; default feeds the base layer, common only contributes
// its security groups.
func buildCatalog(spec types.ProviderSpec) map[string]types.RoleSpec {
	catalog := make(map[string]types.RoleSpec)
	for role, size := range spec.Sizes {
		r := catalog[role]
		r.Size = size
		catalog[role] = r
	}
	for role, image := range spec.Images {
		r := catalog[role]
		r.Image = image
		catalog[role] = r
	}
	for role, volumes := range spec.Volumes {
		r := catalog[role]
		r.Volumes = types.CloneVolumes(volumes)
		catalog[role] = r
	}
	for role, groups := range spec.SecurityGroups {
		r := catalog[role]
		r.SecurityGroups = append(types.GroupList(nil), groups...)
		catalog[role] = r
	}
	return catalog
}
