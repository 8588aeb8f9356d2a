package expander

import (
	"fmt"

	"github.com/cloudfu/cloudfu/types"
)

// maxHostsPerRole caps the host count per role; the hostname contract
// zero-pads ordinals to two digits.
const maxHostsPerRole = 99

// roleExpansion is the output of one (provider, environment, role)
// combination: the per-zone profiles and the distributed host map
type roleExpansion struct {
	profiles map[string]types.Profile
	hosts    map[string]map[string]types.HostDefaults
}

// expandRole resolves one server entry into a profile for every zone
// of the environment plus the host assignments across those profiles.
// A nil expansion means the role was skipped; the warnings say why.
func (e *Expander) expandRole(st *providerState, pname, ename string, env environment, entry types.RoleEntry, host types.HostDefaults) (*roleExpansion, types.Warnings) {
	role, warn := resolveRole(st, entry, ename)
	if warn != nil {
		warn.Provider = pname
		warn.Environment = ename
		return nil, types.Warnings{*warn}
	}

	count := st.defaultServers
	if role.Servers != nil {
		count = *role.Servers
	}
	if count < 0 || count > maxHostsPerRole {
		return nil, types.Warnings{{
			Severity:    types.SeverityError,
			Stage:       "role",
			Provider:    pname,
			Environment: ename,
			Role:        entry.Role,
			Message:     fmt.Sprintf("role %q wants %d hosts, hostname ordinals support 1 through %d", entry.Role, count, maxHostsPerRole),
		}}
	}

	exp := &roleExpansion{profiles: make(map[string]types.Profile, len(env.zones))}
	azProfiles := make(map[string]string, len(env.zones))
	for _, az := range env.zones {
		ifaces, warn := buildInterfaces(role, st.environments, ename, az)
		if warn != nil {
			warn.Provider = pname
			warn.Environment = ename
			warn.Role = entry.Role
			return nil, types.Warnings{*warn}
		}
		name := fmt.Sprintf("%s_%s_%s%s", entry.Role, ename, pname, az)
		exp.profiles[name] = types.Profile{
			Provider:            pname,
			Size:                role.Size,
			Image:               role.Image,
			IAMProfile:          role.IAMProfile,
			DelRootVolOnDestroy: role.DelRootVolOnDestroy,
			DelAllVolsOnDestroy: role.DelAllVolsOnDestroy,
			SyncAfterInstall:    role.SyncAfterInstall,
			Tag:                 types.Tag{Environment: ename, Role: entry.Role},
			NetworkInterfaces:   ifaces,
			Volumes:             types.CloneVolumes(role.Volumes),
		}
		azProfiles[az] = name
	}

	template := fmt.Sprintf("%s%%02d.%s.%s.%s", entry.Role, ename, pname, e.domain)
	exp.hosts = distribute(env.zones, azProfiles, count, template, host)
	return exp, nil
}
