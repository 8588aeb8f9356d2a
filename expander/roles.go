package expander

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cloudfu/cloudfu/types"
)

// resolveRole runs the layer chain for one server entry: the provider
// base (profile defaults plus the provider's default role), the
// provider's catalog entry for the role, then the caller's override
// block. Normalization and validation run on the merged result.
func resolveRole(st *providerState, entry types.RoleEntry, ename string) (types.RoleSpec, *types.Warning) {
	role := st.base.Clone()
	if cat, ok := st.catalog[entry.Role]; ok {
		role = role.Merge(cat)
	}
	if entry.Overrides != nil {
		role = role.Merge(*entry.Overrides)
	}

	role.SecurityGroups = withCommonGroups(role.SecurityGroups, st.common)
	tagVolumes(role.Volumes, ename, entry.Role)

	if missing := missingFields(role); len(missing) > 0 {
		return types.RoleSpec{}, &types.Warning{
			Severity: types.SeverityWarning,
			Stage:    "role",
			Role:     entry.Role,
			Message:  fmt.Sprintf("role %q missing required fields after merge: %s", entry.Role, strings.Join(missing, ", ")),
		}
	}
	return role, nil
}

// withCommonGroups normalizes the group list and appends the
// provider-wide common groups. A role cannot opt out of them, but a
// group already present is not appended twice.
func withCommonGroups(groups, common types.GroupList) types.GroupList {
	out := append(types.GroupList{}, groups...)
	for _, id := range common {
		if slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// tagVolumes merges the default volume tags under any caller-supplied
// tags and stamps VolumeType from the volume type. Mutates in place;
// the caller owns the slice by then.
func tagVolumes(volumes []types.Volume, env, role string) {
	for i := range volumes {
		if volumes[i].Tags == nil {
			volumes[i].Tags = make(map[string]string, 4)
		}
		tags := volumes[i].Tags
		setDefaultTag(tags, "Environment", env)
		setDefaultTag(tags, "Role", role)
		setDefaultTag(tags, "Service", "ebs")
		if volumes[i].Type != "" {
			tags["VolumeType"] = volumes[i].Type
		}
	}
}

func setDefaultTag(tags map[string]string, key, value string) {
	if _, ok := tags[key]; !ok {
		tags[key] = value
	}
}

func missingFields(role types.RoleSpec) []string {
	var missing []string
	if role.Size == "" {
		missing = append(missing, "size")
	}
	if role.Image == "" {
		missing = append(missing, "image")
	}
	if len(role.SecurityGroups) == 0 {
		missing = append(missing, "security_groups")
	}
	return missing
}
