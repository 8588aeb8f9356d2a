package expander

import (
	"fmt"
	"maps"
	"slices"

	"github.com/cloudfu/cloudfu/types"
)

// environment is the derived zone layout of one provider environment.
// Zone order is declaration order; it fixes interface indexing and
// hostname distribution.
type environment struct {
	zones   []string
	subnets map[string]string
}

// buildEnvironments derives the per-environment zone layouts from a
// provider's subnet declarations. Malformed entries are structural
// errors; the caller drops the whole provider when any occur. All
// defects are collected before returning so one pass reports them all.
func buildEnvironments(provider string, subnets map[string][]types.SubnetRef) (map[string]environment, types.Warnings) {
	var warns types.Warnings
	envs := make(map[string]environment, len(subnets))

	for _, ename := range slices.Sorted(maps.Keys(subnets)) {
		refs := subnets[ename]
		if len(refs) == 0 {
			warns = append(warns, structural(provider, ename, "declares no subnets"))
			continue
		}
		env := environment{
			zones:   make([]string, 0, len(refs)),
			subnets: make(map[string]string, len(refs)),
		}
		for i, ref := range refs {
			if ref.AZ == "" || ref.Subnet == "" {
				warns = append(warns, structural(provider, ename,
					fmt.Sprintf("subnet entry %d needs both az and subnet", i)))
				continue
			}
			if _, dup := env.subnets[ref.AZ]; dup {
				warns = append(warns, structural(provider, ename,
					fmt.Sprintf("zone %q declared twice", ref.AZ)))
				continue
			}
			env.zones = append(env.zones, ref.AZ)
			env.subnets[ref.AZ] = ref.Subnet
		}
		envs[ename] = env
	}
	return envs, warns
}

func structural(provider, env, msg string) types.Warning {
	return types.Warning{
		Severity:    types.SeverityError,
		Stage:       "environment",
		Provider:    provider,
		Environment: env,
		Message:     fmt.Sprintf("environment %q %s", env, msg),
	}
}
