// Package expander turns the compact provider, server and defaults
// trees into the three expanded config trees the provisioning tool
// consumes: provider configs, instance profiles and host maps.
//
// The expansion is synchronous and side effect free. Per-item
// failures never abort a run; they are collected as structured
// warnings on the result, error severity for structural defects and
// warning severity for reference mismatches.
package expander

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/cloudfu/cloudfu/types"
)

// Expander runs the expansion. It carries no state across runs apart
// from the configured hostname domain, so one value is safe to reuse.
type Expander struct {
	domain string
}

// New returns an Expander that appends domain to generated hostnames
func New(domain string) *Expander {
	return &Expander{domain: domain}
}

// Expand builds the three output trees from the input trees. The
// returned error covers impossible preconditions only; every per-item
// failure lands in Result.Warnings.
func (e *Expander) Expand(providers map[string]types.ProviderSpec, servers types.ServerMap, defaults types.Defaults) (*types.Result, error) {
	if providers == nil {
		return nil, errors.New("nil providers tree")
	}
	if servers == nil {
		return nil, errors.New("nil servers tree")
	}

	res := &types.Result{
		Providers: types.ProviderTree{},
		Profiles:  types.ProfileTree{},
		Maps:      types.MapTree{},
	}

	// first pass: provider configs plus the derived per-provider state
	states := make(map[string]*providerState, len(providers))
	failed := make(map[string]bool)
	for _, name := range slices.Sorted(maps.Keys(providers)) {
		st, warns := buildProvider(name, providers[name], defaults)
		res.Warnings = append(res.Warnings, warns...)
		if st == nil {
			failed[name] = true
			continue
		}
		states[name] = st
		res.Providers[name] = st.config
	}

	// second pass: walk the sparse server tree
	for _, pname := range slices.Sorted(maps.Keys(servers)) {
		if failed[pname] {
			// already reported during the provider pass
			continue
		}
		st, ok := states[pname]
		if !ok {
			res.Warnings = append(res.Warnings, types.Warning{
				Severity: types.SeverityWarning,
				Stage:    "provider",
				Provider: pname,
				Message:  fmt.Sprintf("no provider named %q", pname),
			})
			continue
		}
		for _, ename := range slices.Sorted(maps.Keys(servers[pname])) {
			env, ok := st.environments[ename]
			if !ok {
				res.Warnings = append(res.Warnings, types.Warning{
					Severity:    types.SeverityWarning,
					Stage:       "environment",
					Provider:    pname,
					Environment: ename,
					Message:     fmt.Sprintf("provider %q declares no subnets for environment %q", pname, ename),
				})
				continue
			}
			seen := make(map[string]bool)
			for _, entry := range servers[pname][ename] {
				if seen[entry.Role] {
					res.Warnings = append(res.Warnings, types.Warning{
						Severity:    types.SeverityWarning,
						Stage:       "role",
						Provider:    pname,
						Environment: ename,
						Role:        entry.Role,
						Message:     fmt.Sprintf("role %q listed more than once, first definition wins", entry.Role),
					})
					continue
				}
				seen[entry.Role] = true
				exp, warns := e.expandRole(st, pname, ename, env, entry, defaults.Mappings)
				res.Warnings = append(res.Warnings, warns...)
				if exp == nil {
					continue
				}
				mergeExpansion(res, ename, exp)
			}
		}
	}

	return res, nil
}

// mergeExpansion folds one role's profiles and host assignments into
// the output trees
func mergeExpansion(res *types.Result, ename string, exp *roleExpansion) {
	if res.Profiles[ename] == nil {
		res.Profiles[ename] = make(map[string]types.Profile)
	}
	for name, profile := range exp.profiles {
		res.Profiles[ename][name] = profile
	}
	if len(exp.hosts) == 0 {
		return
	}
	if res.Maps[ename] == nil {
		res.Maps[ename] = make(map[string]map[string]types.HostDefaults)
	}
	for name, hosts := range exp.hosts {
		res.Maps[ename][name] = hosts
	}
}
