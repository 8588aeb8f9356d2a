package expander

import (
	"fmt"

	"github.com/cloudfu/cloudfu/types"
)

// buildInterfaces synthesizes the interface list for one instance of a
// role in zone az of environment ename. With no explicit specs the
// instance gets a single interface on the current environment's
// subnet; explicit specs add one interface each, subnet taken from the
// referenced environment at the current zone.
func buildInterfaces(role types.RoleSpec, envs map[string]environment, ename, az string) ([]types.NetworkInterface, *types.Warning) {
	if len(role.Interfaces) == 0 {
		return []types.NetworkInterface{{
			DeviceIndex:     0,
			SubnetID:        envs[ename].subnets[az],
			SecurityGroupID: groupIDs(role),
		}}, nil
	}

	ifaces := make([]types.NetworkInterface, 0, len(role.Interfaces))
	for i, spec := range role.Interfaces {
		env, ok := envs[spec.Environment]
		if !ok {
			return nil, &types.Warning{
				Severity: types.SeverityWarning,
				Stage:    "interfaces",
				Message:  fmt.Sprintf("interface %d references unknown environment %q", i, spec.Environment),
			}
		}
		subnet, ok := env.subnets[az]
		if !ok {
			return nil, &types.Warning{
				Severity: types.SeverityWarning,
				Stage:    "interfaces",
				Message:  fmt.Sprintf("environment %q has no subnet for zone %q", spec.Environment, az),
			}
		}
		iface := types.NetworkInterface{
			DeviceIndex:     i,
			SubnetID:        subnet,
			SecurityGroupID: groupIDs(role),
		}
		if override, ok := spec.Overrides[az]; ok {
			if err := override.Validate(); err != nil {
				return nil, &types.Warning{
					Severity: types.SeverityError,
					Stage:    "interfaces",
					Message:  fmt.Sprintf("interface %d override for zone %q %v", i, az, err),
				}
			}
			iface.NetworkInterfaceID = override.ID
			iface.PrivateIPAddress = override.Address
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces, nil
}

func groupIDs(role types.RoleSpec) []string {
	return append([]string(nil), role.SecurityGroups...)
}
