package expander

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/cloudfu/cloudfu/types"
)

// distribute assigns count hostnames round-robin across the zones,
// starting from a zone drawn deterministically from the template.
// Every zone ends up with either floor or ceil of count/len(zones)
// hosts. Each hostname gets its own copy of the host defaults.
func distribute(zones []string, profileFor map[string]string, count int, template string, host types.HostDefaults) map[string]map[string]types.HostDefaults {
	if count == 0 {
		return nil
	}
	order := rotated(zones, template)
	hosts := make(map[string]map[string]types.HostDefaults)
	for i := 1; i <= count; i++ {
		profile := profileFor[order[(i-1)%len(order)]]
		if hosts[profile] == nil {
			hosts[profile] = make(map[string]types.HostDefaults)
		}
		hosts[profile][fmt.Sprintf(template, i)] = host
	}
	return hosts
}

// rotated returns the zone list with a starting zone moved to the
// front; the zones behind it keep declaration order. The draw is
// seeded from the template string, so the same template always starts
// at the same zone while different roles spread their first host
// across zones.
func rotated(zones []string, template string) []string {
	out := append([]string(nil), zones...)
	if len(out) < 2 {
		return out
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(template))
	rng := rand.New(rand.NewSource(int64(h.Sum64()))) // #nosec G404 -- reproducibility is the point, not secrecy
	i := rng.Intn(len(out))
	first := out[i]
	copy(out[1:i+1], out[:i])
	out[0] = first
	return out
}
