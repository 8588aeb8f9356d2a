package types

// ProviderTree maps provider name to its emitted connection config
type ProviderTree map[string]ProviderConfig

// ProfileTree maps environment name to profile name to expanded profile
type ProfileTree map[string]map[string]Profile

// MapTree maps environment name to profile name to hostname to the
// per-host defaults assigned to that host
type MapTree map[string]map[string]map[string]HostDefaults

// Severity classifies a warning. Structural defects are errors and
// fail their whole scope; reference and lookup mismatches are warnings
// and skip only the offending item.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Warning is one structured diagnostic collected during expansion.
// The engine never logs; callers decide what to do with these.
type Warning struct {
	Severity    Severity `yaml:"severity" json:"severity"`
	Stage       string   `yaml:"stage" json:"stage"`
	Provider    string   `yaml:"provider,omitempty" json:"provider,omitempty"`
	Environment string   `yaml:"environment,omitempty" json:"environment,omitempty"`
	Role        string   `yaml:"role,omitempty" json:"role,omitempty"`
	Message     string   `yaml:"message" json:"message"`
}

// Warnings is the ordered diagnostic list of one expansion run
type Warnings []Warning

// HasErrors reports whether any warning carries error severity
func (ws Warnings) HasErrors() bool {
	for _, w := range ws {
		if w.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of warnings with the given severity
func (ws Warnings) Count(sev Severity) int {
	n := 0
	for _, w := range ws {
		if w.Severity == sev {
			n++
		}
	}
	return n
}

// Result bundles the three output trees with the diagnostics of the
// run that produced them
type Result struct {
	Providers ProviderTree `yaml:"providers" json:"providers"`
	Profiles  ProfileTree  `yaml:"profiles" json:"profiles"`
	Maps      MapTree      `yaml:"maps" json:"maps"`
	Warnings  Warnings     `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}
