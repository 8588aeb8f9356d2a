package types

import "errors"

// RoleSpec is one layer of role attributes: the profile defaults, a
// provider's per-role catalog entries, or a caller override from the
// servers tree. Zero fields mean "not set in this layer"; layers
// combine with Merge.
type RoleSpec struct {
	Size                string          `yaml:"size,omitempty" json:"size,omitempty"`
	Image               string          `yaml:"image,omitempty" json:"image,omitempty"`
	SecurityGroups      GroupList       `yaml:"security_groups,omitempty" json:"security_groups,omitempty"`
	Volumes             []Volume        `yaml:"volumes,omitempty" json:"volumes,omitempty"`
	Interfaces          []InterfaceSpec `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Servers             *int            `yaml:"servers,omitempty" json:"servers,omitempty"`
	IAMProfile          string          `yaml:"iam_profile,omitempty" json:"iam_profile,omitempty"`
	DelRootVolOnDestroy *bool           `yaml:"del_root_vol_on_destroy,omitempty" json:"del_root_vol_on_destroy,omitempty"`
	DelAllVolsOnDestroy *bool           `yaml:"del_all_vols_on_destroy,omitempty" json:"del_all_vols_on_destroy,omitempty"`
	SyncAfterInstall    string          `yaml:"sync_after_install,omitempty" json:"sync_after_install,omitempty"`
}

// InterfaceSpec declares one extra network interface for a role. The
// subnet comes from the referenced environment at the instance's
// current availability zone; an optional per-AZ override pins either a
// static address or a pre-existing interface id.
type InterfaceSpec struct {
	Environment string                `yaml:"environment" json:"environment"`
	Overrides   map[string]AZOverride `yaml:"overrides,omitempty" json:"overrides,omitempty"`
}

// AZOverride pins an interface in one availability zone. Exactly one
// of Address or ID must be set.
type AZOverride struct {
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
	ID      string `yaml:"id,omitempty" json:"id,omitempty"`
}

// Validate rejects overrides that set both or neither discriminator
func (o AZOverride) Validate() error {
	if o.Address != "" && o.ID != "" {
		return errors.New("sets both address and id")
	}
	if o.Address == "" && o.ID == "" {
		return errors.New("sets neither address nor id")
	}
	return nil
}

// Volume is one block device attached to every instance of a role
type Volume struct {
	Size      int               `yaml:"size" json:"size"`
	Device    string            `yaml:"device" json:"device"`
	Type      string            `yaml:"type,omitempty" json:"type,omitempty"`
	IOPS      int               `yaml:"iops,omitempty" json:"iops,omitempty"`
	Encrypted bool              `yaml:"encrypted,omitempty" json:"encrypted,omitempty"`
	KMSKeyID  string            `yaml:"kms_key_id,omitempty" json:"kms_key_id,omitempty"`
	Tags      map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Clone returns a deep copy of the volume
func (v Volume) Clone() Volume {
	out := v
	if v.Tags != nil {
		out.Tags = make(map[string]string, len(v.Tags))
		for k, val := range v.Tags {
			out.Tags[k] = val
		}
	}
	return out
}

// CloneVolumes deep-copies a volume list
func CloneVolumes(volumes []Volume) []Volume {
	if volumes == nil {
		return nil
	}
	out := make([]Volume, len(volumes))
	for i, v := range volumes {
		out[i] = v.Clone()
	}
	return out
}

// Clone returns a deep copy of the interface spec
func (s InterfaceSpec) Clone() InterfaceSpec {
	out := s
	if s.Overrides != nil {
		out.Overrides = make(map[string]AZOverride, len(s.Overrides))
		for az, o := range s.Overrides {
			out.Overrides[az] = o
		}
	}
	return out
}

// CloneInterfaces deep-copies an interface spec list
func CloneInterfaces(specs []InterfaceSpec) []InterfaceSpec {
	if specs == nil {
		return nil
	}
	out := make([]InterfaceSpec, len(specs))
	for i, s := range specs {
		out[i] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of the layer
func (r RoleSpec) Clone() RoleSpec {
	out := r
	if r.SecurityGroups != nil {
		out.SecurityGroups = append(GroupList(nil), r.SecurityGroups...)
	}
	out.Volumes = CloneVolumes(r.Volumes)
	out.Interfaces = CloneInterfaces(r.Interfaces)
	out.Servers = cloneInt(r.Servers)
	out.DelRootVolOnDestroy = cloneBool(r.DelRootVolOnDestroy)
	out.DelAllVolsOnDestroy = cloneBool(r.DelAllVolsOnDestroy)
	return out
}

// Merge overlays over onto r and returns the combined layer. Set fields
// in over win wholesale; the result aliases neither input.
//
//nolint:gocyclo // Simple field mapping, complexity is acceptable
func (r RoleSpec) Merge(over RoleSpec) RoleSpec {
	out := r.Clone()
	if over.Size != "" {
		out.Size = over.Size
	}
	if over.Image != "" {
		out.Image = over.Image
	}
	if over.SecurityGroups != nil {
		out.SecurityGroups = append(GroupList(nil), over.SecurityGroups...)
	}
	if over.Volumes != nil {
		out.Volumes = CloneVolumes(over.Volumes)
	}
	if over.Interfaces != nil {
		out.Interfaces = CloneInterfaces(over.Interfaces)
	}
	if over.Servers != nil {
		out.Servers = cloneInt(over.Servers)
	}
	if over.IAMProfile != "" {
		out.IAMProfile = over.IAMProfile
	}
	if over.DelRootVolOnDestroy != nil {
		out.DelRootVolOnDestroy = cloneBool(over.DelRootVolOnDestroy)
	}
	if over.DelAllVolsOnDestroy != nil {
		out.DelAllVolsOnDestroy = cloneBool(over.DelAllVolsOnDestroy)
	}
	if over.SyncAfterInstall != "" {
		out.SyncAfterInstall = over.SyncAfterInstall
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
