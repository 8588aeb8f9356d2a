package types

// Profile is one fully expanded, AZ-specific instance specification,
// ready for the provisioning tool. Working fields of the resolved role
// (security_groups, servers, interfaces) never appear here.
type Profile struct {
	Provider            string             `yaml:"provider" json:"provider"`
	Size                string             `yaml:"size" json:"size"`
	Image               string             `yaml:"image" json:"image"`
	IAMProfile          string             `yaml:"iam_profile,omitempty" json:"iam_profile,omitempty"`
	DelRootVolOnDestroy *bool              `yaml:"del_root_vol_on_destroy,omitempty" json:"del_root_vol_on_destroy,omitempty"`
	DelAllVolsOnDestroy *bool              `yaml:"del_all_vols_on_destroy,omitempty" json:"del_all_vols_on_destroy,omitempty"`
	SyncAfterInstall    string             `yaml:"sync_after_install,omitempty" json:"sync_after_install,omitempty"`
	Tag                 Tag                `yaml:"tag" json:"tag"`
	NetworkInterfaces   []NetworkInterface `yaml:"network_interfaces" json:"network_interfaces"`
	Volumes             []Volume           `yaml:"volumes,omitempty" json:"volumes,omitempty"`
}

// Tag is the instance tag pair stamped on every profile
type Tag struct {
	Environment string `yaml:"Environment" json:"Environment"`
	Role        string `yaml:"Role" json:"Role"`
}

// NetworkInterface is one virtual interface of a profile. Field names
// follow the provisioning tool's wire format. At most one of
// NetworkInterfaceID / PrivateIPAddress is set.
type NetworkInterface struct {
	DeviceIndex        int      `yaml:"DeviceIndex" json:"DeviceIndex"`
	SubnetID           string   `yaml:"SubnetId" json:"SubnetId"`
	SecurityGroupID    []string `yaml:"SecurityGroupId" json:"SecurityGroupId"`
	NetworkInterfaceID string   `yaml:"NetworkInterfaceId,omitempty" json:"NetworkInterfaceId,omitempty"`
	PrivateIPAddress   string   `yaml:"PrivateIpAddress,omitempty" json:"PrivateIpAddress,omitempty"`
}
