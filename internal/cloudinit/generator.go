// Package cloudinit produces the cloud-init configuration for a new VM.
//
// Two delivery modes exist. Native delivery hands user, credentials and
// network settings to Proxmox as ci* options and lets Proxmox build the
// cloud-init drive (see Proxmox). NoCloud delivery renders user-data,
// meta-data and network-config here and packs them into a seed ISO.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/palforge/internal/config"
)

// UserData is the cloud-config user-data document.
type UserData struct {
	Hostname        string    `yaml:"hostname"`
	ManageEtcHosts  bool      `yaml:"manage_etc_hosts"`
	Users           []User    `yaml:"users"`
	Chpasswd        *Chpasswd `yaml:"chpasswd,omitempty"`
	SSHPasswordAuth bool      `yaml:"ssh_pwauth"`
	Packages        []string  `yaml:"packages,omitempty"`
	RunCmd          []string  `yaml:"runcmd,omitempty"`
}

// User is an entry of the users list.
type User struct {
	Name              string   `yaml:"name"`
	Groups            string   `yaml:"groups,omitempty"`
	Sudo              string   `yaml:"sudo,omitempty"`
	Shell             string   `yaml:"shell,omitempty"`
	LockPassword      bool     `yaml:"lock_passwd"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty"`
}

// Chpasswd sets user passwords.
type Chpasswd struct {
	Expire bool           `yaml:"expire"`
	Users  []UserPassword `yaml:"users"`
}

// UserPassword is a chpasswd entry.
type UserPassword struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Type     string `yaml:"type"`
}

// MetaData is the NoCloud meta-data document.
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// NetworkConfig is a netplan v2 network-config document.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/network-config-format-v2.html
type NetworkConfig struct {
	Version   int                       `yaml:"version"`
	Ethernets map[string]EthernetConfig `yaml:"ethernets"`
}

// EthernetConfig configures one interface.
type EthernetConfig struct {
	Match       MatchConfig   `yaml:"match"`
	DHCP4       bool          `yaml:"dhcp4"`
	Addresses   []string      `yaml:"addresses,omitempty"`
	Routes      []RouteConfig `yaml:"routes,omitempty"`
	Nameservers *Nameservers  `yaml:"nameservers,omitempty"`
}

// MatchConfig selects the interface by MAC address, or by name glob when no
// MAC is known.
type MatchConfig struct {
	MACAddress string `yaml:"macaddress,omitempty"`
	Name       string `yaml:"name,omitempty"`
}

// RouteConfig is a static route.
type RouteConfig struct {
	To  string `yaml:"to"`
	Via string `yaml:"via"`
}

// Nameservers configures DNS.
type Nameservers struct {
	Addresses []string `yaml:"addresses,omitempty"`
	Search    []string `yaml:"search,omitempty"`
}

// GenerateUserData renders user-data including the "#cloud-config" header.
// The password, when the auth mode uses one, is written in plain text; the
// seed ISO is removed from the ISO storage if provisioning fails.
func GenerateUserData(cfg *config.VMConfig) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("VM configuration cannot be nil")
	}

	user := User{
		Name:         cfg.Auth.User,
		Groups:       "sudo",
		Sudo:         "ALL=(ALL) NOPASSWD:ALL",
		Shell:        "/bin/bash",
		LockPassword: !cfg.Auth.Mode.UsesPassword(),
	}
	if cfg.Auth.Mode.UsesKeys() {
		user.SSHAuthorizedKeys = cfg.Auth.SSHKeys
	}

	ud := UserData{
		Hostname:       cfg.Name,
		ManageEtcHosts: true,
		Users:          []User{user},
		Packages:       []string{"qemu-guest-agent"},
		RunCmd:         []string{"systemctl enable --now qemu-guest-agent"},
	}
	if cfg.Auth.Mode.UsesPassword() {
		ud.SSHPasswordAuth = true
		ud.Chpasswd = &Chpasswd{
			Users: []UserPassword{{
				Name:     cfg.Auth.User,
				Password: cfg.Auth.Password.Reveal(),
				Type:     "text",
			}},
		}
	}

	out, err := yaml.Marshal(&ud)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}
	return "#cloud-config\n" + string(out), nil
}

// GenerateMetaData renders meta-data. instanceID must change for every new
// VM so cloud-init treats the first boot as a fresh instance.
func GenerateMetaData(cfg *config.VMConfig, instanceID string) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("VM configuration cannot be nil")
	}
	if instanceID == "" {
		return "", fmt.Errorf("instance-id is required")
	}

	out, err := yaml.Marshal(&MetaData{InstanceID: instanceID, LocalHostname: cfg.Name})
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data to YAML: %w", err)
	}
	return string(out), nil
}

// GenerateNetworkConfig renders network-config for the first NIC. mac may be
// empty, in which case the interface is matched by name.
func GenerateNetworkConfig(cfg *config.VMConfig, mac string) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("VM configuration cannot be nil")
	}

	eth := EthernetConfig{}
	if mac != "" {
		eth.Match.MACAddress = mac
	} else {
		eth.Match.Name = "e*"
	}

	switch cfg.Network.Mode {
	case config.NetworkStatic:
		if cfg.Network.Address == "" || cfg.Network.Gateway == "" {
			return "", fmt.Errorf("static network requires an address and a gateway")
		}
		eth.Addresses = []string{cfg.Network.Address}
		eth.Routes = []RouteConfig{{To: "0.0.0.0/0", Via: cfg.Network.Gateway}}
	default:
		eth.DHCP4 = true
	}

	if len(cfg.Network.DNSServers) > 0 || cfg.Network.SearchDomain != "" {
		ns := &Nameservers{Addresses: cfg.Network.DNSServers}
		if cfg.Network.SearchDomain != "" {
			ns.Search = []string{cfg.Network.SearchDomain}
		}
		eth.Nameservers = ns
	}

	nc := NetworkConfig{
		Version:   2,
		Ethernets: map[string]EthernetConfig{"eth0": eth},
	}
	out, err := yaml.Marshal(&nc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal network-config to YAML: %w", err)
	}
	return string(out), nil
}
