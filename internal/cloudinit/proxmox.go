package cloudinit

import (
	"strings"

	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/naming"
	"github.com/jbweber/palforge/internal/secret"
)

// Proxmox is the set of cloud-init options applied with `qm set`.
//
// With native delivery Drive is the Proxmox-managed cloud-init volume and the
// ci* options carry user, credentials and network. With NoCloud delivery Drive
// is the seed ISO and every other field is empty.
type Proxmox struct {
	Drive        string
	User         string
	Password     secret.Value
	SSHKeysFile  string
	IPConfig     string
	Nameservers  []string
	SearchDomain string
}

// Args renders the `qm set` arguments. Unset options are omitted.
func (p Proxmox) Args() []string {
	var args []string
	if p.Drive != "" {
		args = append(args, "--ide2", p.Drive)
	}
	if p.User != "" {
		args = append(args, "--ciuser", p.User)
	}
	if !p.Password.IsZero() {
		args = append(args, "--cipassword", p.Password.Reveal())
	}
	if p.SSHKeysFile != "" {
		args = append(args, "--sshkeys", p.SSHKeysFile)
	}
	if p.IPConfig != "" {
		args = append(args, "--ipconfig0", p.IPConfig)
	}
	if len(p.Nameservers) > 0 {
		args = append(args, "--nameserver", strings.Join(p.Nameservers, " "))
	}
	if p.SearchDomain != "" {
		args = append(args, "--searchdomain", p.SearchDomain)
	}
	return args
}

// IPConfig renders the ipconfig0 value for a network configuration.
//
//	dhcp:   ip=dhcp
//	static: ip=10.0.0.10/24,gw=10.0.0.1
func IPConfig(n config.NetworkConfig) string {
	if n.Mode == config.NetworkStatic {
		return "ip=" + n.Address + ",gw=" + n.Gateway
	}
	return "ip=dhcp"
}

// NativeOptions builds the options for Proxmox-managed cloud-init.
// sshKeysFile is the path of a file holding the authorized keys, or empty when
// the auth mode does not use keys.
func NativeOptions(cfg *config.VMConfig, sshKeysFile string) Proxmox {
	p := Proxmox{
		Drive:        naming.CloudInitVolumeRef(cfg.Storage),
		User:         cfg.Auth.User,
		IPConfig:     IPConfig(cfg.Network),
		Nameservers:  cfg.Network.DNSServers,
		SearchDomain: cfg.Network.SearchDomain,
	}
	if cfg.Auth.Mode.UsesPassword() {
		p.Password = cfg.Auth.Password
	}
	if cfg.Auth.Mode.UsesKeys() {
		p.SSHKeysFile = sshKeysFile
	}
	return p
}

// SeedOptions builds the options that attach a NoCloud seed ISO as a cdrom.
func SeedOptions(isoStorage, isoFile string) Proxmox {
	return Proxmox{Drive: naming.ISOVolumeRef(isoStorage, isoFile) + ",media=cdrom"}
}

// AuthorizedKeys renders keys as an authorized_keys file body.
func AuthorizedKeys(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return strings.Join(keys, "\n") + "\n"
}
