package cloudinit

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/secret"
)

const testKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIIbJKZscbOLzBsgY5y2QupKW4A2kSDjMBQGPb1dChr+S test@example.com"

type testVM struct {
	*config.VMConfig
}

func newTestVM() *testVM {
	cfg := &config.VMConfig{
		Name: "prod-web-fra1",
		Auth: config.AuthConfig{
			Mode:    config.AuthKey,
			User:    "admin",
			SSHKeys: []string{testKey},
		},
	}
	cfg.Normalize()
	return &testVM{cfg}
}

func (v *testVM) staticNetwork(addr, gw string) {
	v.Network.Mode = config.NetworkStatic
	v.Network.Address = addr
	v.Network.Gateway = gw
}

func (v *testVM) passwordAuth(pw string) {
	v.Auth.Mode = config.AuthPassword
	v.Auth.Password = secret.New(pw)
	v.Auth.SSHKeys = nil
}

func TestGenerateUserData_Keys(t *testing.T) {
	vm := newTestVM()

	out, err := GenerateUserData(vm.VMConfig)
	if err != nil {
		t.Fatalf("GenerateUserData() error = %v", err)
	}
	if !strings.HasPrefix(out, "#cloud-config\n") {
		t.Errorf("missing #cloud-config header:\n%s", out)
	}

	var ud UserData
	if err := yaml.Unmarshal([]byte(out), &ud); err != nil {
		t.Fatalf("user-data is not valid YAML: %v", err)
	}
	if ud.Hostname != "prod-web-fra1" {
		t.Errorf("hostname = %q", ud.Hostname)
	}
	if len(ud.Users) != 1 || ud.Users[0].Name != "admin" {
		t.Fatalf("users = %+v", ud.Users)
	}
	u := ud.Users[0]
	if !u.LockPassword {
		t.Error("key-only auth should lock the password")
	}
	if len(u.SSHAuthorizedKeys) != 1 || u.SSHAuthorizedKeys[0] != testKey {
		t.Errorf("ssh_authorized_keys = %v", u.SSHAuthorizedKeys)
	}
	if ud.Chpasswd != nil || ud.SSHPasswordAuth {
		t.Error("key-only auth should not set a password")
	}
}

func TestGenerateUserData_Password(t *testing.T) {
	vm := newTestVM()
	vm.passwordAuth(`p@ss"word: with #yaml`)

	out, err := GenerateUserData(vm.VMConfig)
	if err != nil {
		t.Fatalf("GenerateUserData() error = %v", err)
	}

	var ud UserData
	if err := yaml.Unmarshal([]byte(out), &ud); err != nil {
		t.Fatalf("user-data is not valid YAML: %v", err)
	}
	if ud.Chpasswd == nil || len(ud.Chpasswd.Users) != 1 {
		t.Fatalf("chpasswd = %+v", ud.Chpasswd)
	}
	if got := ud.Chpasswd.Users[0].Password; got != `p@ss"word: with #yaml` {
		t.Errorf("password round trip = %q", got)
	}
	if !ud.SSHPasswordAuth {
		t.Error("password auth should enable ssh_pwauth")
	}
	if ud.Users[0].LockPassword {
		t.Error("password auth should not lock the password")
	}
	if len(ud.Users[0].SSHAuthorizedKeys) != 0 {
		t.Error("password-only auth should not install keys")
	}
}

func TestGenerateMetaData(t *testing.T) {
	out, err := GenerateMetaData(newTestVM().VMConfig, "abc-123")
	if err != nil {
		t.Fatalf("GenerateMetaData() error = %v", err)
	}
	want := "instance-id: abc-123\nlocal-hostname: prod-web-fra1\n"
	if out != want {
		t.Errorf("meta-data = %q, want %q", out, want)
	}
}

func TestGenerateNetworkConfig(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testVM)
		mac   string
		check func(*testing.T, EthernetConfig)
	}{
		{
			name: "dhcp matched by name",
			check: func(t *testing.T, eth EthernetConfig) {
				if !eth.DHCP4 || len(eth.Addresses) != 0 {
					t.Errorf("eth0 = %+v, want dhcp", eth)
				}
				if eth.Match.Name != "e*" || eth.Match.MACAddress != "" {
					t.Errorf("match = %+v", eth.Match)
				}
			},
		},
		{
			name: "static matched by MAC",
			setup: func(v *testVM) {
				v.staticNetwork("10.0.0.10/24", "10.0.0.1")
				v.Network.DNSServers = []string{"1.1.1.1", "9.9.9.9"}
				v.Network.SearchDomain = "example.com"
			},
			mac: "be:ef:0a:00:00:0a",
			check: func(t *testing.T, eth EthernetConfig) {
				if eth.DHCP4 {
					t.Error("static config should not enable dhcp4")
				}
				if len(eth.Addresses) != 1 || eth.Addresses[0] != "10.0.0.10/24" {
					t.Errorf("addresses = %v", eth.Addresses)
				}
				if len(eth.Routes) != 1 || eth.Routes[0] != (RouteConfig{To: "0.0.0.0/0", Via: "10.0.0.1"}) {
					t.Errorf("routes = %v", eth.Routes)
				}
				if eth.Match.MACAddress != "be:ef:0a:00:00:0a" {
					t.Errorf("match = %+v", eth.Match)
				}
				if eth.Nameservers == nil || len(eth.Nameservers.Addresses) != 2 || eth.Nameservers.Search[0] != "example.com" {
					t.Errorf("nameservers = %+v", eth.Nameservers)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM()
			if tt.setup != nil {
				tt.setup(vm)
			}
			out, err := GenerateNetworkConfig(vm.VMConfig, tt.mac)
			if err != nil {
				t.Fatalf("GenerateNetworkConfig() error = %v", err)
			}
			var nc NetworkConfig
			if err := yaml.Unmarshal([]byte(out), &nc); err != nil {
				t.Fatalf("network-config is not valid YAML: %v", err)
			}
			if nc.Version != 2 {
				t.Errorf("version = %d", nc.Version)
			}
			tt.check(t, nc.Ethernets["eth0"])
		})
	}
}

func TestGenerateNetworkConfig_StaticIncomplete(t *testing.T) {
	vm := newTestVM()
	vm.Network.Mode = config.NetworkStatic
	if _, err := GenerateNetworkConfig(vm.VMConfig, ""); err == nil {
		t.Error("expected error for static network without address")
	}
}

func TestGenerators_NilConfig(t *testing.T) {
	if _, err := GenerateUserData(nil); err == nil {
		t.Error("GenerateUserData(nil) should fail")
	}
	if _, err := GenerateMetaData(nil, "x"); err == nil {
		t.Error("GenerateMetaData(nil) should fail")
	}
	if _, err := GenerateNetworkConfig(nil, ""); err == nil {
		t.Error("GenerateNetworkConfig(nil) should fail")
	}
}
