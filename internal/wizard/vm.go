// Package wizard collects provisioning parameters from the operator.
//
// Defaults come from the loaded configuration file. The only hypervisor calls
// made while collecting are read-only: node names, storage pools and VM id
// probes.
package wizard

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/log"
	"github.com/jbweber/palforge/internal/naming"
	"github.com/jbweber/palforge/internal/prompt"
	"github.com/jbweber/palforge/internal/pve"
	"github.com/jbweber/palforge/internal/vm"
)

// DefaultKeyFile is offered when key authentication needs keys.
const DefaultKeyFile = "/root/.ssh/authorized_keys"

// Inventory is the read-only view of the hypervisor the VM wizard needs.
//
// In production, this is satisfied by *pve.Client.
type Inventory interface {
	vm.VMLookup
	Nodes(ctx context.Context) ([]pve.Node, error)
	Storages(ctx context.Context, content string) ([]pve.Storage, error)
}

// CollectVM asks for every VM parameter, starting from defaults. The returned
// configuration is normalized and validated, including credentials.
func CollectVM(ctx context.Context, p *prompt.Prompter, inv Inventory, defaults config.VMConfig) (*config.VMConfig, error) {
	cfg := defaults
	cfg.Normalize()

	node, err := collectNode(ctx, p, inv, cfg.Node)
	if err != nil {
		return nil, err
	}
	cfg.Node = node

	if err := collectName(p, &cfg); err != nil {
		return nil, err
	}

	vmid, err := collectVMID(ctx, p, inv, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.VMID = vmid

	if cfg.Cores, err = p.PositiveInt("cores", "CPU cores", cfg.Cores); err != nil {
		return nil, err
	}
	if cfg.MemoryGB, err = p.PositiveInt("memory_gb", "Memory (GB)", cfg.MemoryGB); err != nil {
		return nil, err
	}
	if cfg.DiskGB, err = p.PositiveInt("disk_gb", "Disk size (GB)", cfg.DiskGB); err != nil {
		return nil, err
	}

	storage, err := collectStorage(ctx, p, inv, cfg.Storage)
	if err != nil {
		return nil, err
	}
	cfg.Storage = storage

	if cfg.Bridge, err = p.String("Network bridge", cfg.Bridge); err != nil {
		return nil, err
	}

	if err := collectAuth(p, &cfg.Auth); err != nil {
		return nil, err
	}
	if err := collectNetwork(p, &cfg.Network); err != nil {
		return nil, err
	}

	delivery, err := p.Choice("cloud_init.delivery", "Cloud-init delivery",
		[]string{string(config.DeliveryProxmox), string(config.DeliveryNoCloud)}, string(cfg.CloudInit.Delivery))
	if err != nil {
		return nil, err
	}
	cfg.CloudInit.Delivery = config.CloudInitDelivery(delivery)

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func collectNode(ctx context.Context, p *prompt.Prompter, inv Inventory, def string) (string, error) {
	nodes, err := inv.Nodes(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	switch len(names) {
	case 0:
		return "", fmt.Errorf("no Proxmox nodes found")
	case 1:
		log.Skipf("Using node %s", names[0])
		return names[0], nil
	}
	if !slices.Contains(names, def) {
		def = names[0]
	}
	return p.Choice("node", "Node", names, def)
}

func collectName(p *prompt.Prompter, cfg *config.VMConfig) error {
	var err error
	if cfg.Environment, err = p.String("Environment (e.g. prod)", cfg.Environment); err != nil {
		return err
	}
	if cfg.Role, err = p.String("Role (e.g. web)", cfg.Role); err != nil {
		return err
	}
	if cfg.Site, err = p.String("Site (e.g. fra1)", cfg.Site); err != nil {
		return err
	}

	def := cfg.Name
	if derived := naming.VMName(cfg.Environment, cfg.Role, cfg.Site); derived != "" {
		def = derived
	}
	name, err := p.Validated("VM name", def, func(s string) error {
		return config.ValidateName("name", strings.ToLower(s))
	})
	if err != nil {
		return err
	}
	cfg.Name = strings.ToLower(name)
	return nil
}

// collectVMID offers the first free id in the configured window. An explicit
// id from the defaults file is offered as is and checked at creation time.
func collectVMID(ctx context.Context, p *prompt.Prompter, inv Inventory, cfg *config.VMConfig) (int, error) {
	def := cfg.VMID
	if def == 0 {
		id, err := vm.SelectVMID(ctx, inv, cfg.IDRange.Start, cfg.IDRange.End)
		if err != nil {
			return 0, err
		}
		def = id
	}
	return p.PositiveInt("vmid", "VM ID", def)
}

func collectStorage(ctx context.Context, p *prompt.Prompter, inv Inventory, def string) (string, error) {
	pools, err := inv.Storages(ctx, "images")
	if err != nil {
		return "", err
	}
	var names []string
	for _, s := range pools {
		if s.Active() {
			names = append(names, s.Name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no active storage accepts disk images")
	}
	if !slices.Contains(names, def) {
		def = names[0]
	}
	return p.Choice("storage", "Disk storage", names, def)
}

func collectAuth(p *prompt.Prompter, auth *config.AuthConfig) error {
	mode, err := p.Choice("auth.mode", "Authentication",
		[]string{string(config.AuthKey), string(config.AuthPassword), string(config.AuthBoth)}, string(auth.Mode))
	if err != nil {
		return err
	}
	auth.Mode = config.AuthMode(mode)

	user, err := p.Validated("Default user", auth.User, func(s string) error {
		return config.ValidateName("auth.user", s)
	})
	if err != nil {
		return err
	}
	auth.User = user

	if auth.Mode.UsesPassword() && auth.Password.IsZero() {
		pw, err := p.Password("auth.password", "Password for "+user)
		if err != nil {
			return err
		}
		auth.Password = pw
	}

	if auth.Mode.UsesKeys() && len(auth.SSHKeys) == 0 {
		def := auth.SSHKeyFile
		if def == "" {
			def = DefaultKeyFile
		}
		path, err := p.String("SSH public key file", def)
		if err != nil {
			return err
		}
		keys, err := config.LoadSSHKeys(path)
		if err != nil {
			return err
		}
		auth.SSHKeyFile = path
		auth.SSHKeys = keys
		log.Okf("Loaded %d SSH key(s) from %s", len(keys), path)
	}
	return nil
}

func collectNetwork(p *prompt.Prompter, n *config.NetworkConfig) error {
	mode, err := p.Choice("network.mode", "Addressing",
		[]string{string(config.NetworkDHCP), string(config.NetworkStatic)}, string(n.Mode))
	if err != nil {
		return err
	}
	n.Mode = config.NetworkMode(mode)
	if n.Mode == config.NetworkDHCP {
		return nil
	}

	addrDef, prefixDef := n.Address, config.DefaultPrefix
	if a, pfx, ok := strings.Cut(n.Address, "/"); ok {
		addrDef = a
		if v, err := config.ParsePrefix("network.prefix", pfx); err == nil {
			prefixDef = v
		}
	}
	addr, err := p.IPv4("network.address", "IPv4 address", addrDef)
	if err != nil {
		return err
	}
	prefix, err := p.Prefix("network.prefix", "Prefix length", prefixDef)
	if err != nil {
		return err
	}
	n.Address = fmt.Sprintf("%s/%d", addr, prefix)

	if n.Gateway, err = p.IPv4("network.gateway", "Gateway", n.Gateway); err != nil {
		return err
	}

	dns, err := p.String("DNS servers (comma separated, empty for none)", strings.Join(n.DNSServers, ","))
	if err != nil {
		return err
	}
	n.DNSServers = nil
	for _, s := range strings.Split(dns, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		if err := config.ValidateIPv4("network.dns_servers", s); err != nil {
			return err
		}
		n.DNSServers = append(n.DNSServers, s)
	}
	return nil
}
