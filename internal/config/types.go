package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/palforge/internal/naming"
	"github.com/jbweber/palforge/internal/secret"
)

// DefaultPath is where the defaults file is looked up when --config is unset.
const DefaultPath = "/etc/palforge/palforge.yaml"

// Defaults applied by Normalize.
const (
	DefaultIDRangeStart = 5000
	DefaultIDRangeEnd   = 5999
	DefaultCores        = 2
	DefaultMemoryGB     = 4
	DefaultDiskGB       = 32
	DefaultBridge       = "vmbr0"
	DefaultStorage      = "local-lvm"
	DefaultImageURL     = "https://cloud-images.ubuntu.com/noble/current/noble-server-cloudimg-amd64.img"
	DefaultCacheDir     = "/var/lib/palforge/images"
	DefaultMaxAgeDays   = 30
	DefaultUser         = "admin"
	DefaultISOStorage   = "local"
	DefaultISODir       = "/var/lib/vz/template/iso"
	DefaultPrefix       = 24

	DefaultInstallDir = "/opt/nocodb"
)

// AuthMode selects how the default cloud-init user authenticates.
type AuthMode string

const (
	AuthPassword AuthMode = "password"
	AuthKey      AuthMode = "key"
	AuthBoth     AuthMode = "both"
)

// UsesPassword reports whether the mode needs a password.
func (m AuthMode) UsesPassword() bool { return m == AuthPassword || m == AuthBoth }

// UsesKeys reports whether the mode needs SSH keys.
func (m AuthMode) UsesKeys() bool { return m == AuthKey || m == AuthBoth }

// NetworkMode selects how the first NIC is addressed.
type NetworkMode string

const (
	NetworkDHCP   NetworkMode = "dhcp"
	NetworkStatic NetworkMode = "static"
)

// CloudInitDelivery selects how cloud-init data reaches the guest.
type CloudInitDelivery string

const (
	// DeliveryProxmox uses the Proxmox-managed cloud-init drive and ci* options.
	DeliveryProxmox CloudInitDelivery = "proxmox"
	// DeliveryNoCloud attaches a generated NoCloud seed ISO.
	DeliveryNoCloud CloudInitDelivery = "nocloud"
)

// File is the on-disk defaults file.
type File struct {
	VM  VMConfig  `yaml:"vm"`
	App AppConfig `yaml:"app"`
}

// VMConfig describes one VM to provision.
type VMConfig struct {
	Environment string `yaml:"environment,omitempty"`
	Role        string `yaml:"role,omitempty"`
	Site        string `yaml:"site,omitempty"`
	Name        string `yaml:"name,omitempty"` // Derived from environment/role/site when empty

	VMID    int     `yaml:"vmid,omitempty"` // 0 selects the first free id in IDRange
	IDRange IDRange `yaml:"id_range,omitempty"`
	Node    string  `yaml:"node,omitempty"`

	Cores    int    `yaml:"cores"`
	MemoryGB int    `yaml:"memory_gb"`
	DiskGB   int    `yaml:"disk_gb"`
	Bridge   string `yaml:"bridge"`
	Storage  string `yaml:"storage"`
	OnBoot   bool   `yaml:"onboot,omitempty"`

	Image     ImageConfig     `yaml:"image"`
	Auth      AuthConfig      `yaml:"auth"`
	Network   NetworkConfig   `yaml:"network"`
	CloudInit CloudInitConfig `yaml:"cloud_init"`
}

// IDRange is the inclusive window scanned for a free VM id.
type IDRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// ImageConfig describes the cloud image and its cache.
type ImageConfig struct {
	URL        string `yaml:"url"`
	CacheDir   string `yaml:"cache_dir,omitempty"`
	MaxAgeDays *int   `yaml:"max_age_days,omitempty"` // Pointer to distinguish unset vs 0
	SHA256     string `yaml:"sha256,omitempty"`
	Cache      *bool  `yaml:"cache,omitempty"` // false downloads to a temp dir removed on exit
}

// AuthConfig configures the default cloud-init user.
type AuthConfig struct {
	Mode       AuthMode     `yaml:"mode"`
	User       string       `yaml:"user"`
	Password   secret.Value `yaml:"password,omitempty"`
	SSHKeys    []string     `yaml:"ssh_keys,omitempty"`
	SSHKeyFile string       `yaml:"ssh_key_file,omitempty"`
}

// NetworkConfig configures net0 / ipconfig0.
type NetworkConfig struct {
	Mode         NetworkMode `yaml:"mode"`
	Address      string      `yaml:"address,omitempty"` // IPv4 with prefix, e.g. 10.0.0.10/24
	Gateway      string      `yaml:"gateway,omitempty"`
	DNSServers   []string    `yaml:"dns_servers,omitempty"`
	SearchDomain string      `yaml:"search_domain,omitempty"`
	VLAN         int         `yaml:"vlan,omitempty"`
}

// CloudInitConfig selects cloud-init delivery.
type CloudInitConfig struct {
	Delivery   CloudInitDelivery `yaml:"delivery"`
	ISOStorage string            `yaml:"iso_storage,omitempty"` // Storage holding seed ISOs (nocloud)
	ISODir     string            `yaml:"iso_dir,omitempty"`     // Filesystem path of ISOStorage's iso directory
}

// AppConfig configures the NocoDB stack installer.
type AppConfig struct {
	InstallDir  string       `yaml:"install_dir,omitempty"`
	Domain      string       `yaml:"domain,omitempty"`
	ACMEEmail   string       `yaml:"acme_email,omitempty"`
	PublicPort  int          `yaml:"public_port,omitempty"`
	DBName      string       `yaml:"db_name,omitempty"`
	DBUser      string       `yaml:"db_user,omitempty"`
	DBPassword  secret.Value `yaml:"db_password,omitempty"`
	TunnelToken secret.Value `yaml:"tunnel_token,omitempty"`
}

// MaxAge returns the cache TTL in days.
func (i *ImageConfig) MaxAge() int {
	if i.MaxAgeDays == nil {
		return DefaultMaxAgeDays
	}
	return *i.MaxAgeDays
}

// Cached reports whether the image should be kept in the cache.
func (i *ImageConfig) Cached() bool {
	return i.Cache == nil || *i.Cache
}

// FileName returns the final path segment of the image URL.
func (i *ImageConfig) FileName() string {
	u, err := url.Parse(i.URL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

// Normalize sanitizes user input and fills defaults.
func (c *VMConfig) Normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	c.Site = strings.ToLower(strings.TrimSpace(c.Site))
	c.Name = strings.ToLower(strings.TrimSpace(c.Name))
	if c.Name == "" {
		c.Name = naming.VMName(c.Environment, c.Role, c.Site)
	}

	if c.IDRange.Start == 0 && c.IDRange.End == 0 {
		c.IDRange = IDRange{Start: DefaultIDRangeStart, End: DefaultIDRangeEnd}
	}
	if c.Cores == 0 {
		c.Cores = DefaultCores
	}
	if c.MemoryGB == 0 {
		c.MemoryGB = DefaultMemoryGB
	}
	if c.DiskGB == 0 {
		c.DiskGB = DefaultDiskGB
	}
	// Bridge and storage names must match the host exactly, so only trim.
	c.Bridge = strings.TrimSpace(c.Bridge)
	if c.Bridge == "" {
		c.Bridge = DefaultBridge
	}
	c.Storage = strings.TrimSpace(c.Storage)
	if c.Storage == "" {
		c.Storage = DefaultStorage
	}

	c.Image.URL = strings.TrimSpace(c.Image.URL)
	if c.Image.URL == "" {
		c.Image.URL = DefaultImageURL
	}
	if c.Image.CacheDir == "" {
		c.Image.CacheDir = DefaultCacheDir
	}
	c.Image.SHA256 = strings.ToLower(strings.TrimSpace(c.Image.SHA256))

	c.Auth.Mode = AuthMode(strings.ToLower(string(c.Auth.Mode)))
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthKey
	}
	c.Auth.User = strings.TrimSpace(c.Auth.User)
	if c.Auth.User == "" {
		c.Auth.User = DefaultUser
	}

	c.Network.Mode = NetworkMode(strings.ToLower(string(c.Network.Mode)))
	if c.Network.Mode == "" {
		c.Network.Mode = NetworkDHCP
	}
	c.Network.Address = strings.TrimSpace(c.Network.Address)
	c.Network.Gateway = strings.TrimSpace(c.Network.Gateway)

	c.CloudInit.Delivery = CloudInitDelivery(strings.ToLower(string(c.CloudInit.Delivery)))
	if c.CloudInit.Delivery == "" {
		c.CloudInit.Delivery = DeliveryProxmox
	}
	if c.CloudInit.ISOStorage == "" {
		c.CloudInit.ISOStorage = DefaultISOStorage
	}
	if c.CloudInit.ISODir == "" {
		c.CloudInit.ISODir = DefaultISODir
	}
}

// Validate checks the configuration structure. It does not contact the
// hypervisor and does not require credentials; see ValidateCredentials.
func (c *VMConfig) Validate() error {
	if err := ValidateName("name", c.Name); err != nil {
		return err
	}

	if c.IDRange.Start < 100 {
		return fieldErr("id_range.start", fmt.Sprint(c.IDRange.Start), "must be >= 100")
	}
	if c.IDRange.End < c.IDRange.Start {
		return fieldErr("id_range.end", fmt.Sprint(c.IDRange.End), "must be >= id_range.start (%d)", c.IDRange.Start)
	}
	if c.VMID != 0 && c.VMID < 100 {
		return fieldErr("vmid", fmt.Sprint(c.VMID), "must be >= 100")
	}

	if c.Cores <= 0 {
		return fieldErr("cores", fmt.Sprint(c.Cores), "must be greater than 0")
	}
	if c.MemoryGB <= 0 {
		return fieldErr("memory_gb", fmt.Sprint(c.MemoryGB), "must be greater than 0")
	}
	if c.DiskGB <= 0 {
		return fieldErr("disk_gb", fmt.Sprint(c.DiskGB), "must be greater than 0")
	}
	if c.Bridge == "" {
		return fieldErr("bridge", "", "is required")
	}
	if c.Storage == "" {
		return fieldErr("storage", "", "is required")
	}

	if err := c.Image.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Network.Validate(); err != nil {
		return err
	}

	switch c.CloudInit.Delivery {
	case DeliveryProxmox, DeliveryNoCloud:
	default:
		return fieldErr("cloud_init.delivery", string(c.CloudInit.Delivery), "must be proxmox or nocloud")
	}

	return nil
}

// ValidateCredentials checks that the selected auth mode has what it needs.
func (c *VMConfig) ValidateCredentials() error {
	if c.Auth.Mode.UsesPassword() && c.Auth.Password.IsZero() {
		return fieldErr("auth.password", "", "is required for auth mode %q", c.Auth.Mode)
	}
	if c.Auth.Mode.UsesKeys() && len(c.Auth.SSHKeys) == 0 {
		return fieldErr("auth.ssh_keys", "", "at least one key is required for auth mode %q", c.Auth.Mode)
	}
	return nil
}

// Validate checks the image settings.
func (i *ImageConfig) Validate() error {
	u, err := url.Parse(i.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fieldErr("image.url", i.URL, "must be an http(s) URL")
	}
	if name := path.Base(u.Path); name == "" || name == "/" || name == "." {
		return fieldErr("image.url", i.URL, "must end in a file name")
	}
	if i.CacheDir == "" {
		return fieldErr("image.cache_dir", "", "is required")
	}
	if i.MaxAgeDays != nil && *i.MaxAgeDays < 0 {
		return fieldErr("image.max_age_days", fmt.Sprint(*i.MaxAgeDays), "must be >= 0")
	}
	if i.SHA256 != "" && !sha256Pattern.MatchString(i.SHA256) {
		return fieldErr("image.sha256", i.SHA256, "must be 64 hex characters")
	}
	return nil
}

// Validate checks the auth settings. Keys that are present must parse.
func (a *AuthConfig) Validate() error {
	switch a.Mode {
	case AuthPassword, AuthKey, AuthBoth:
	default:
		return fieldErr("auth.mode", string(a.Mode), "must be password, key or both")
	}
	if err := ValidateName("auth.user", a.User); err != nil {
		return err
	}
	for i, key := range a.SSHKeys {
		if err := ValidateSSHKey(fmt.Sprintf("auth.ssh_keys[%d]", i), key); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the network settings.
func (n *NetworkConfig) Validate() error {
	switch n.Mode {
	case NetworkDHCP:
	case NetworkStatic:
		if err := ValidateCIDR("network.address", n.Address); err != nil {
			return err
		}
		if err := ValidateIPv4("network.gateway", n.Gateway); err != nil {
			return err
		}
	default:
		return fieldErr("network.mode", string(n.Mode), "must be dhcp or static")
	}
	for i, dns := range n.DNSServers {
		if err := ValidateIPv4(fmt.Sprintf("network.dns_servers[%d]", i), dns); err != nil {
			return err
		}
	}
	if n.VLAN < 0 || n.VLAN > 4094 {
		return fieldErr("network.vlan", fmt.Sprint(n.VLAN), "must be between 0 and 4094")
	}
	return nil
}

// Normalize fills app defaults.
func (a *AppConfig) Normalize() {
	if a.InstallDir == "" {
		a.InstallDir = DefaultInstallDir
	}
	a.Domain = strings.ToLower(strings.TrimSpace(a.Domain))
	a.ACMEEmail = strings.TrimSpace(a.ACMEEmail)
	if a.PublicPort == 0 {
		a.PublicPort = 8080
	}
	if a.DBName == "" {
		a.DBName = "nocodb"
	}
	if a.DBUser == "" {
		a.DBUser = "nocodb"
	}
}

// Validate checks the app settings.
func (a *AppConfig) Validate() error {
	if !strings.HasPrefix(a.InstallDir, "/") {
		return fieldErr("app.install_dir", a.InstallDir, "must be an absolute path")
	}
	if a.PublicPort <= 0 || a.PublicPort > 65535 {
		return fieldErr("app.public_port", fmt.Sprint(a.PublicPort), "must be between 1 and 65535")
	}
	if a.Domain != "" && a.ACMEEmail == "" {
		return fieldErr("app.acme_email", "", "is required when a domain is set")
	}
	if a.ACMEEmail != "" && !strings.Contains(a.ACMEEmail, "@") {
		return fieldErr("app.acme_email", a.ACMEEmail, "must be an email address")
	}
	for field, v := range map[string]string{"app.db_name": a.DBName, "app.db_user": a.DBUser} {
		if !namePattern.MatchString(v) {
			return fieldErr(field, v, "must be lowercase letters, digits or hyphens")
		}
	}
	return nil
}

// LoadFromFile loads the defaults file at path. A missing file yields
// defaults only.
func LoadFromFile(path string) (*File, error) {
	var f File

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	f.VM.Normalize()
	f.App.Normalize()

	if f.VM.Auth.SSHKeyFile != "" && len(f.VM.Auth.SSHKeys) == 0 {
		keys, err := LoadSSHKeys(f.VM.Auth.SSHKeyFile)
		if err != nil {
			return nil, err
		}
		f.VM.Auth.SSHKeys = keys
	}

	// Names are usually supplied by the wizard, so only validate one that is set.
	if f.VM.Name != "" {
		if err := f.VM.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	if err := f.App.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &f, nil
}

// LoadSSHKeys reads and validates an authorized_keys style file.
func LoadSSHKeys(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key file: %w", err)
	}
	return ParseAuthorizedKeys(path, data)
}
