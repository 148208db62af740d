package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/log"
	"github.com/jbweber/palforge/internal/preflight"
	"github.com/jbweber/palforge/internal/pve"
	"github.com/jbweber/palforge/internal/vm"
	"github.com/jbweber/palforge/internal/wizard"
)

var vmCmd = &cobra.Command{
	Use:   "vm",
	Short: "Provision and manage VMs",
}

var (
	createVMID    int
	createStorage string
	listStart     int
	listEnd       int
)

func init() {
	vmCreateCmd.Flags().IntVar(&createVMID, "vmid", 0, "VM id to offer instead of the first free id")
	vmCreateCmd.Flags().StringVar(&createStorage, "storage", "", "disk storage to offer as default")
	vmListCmd.Flags().IntVar(&listStart, "start", 0, "lowest VM id to show")
	vmListCmd.Flags().IntVar(&listEnd, "end", 0, "highest VM id to show")

	vmCmd.AddCommand(vmCreateCmd)
	vmCmd.AddCommand(vmDestroyCmd)
	vmCmd.AddCommand(vmListCmd)
}

var vmCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a VM from a cloud image",
	Long: `Create a VM from a cloud image using cloud-init.

The wizard asks for every parameter, then:
- Downloads the cloud image (or reuses a fresh cached copy)
- Creates the VM shell
- Imports, attaches and resizes the boot disk
- Configures cloud-init, boot order and the serial console
- Starts the VM

If any step after the VM shell exists fails, the VM is destroyed again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		checker := preflight.New(runner)
		if err := checker.RequireRoot(); err != nil {
			return err
		}
		if err := checker.RequireCommands(preflight.HostCommands...); err != nil {
			return err
		}

		f, err := loadConfig()
		if err != nil {
			return err
		}
		defaults := f.VM
		if createVMID != 0 {
			defaults.VMID = createVMID
		}
		if createStorage != "" {
			defaults.Storage = createStorage
		}

		client := pve.New(runner)
		p := newPrompter()
		cfg, err := wizard.CollectVM(ctx, p, client, defaults)
		if err != nil {
			return err
		}

		printPlan(cfg)
		if err := confirm(p, "Create this VM?", true); err != nil {
			return err
		}

		onProgress, done := newProgress("Downloading image")
		defer done()
		cache := imagecache.New(cfg.Image.CacheDir, imagecache.NewHTTPDownloader(), imagecache.WithProgress(onProgress))

		res, err := vm.NewProvisioner(client, cache).Create(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create VM: %w", err)
		}

		formatter, err := newFormatter()
		if err != nil {
			return err
		}
		return render(formatter.FormatResult, res)
	},
}

// printPlan shows what is about to be created.
func printPlan(cfg *config.VMConfig) {
	vmid := "first free"
	if cfg.VMID != 0 {
		vmid = fmt.Sprint(cfg.VMID)
	}
	log.Infof("VM %s (id %s) on node %s", cfg.Name, vmid, cfg.Node)
	log.Infof("  %d cores, %d GiB memory, %d GiB disk on %s", cfg.Cores, cfg.MemoryGB, cfg.DiskGB, cfg.Storage)
	network := "dhcp"
	if cfg.Network.Mode == config.NetworkStatic {
		network = fmt.Sprintf("%s via %s", cfg.Network.Address, cfg.Network.Gateway)
	}
	log.Infof("  bridge %s, %s", cfg.Bridge, network)
	log.Infof("  user %s (%s), cloud-init %s", cfg.Auth.User, cfg.Auth.Mode, cfg.CloudInit.Delivery)
	log.Infof("  image %s", cfg.Image.URL)
}

var vmDestroyCmd = &cobra.Command{
	Use:   "destroy <vmid>",
	Short: "Destroy a VM",
	Long: `Destroy a VM by id.

This will:
- Ask a running guest to shut down, then stop it
- Destroy the VM and purge its disks and unreferenced volumes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vmid, err := config.ParsePositiveInt("vmid", args[0])
		if err != nil {
			return err
		}

		checker := preflight.New(runner)
		if err := checker.RequireRoot(); err != nil {
			return err
		}
		if err := checker.RequireCommands("qm"); err != nil {
			return err
		}

		p := newPrompter()
		if err := confirm(p, fmt.Sprintf("Destroy VM %d and all its disks?", vmid), false); err != nil {
			return err
		}
		return vm.Destroy(cmd.Context(), pve.New(runner), vmid)
	},
}

var vmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List VMs",
	Long: `List the VMs on this node.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML sequence
  -o json   JSON array`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := preflight.New(runner).RequireCommands("qm"); err != nil {
			return err
		}
		vms, err := vm.List(cmd.Context(), pve.New(runner), vm.ListFilter{Start: listStart, End: listEnd})
		if err != nil {
			return fmt.Errorf("failed to list VMs: %w", err)
		}
		formatter, err := newFormatter()
		if err != nil {
			return err
		}
		return render(formatter.FormatVMList, vms)
	},
}
