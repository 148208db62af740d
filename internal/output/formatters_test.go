package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/palforge/internal/app"
	"github.com/jbweber/palforge/internal/config"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/preflight"
	"github.com/jbweber/palforge/internal/pve"
	"github.com/jbweber/palforge/internal/status"
	"github.com/jbweber/palforge/internal/vm"
)

func testResult() *vm.Result {
	return &vm.Result{
		VMID:        5001,
		Name:        "prod-web-fra1",
		Cores:       2,
		MemoryGB:    4,
		DiskGB:      32,
		Storage:     "local-lvm",
		StorageType: "lvmthin",
		DiskVolume:  "local-lvm:vm-5001-disk-0",
		Bridge:      "vmbr0",
		IPConfig:    "ip=dhcp",
		User:        "admin",
		AuthMode:    config.AuthKey,
		Image:       "/var/lib/palforge/images/noble-server-cloudimg-amd64.img",
		Delivery:    "proxmox",
		Phase:       status.PhaseDone,
	}
}

func testVMs() []pve.VMInfo {
	return []pve.VMInfo{
		{VMID: 100, Name: "router", Status: "running", MemoryMB: 2048, BootDiskGB: 8, PID: 1234},
		{VMID: 5001, Name: "prod-web-fra1", Status: "stopped", MemoryMB: 4096, BootDiskGB: 32},
	}
}

func testEntries() []imagecache.Entry {
	return []imagecache.Entry{
		{Name: "fresh.img", Size: 3 << 20, Stamped: true, Age: 2 * 24 * time.Hour, Valid: true,
			DownloadedAt: time.Unix(1_700_000_000, 0).UTC()},
		{Name: "bare.img", Size: 512},
	}
}

func testPools() []pve.Storage {
	return []pve.Storage{
		{Name: "local-lvm", Type: "lvmthin", Status: "active", Total: 1 << 20, Used: 1 << 19, Available: 1 << 19, UsedPercent: 50},
	}
}

func testChecks() []preflight.CheckResult {
	return []preflight.CheckResult{
		{Name: "root privileges", OK: true, Message: "running as root"},
		{Name: "pvesh", Message: "pvesh not found in PATH", HowToFix: "line one\nline two"},
	}
}

func TestTableFormatter_FormatResult(t *testing.T) {
	out, err := (&TableFormatter{}).FormatResult(testResult())
	if err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}
	for _, want := range []string{"VMID:", "5001", "prod-web-fra1", "32 GiB on local-lvm (lvmthin)", "admin (key)", "Done"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Seed ISO") || strings.Contains(out, "MAC") {
		t.Errorf("empty fields should be skipped:\n%s", out)
	}
}

func TestTableFormatter_FormatVMList(t *testing.T) {
	tests := []struct {
		name      string
		vms       []pve.VMInfo
		noHeaders bool
		wantLines int
		want      []string
	}{
		{name: "empty", wantLines: 1, want: []string{"No VMs found"}},
		{name: "with headers", vms: testVMs(), wantLines: 3, want: []string{"VMID", "router", "1234", "4096 MiB", "32.0 GiB"}},
		{name: "no headers", vms: testVMs(), noHeaders: true, wantLines: 2, want: []string{"router"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&TableFormatter{NoHeaders: tt.noHeaders}).FormatVMList(tt.vms)
			if err != nil {
				t.Fatalf("FormatVMList() error = %v", err)
			}
			lines := strings.Split(strings.TrimSpace(out), "\n")
			if len(lines) != tt.wantLines {
				t.Errorf("got %d lines, want %d:\n%s", len(lines), tt.wantLines, out)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			if tt.noHeaders && strings.Contains(out, "VMID") {
				t.Error("header printed with NoHeaders")
			}
		})
	}
}

func TestTableFormatter_FormatImages(t *testing.T) {
	out, err := (&TableFormatter{}).FormatImages(testEntries())
	if err != nil {
		t.Fatalf("FormatImages() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if f := strings.Fields(lines[1]); len(f) != 4 || f[1] != "3.0MiB" || f[2] != "2d" || f[3] != "yes" {
		t.Errorf("fresh row = %q", lines[1])
	}
	if f := strings.Fields(lines[2]); len(f) != 4 || f[1] != "512B" || f[2] != "-" || f[3] != "no" {
		t.Errorf("bare row = %q", lines[2])
	}

	empty, _ := (&TableFormatter{}).FormatImages(nil)
	if empty != "No cached images\n" {
		t.Errorf("empty output = %q", empty)
	}
}

func TestTableFormatter_FormatStorage(t *testing.T) {
	out, err := (&TableFormatter{}).FormatStorage(testPools())
	if err != nil {
		t.Fatalf("FormatStorage() error = %v", err)
	}
	for _, want := range []string{"USE%", "local-lvm", "lvmthin", "1.0GiB", "512.0MiB", "50.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatter_FormatChecks(t *testing.T) {
	out, err := (&TableFormatter{}).FormatChecks(testChecks())
	if err != nil {
		t.Fatalf("FormatChecks() error = %v", err)
	}
	for _, want := range []string{"FAIL", "ok", "\npvesh:\n  line one\n  line two\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "root privileges:\n") {
		t.Error("hint printed for passing check")
	}
}

func TestTableFormatter_FormatInstall(t *testing.T) {
	out, err := (&TableFormatter{}).FormatInstall(&app.Result{
		URL:               "http://10.0.0.5:8080",
		Services:          []string{"db", "nocodb", "redis"},
		PasswordGenerated: true,
	})
	if err != nil {
		t.Fatalf("FormatInstall() error = %v", err)
	}
	for _, want := range []string{"http://10.0.0.5:8080", "db, nocodb, redis", "generated"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONFormatter{}

	out, err := f.FormatResult(testResult())
	if err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}
	var r map[string]any
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if r["vmid"] != float64(5001) || r["phase"] != "Done" {
		t.Errorf("result = %v", r)
	}
	if _, ok := r["History"]; ok {
		t.Error("history should not be serialized")
	}

	out, err = f.FormatVMList(nil)
	if err != nil || out != "[]\n" {
		t.Errorf("FormatVMList(nil) = %q, %v", out, err)
	}

	out, err = f.FormatImages(testEntries())
	if err != nil {
		t.Fatalf("FormatImages() error = %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(entries) != 2 || entries[0]["size_bytes"] != float64(3<<20) {
		t.Errorf("entries = %v", entries)
	}
	if _, ok := entries[1]["downloaded_at"]; ok {
		t.Error("zero download time should be omitted")
	}

	out, err = f.FormatChecks(testChecks())
	if err != nil || !strings.Contains(out, `"how_to_fix"`) {
		t.Errorf("FormatChecks() = %q, %v", out, err)
	}
}

func TestYAMLFormatter(t *testing.T) {
	f := &YAMLFormatter{}

	out, err := f.FormatVMList(testVMs())
	if err != nil {
		t.Fatalf("FormatVMList() error = %v", err)
	}
	var vms []pve.VMInfo
	if err := yaml.Unmarshal([]byte(out), &vms); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(vms) != 2 || vms[1].Name != "prod-web-fra1" {
		t.Errorf("vms = %+v", vms)
	}

	out, err = f.FormatStorage(nil)
	if err != nil || out != "[]\n" {
		t.Errorf("FormatStorage(nil) = %q, %v", out, err)
	}

	out, err = f.FormatResult(testResult())
	if err != nil {
		t.Fatalf("FormatResult() error = %v", err)
	}
	if !strings.Contains(out, "disk_volume: local-lvm:vm-5001-disk-0") {
		t.Errorf("output:\n%s", out)
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{
			name: "table format",
			opts: Options{Format: FormatTable},
		},
		{
			name: "yaml format",
			opts: Options{Format: FormatYAML},
		},
		{
			name: "json format",
			opts: Options{Format: FormatJSON},
		},
		{
			name:    "invalid format",
			opts:    Options{Format: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter, err := NewFormatter(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFormatter() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && formatter == nil {
				t.Error("NewFormatter() returned nil formatter")
			}
		})
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantErr bool
	}{
		{
			name:   "valid table",
			format: "table",
		},
		{
			name:   "valid yaml",
			format: "yaml",
		},
		{
			name:   "valid json",
			format: "json",
		},
		{
			name:    "invalid format",
			format:  "xml",
			wantErr: true,
		},
		{
			name:    "empty format",
			format:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFormat(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"5 seconds", 5 * time.Second, "5s"},
		{"30 seconds", 30 * time.Second, "30s"},
		{"2 minutes", 2 * time.Minute, "2m"},
		{"90 seconds", 90 * time.Second, "1m"},
		{"2 hours", 2 * time.Hour, "2h"},
		{"90 minutes", 90 * time.Minute, "1h"},
		{"2 days", 48 * time.Hour, "2d"},
		{"2 weeks", 14 * 24 * time.Hour, "2w"},
		{"50 days", 50 * 24 * time.Hour, "7w"},
		{"60 days", 60 * 24 * time.Hour, "60d"}, // >= 8 weeks shows as days
		{"400 days", 400 * 24 * time.Hour, "1y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatAge(tt.duration)
			if got != tt.want {
				t.Errorf("formatAge(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}
