package cloudinit

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kdomanski/iso9660"
)

func TestGenerateISO(t *testing.T) {
	tests := []struct {
		name string
		mac  string
		cfg  func() *testVM
	}{
		{name: "dhcp with keys", cfg: newTestVM},
		{name: "static with password", mac: "be:ef:0a:00:00:0a", cfg: func() *testVM {
			vm := newTestVM()
			vm.staticNetwork("10.0.0.10/24", "10.0.0.1")
			vm.passwordAuth("hunter2")
			return vm
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg().VMConfig
			isoBytes, err := GenerateISO(cfg, "7a3e0c55-0000-4000-8000-000000000001", tt.mac)
			if err != nil {
				t.Fatalf("GenerateISO() unexpected error: %v", err)
			}
			if len(isoBytes) == 0 {
				t.Fatal("GenerateISO() returned empty byte slice")
			}

			files := readISO(t, isoBytes)
			if len(files) != 3 {
				t.Errorf("ISO contains %d files, want 3", len(files))
			}

			wantUser, _ := GenerateUserData(cfg)
			wantMeta, _ := GenerateMetaData(cfg, "7a3e0c55-0000-4000-8000-000000000001")
			wantNet, _ := GenerateNetworkConfig(cfg, tt.mac)
			for name, want := range map[string]string{
				"user-data":      wantUser,
				"meta-data":      wantMeta,
				"network-config": wantNet,
			} {
				got, ok := files[name]
				if !ok {
					t.Errorf("required file %q not found in ISO", name)
					continue
				}
				if got != want {
					t.Errorf("%s content mismatch:\ngot:\n%s\n\nwant:\n%s", name, got, want)
				}
			}
		})
	}
}

func TestGenerateISO_Errors(t *testing.T) {
	if _, err := GenerateISO(nil, "id", ""); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := GenerateISO(newTestVM().VMConfig, "", ""); err == nil {
		t.Error("expected error for empty instance-id")
	}
}

func TestGenerateISO_VolumeID(t *testing.T) {
	isoBytes, err := GenerateISO(newTestVM().VMConfig, "id-1", "")
	if err != nil {
		t.Fatalf("GenerateISO() error: %v", err)
	}

	img, err := iso9660.OpenImage(bytes.NewReader(isoBytes))
	if err != nil {
		t.Fatalf("failed to open ISO: %v", err)
	}
	volumeID, err := img.Label()
	if err != nil {
		t.Fatalf("failed to get volume label: %v", err)
	}
	if volumeID != "CIDATA" {
		t.Errorf("volume ID = %q, want %q", volumeID, "CIDATA")
	}
}

func TestWriteISO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.iso")
	if err := WriteISO(path, []byte("iso")); err != nil {
		t.Fatalf("WriteISO() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

// readISO returns the root directory files of an ISO image by name.
func readISO(t *testing.T, isoBytes []byte) map[string]string {
	t.Helper()

	img, err := iso9660.OpenImage(bytes.NewReader(isoBytes))
	if err != nil {
		t.Fatalf("failed to open ISO image: %v", err)
	}
	root, err := img.RootDir()
	if err != nil {
		t.Fatalf("failed to get root directory: %v", err)
	}
	children, err := root.GetChildren()
	if err != nil {
		t.Fatalf("failed to get children: %v", err)
	}

	files := make(map[string]string, len(children))
	for _, child := range children {
		content, err := io.ReadAll(child.Reader())
		if err != nil {
			t.Fatalf("failed to read %s: %v", child.Name(), err)
		}
		files[child.Name()] = string(content)
	}
	return files
}
