package pve

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

const qmListOutput = `      VMID NAME                 STATUS     MEM(MB)    BOOTDISK(GB) PID
      5001 prod-db-fra1         stopped    8192              64.00 0
       100 test                 running    2048              32.00 12345
`

func TestNodes(t *testing.T) {
	r := (&fakeRunner{}).on("pvesh get /nodes", `[{"node":"pve2","status":"online","cpu":0.1},{"node":"pve1","status":"offline"}]`, nil)
	c := New(r)

	nodes, err := c.Nodes(context.Background())
	if err != nil {
		t.Fatalf("Nodes() error = %v", err)
	}
	want := []Node{{Name: "pve1", Status: "offline"}, {Name: "pve2", Status: "online"}}
	if !reflect.DeepEqual(nodes, want) {
		t.Errorf("Nodes() = %+v, want %+v", nodes, want)
	}
	if r.calls[0] != "pvesh get /nodes --output-format json" {
		t.Errorf("command = %q", r.calls[0])
	}
}

func TestNodes_BadJSON(t *testing.T) {
	c := New((&fakeRunner{}).on("pvesh", "not json", nil))
	if _, err := c.Nodes(context.Background()); err == nil {
		t.Error("expected parse error")
	}
}

func TestVMExists(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{name: "exists", want: true},
		{name: "missing", err: exitErr("qm status 5000", "Configuration file 'nodes/pve/qemu-server/5000.conf' does not exist"), want: false},
		{name: "other failure", err: exitErr("qm status 5000", "permission denied"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := (&fakeRunner{}).on("qm status 5000", "status: stopped\n", tt.err)
			got, err := New(r).VMExists(context.Background(), 5000)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VMExists() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("VMExists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListVMs(t *testing.T) {
	c := New((&fakeRunner{}).on("qm list", qmListOutput, nil))
	vms, err := c.ListVMs(context.Background())
	if err != nil {
		t.Fatalf("ListVMs() error = %v", err)
	}
	want := []VMInfo{
		{VMID: 100, Name: "test", Status: "running", MemoryMB: 2048, BootDiskGB: 32, PID: 12345},
		{VMID: 5001, Name: "prod-db-fra1", Status: "stopped", MemoryMB: 8192, BootDiskGB: 64},
	}
	if !reflect.DeepEqual(vms, want) {
		t.Errorf("ListVMs() = %+v, want %+v", vms, want)
	}
}

func TestListVMs_Empty(t *testing.T) {
	c := New((&fakeRunner{}).on("qm list", "", nil))
	vms, err := c.ListVMs(context.Background())
	if err != nil || len(vms) != 0 {
		t.Errorf("ListVMs() = %v, %v", vms, err)
	}
}

func TestListVMs_Malformed(t *testing.T) {
	c := New((&fakeRunner{}).on("qm list", "abc broken\n", nil))
	if _, err := c.ListVMs(context.Background()); err == nil {
		t.Error("expected error for malformed output")
	}
}

func TestListVMs_CommandFails(t *testing.T) {
	c := New((&fakeRunner{}).on("qm list", "", errors.New("boom")))
	_, err := c.ListVMs(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to list VMs") {
		t.Errorf("error = %v", err)
	}
}
