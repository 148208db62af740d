package vm

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDestroy(t *testing.T) {
	tests := []struct {
		name    string
		state   string
		wantOps []string
	}{
		{name: "stopped VM", state: "stopped", wantOps: []string{"Destroy"}},
		{name: "running VM shuts down first", state: "running", wantOps: []string{"Shutdown", "Destroy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hv := newMockHypervisor()
			hv.vmExistsFunc = func(int) (bool, error) { return true, nil }
			hv.statusFunc = func(int) (string, error) { return tt.state, nil }

			if err := Destroy(context.Background(), hv, 5000); err != nil {
				t.Fatalf("Destroy() error = %v", err)
			}
			if !reflect.DeepEqual(hv.ops, tt.wantOps) {
				t.Errorf("ops = %v, want %v", hv.ops, tt.wantOps)
			}
			if !reflect.DeepEqual(hv.destroyCalls, []int{5000}) {
				t.Errorf("destroy calls = %v", hv.destroyCalls)
			}
		})
	}
}

func TestDestroy_NotFound(t *testing.T) {
	hv := newMockHypervisor()
	err := Destroy(context.Background(), hv, 5000)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %v", err)
	}
	if len(hv.destroyCalls) != 0 {
		t.Error("missing VM must not be destroyed")
	}
}

func TestDestroy_ShutdownFailureStillDestroys(t *testing.T) {
	hv := newMockHypervisor()
	hv.vmExistsFunc = func(int) (bool, error) { return true, nil }
	hv.statusFunc = func(int) (string, error) { return "running", nil }
	hv.shutdownFunc = func(int, int) error { return errors.New("timeout") }

	if err := Destroy(context.Background(), hv, 5000); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if len(hv.destroyCalls) != 1 {
		t.Errorf("destroy calls = %d, want 1", len(hv.destroyCalls))
	}
}

func TestDestroy_Errors(t *testing.T) {
	boom := errors.New("boom")

	hv := newMockHypervisor()
	hv.vmExistsFunc = func(int) (bool, error) { return false, boom }
	if err := Destroy(context.Background(), hv, 5000); !errors.Is(err, boom) {
		t.Errorf("lookup failure: error = %v", err)
	}

	hv = newMockHypervisor()
	hv.vmExistsFunc = func(int) (bool, error) { return true, nil }
	hv.destroyFunc = func(context.Context, int) error { return boom }
	if err := Destroy(context.Background(), hv, 5000); !errors.Is(err, boom) {
		t.Errorf("destroy failure: error = %v", err)
	}
}
