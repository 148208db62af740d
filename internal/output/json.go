package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/palforge/internal/app"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/preflight"
	"github.com/jbweber/palforge/internal/pve"
	"github.com/jbweber/palforge/internal/vm"
)

// JSONFormatter formats results as JSON. Lists always render as arrays,
// never null.
type JSONFormatter struct{}

func marshalJSON(what string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}
	return string(data) + "\n", nil
}

// FormatResult formats a VM summary as JSON.
func (f *JSONFormatter) FormatResult(r *vm.Result) (string, error) {
	return marshalJSON("VM", r)
}

// FormatVMList formats VMs as a JSON array.
func (f *JSONFormatter) FormatVMList(vms []pve.VMInfo) (string, error) {
	if vms == nil {
		vms = []pve.VMInfo{}
	}
	return marshalJSON("VMs", vms)
}

// FormatImages formats cache entries as a JSON array.
func (f *JSONFormatter) FormatImages(entries []imagecache.Entry) (string, error) {
	if entries == nil {
		entries = []imagecache.Entry{}
	}
	return marshalJSON("images", entries)
}

// FormatStorage formats storage pools as a JSON array.
func (f *JSONFormatter) FormatStorage(pools []pve.Storage) (string, error) {
	if pools == nil {
		pools = []pve.Storage{}
	}
	return marshalJSON("storage", pools)
}

// FormatChecks formats doctor results as a JSON array.
func (f *JSONFormatter) FormatChecks(results []preflight.CheckResult) (string, error) {
	if results == nil {
		results = []preflight.CheckResult{}
	}
	return marshalJSON("checks", results)
}

// FormatInstall formats an install summary as JSON.
func (f *JSONFormatter) FormatInstall(r *app.Result) (string, error) {
	return marshalJSON("install", r)
}
