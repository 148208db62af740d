package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/palforge/internal/app"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/preflight"
	"github.com/jbweber/palforge/internal/pve"
	"github.com/jbweber/palforge/internal/vm"
)

// YAMLFormatter formats results as YAML.
type YAMLFormatter struct{}

func marshalYAML(what string, v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to YAML: %w", what, err)
	}
	return string(data), nil
}

// FormatResult formats a VM summary as YAML.
func (f *YAMLFormatter) FormatResult(r *vm.Result) (string, error) {
	return marshalYAML("VM", r)
}

// FormatVMList formats VMs as a YAML sequence.
func (f *YAMLFormatter) FormatVMList(vms []pve.VMInfo) (string, error) {
	if len(vms) == 0 {
		return "[]\n", nil
	}
	return marshalYAML("VMs", vms)
}

// FormatImages formats cache entries as a YAML sequence.
func (f *YAMLFormatter) FormatImages(entries []imagecache.Entry) (string, error) {
	if len(entries) == 0 {
		return "[]\n", nil
	}
	return marshalYAML("images", entries)
}

// FormatStorage formats storage pools as a YAML sequence.
func (f *YAMLFormatter) FormatStorage(pools []pve.Storage) (string, error) {
	if len(pools) == 0 {
		return "[]\n", nil
	}
	return marshalYAML("storage", pools)
}

// FormatChecks formats doctor results as a YAML sequence.
func (f *YAMLFormatter) FormatChecks(results []preflight.CheckResult) (string, error) {
	if len(results) == 0 {
		return "[]\n", nil
	}
	return marshalYAML("checks", results)
}

// FormatInstall formats an install summary as YAML.
func (f *YAMLFormatter) FormatInstall(r *app.Result) (string, error) {
	return marshalYAML("install", r)
}
