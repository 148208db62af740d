// Package output provides formatters for displaying palforge results
// in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/palforge/internal/app"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/preflight"
	"github.com/jbweber/palforge/internal/pve"
	"github.com/jbweber/palforge/internal/vm"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats palforge results for output.
type Formatter interface {
	// FormatResult formats the summary of a provisioned VM.
	FormatResult(r *vm.Result) (string, error)

	// FormatVMList formats the VMs reported by qm list.
	FormatVMList(vms []pve.VMInfo) (string, error)

	// FormatImages formats image cache entries.
	FormatImages(entries []imagecache.Entry) (string, error)

	// FormatStorage formats storage pools.
	FormatStorage(pools []pve.Storage) (string, error)

	// FormatChecks formats doctor results.
	FormatChecks(results []preflight.CheckResult) (string, error)

	// FormatInstall formats the summary of an application install.
	FormatInstall(r *app.Result) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
