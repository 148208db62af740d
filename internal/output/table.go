package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jbweber/palforge/internal/app"
	"github.com/jbweber/palforge/internal/imagecache"
	"github.com/jbweber/palforge/internal/preflight"
	"github.com/jbweber/palforge/internal/progress"
	"github.com/jbweber/palforge/internal/pve"
	"github.com/jbweber/palforge/internal/vm"
)

// TableFormatter formats results as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

func newTabWriter(buf *bytes.Buffer) *tabwriter.Writer {
	return tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
}

// keyValues renders two aligned columns, skipping empty values.
func keyValues(pairs [][2]string) string {
	var buf bytes.Buffer
	w := newTabWriter(&buf)
	for _, kv := range pairs {
		if kv[1] == "" {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s:\t%s\n", kv[0], kv[1])
	}
	_ = w.Flush()
	return buf.String()
}

// FormatResult formats a VM summary as a two column table.
func (f *TableFormatter) FormatResult(r *vm.Result) (string, error) {
	image := r.Image
	if r.ImageDownloaded {
		image += " (downloaded)"
	}
	return keyValues([][2]string{
		{"VMID", fmt.Sprint(r.VMID)},
		{"Name", r.Name},
		{"Node", r.Node},
		{"Phase", string(r.Phase)},
		{"CPU", fmt.Sprintf("%d cores", r.Cores)},
		{"Memory", fmt.Sprintf("%d GiB", r.MemoryGB)},
		{"Disk", fmt.Sprintf("%d GiB on %s (%s)", r.DiskGB, r.Storage, r.StorageType)},
		{"Volume", r.DiskVolume},
		{"Bridge", r.Bridge},
		{"MAC", r.MAC},
		{"Network", r.IPConfig},
		{"User", fmt.Sprintf("%s (%s)", r.User, r.AuthMode)},
		{"Image", image},
		{"Cloud-init", r.Delivery},
		{"Seed ISO", r.SeedISO},
		{"UUID", r.UUID},
	}), nil
}

// FormatVMList formats VMs as a table.
func (f *TableFormatter) FormatVMList(vms []pve.VMInfo) (string, error) {
	if len(vms) == 0 {
		return "No VMs found\n", nil
	}

	var buf bytes.Buffer
	w := newTabWriter(&buf)
	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "VMID\tNAME\tSTATUS\tMEMORY\tBOOTDISK\tPID")
	}
	for _, v := range vms {
		pid := "-"
		if v.PID > 0 {
			pid = fmt.Sprint(v.PID)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d MiB\t%.1f GiB\t%s\n",
			v.VMID, v.Name, v.Status, v.MemoryMB, v.BootDiskGB, pid)
	}
	_ = w.Flush()
	return buf.String(), nil
}

// FormatImages formats cache entries as a table.
func (f *TableFormatter) FormatImages(entries []imagecache.Entry) (string, error) {
	if len(entries) == 0 {
		return "No cached images\n", nil
	}

	var buf bytes.Buffer
	w := newTabWriter(&buf)
	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSIZE\tAGE\tVALID")
	}
	for _, e := range entries {
		age := "-"
		if e.Stamped {
			age = formatAge(e.Age)
		}
		valid := "no"
		if e.Valid {
			valid = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, progress.FormatBytes(e.Size), age, valid)
	}
	_ = w.Flush()
	return buf.String(), nil
}

// FormatStorage formats storage pools as a table.
func (f *TableFormatter) FormatStorage(pools []pve.Storage) (string, error) {
	if len(pools) == 0 {
		return "No storage found\n", nil
	}

	var buf bytes.Buffer
	w := newTabWriter(&buf)
	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tTYPE\tSTATUS\tTOTAL\tUSED\tAVAILABLE\tUSE%")
	}
	for _, s := range pools {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.1f%%\n",
			s.Name, s.Type, s.Status,
			progress.FormatBytes(s.Total*1024),
			progress.FormatBytes(s.Used*1024),
			progress.FormatBytes(s.Available*1024),
			s.UsedPercent)
	}
	_ = w.Flush()
	return buf.String(), nil
}

// FormatChecks formats doctor results as a table followed by fix hints for
// failed checks.
func (f *TableFormatter) FormatChecks(results []preflight.CheckResult) (string, error) {
	var buf bytes.Buffer
	w := newTabWriter(&buf)
	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "CHECK\tSTATUS\tMESSAGE")
	}
	for _, r := range results {
		st := "ok"
		if !r.OK {
			st = "FAIL"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, st, firstLine(r.Message))
	}
	_ = w.Flush()

	for _, r := range results {
		if r.OK || r.HowToFix == "" {
			continue
		}
		fmt.Fprintf(&buf, "\n%s:\n", r.Name)
		for _, line := range strings.Split(r.HowToFix, "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}
	return buf.String(), nil
}

// FormatInstall formats an install summary as a two column table.
func (f *TableFormatter) FormatInstall(r *app.Result) (string, error) {
	password := "supplied"
	if r.PasswordGenerated {
		password = "generated (stored in compose file)"
	}
	tunnel := "no"
	if r.Tunnel {
		tunnel = "yes"
	}
	return keyValues([][2]string{
		{"URL", r.URL},
		{"Install dir", r.InstallDir},
		{"Compose file", r.ComposeFile},
		{"Services", strings.Join(r.Services, ", ")},
		{"DB password", password},
		{"Cloudflare tunnel", tunnel},
	}), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	// Weeks up to ~2 months
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}

	return fmt.Sprintf("%dd", days)
}
