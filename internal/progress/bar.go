// Package progress renders transfer progress reported as byte counts.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Func receives the bytes transferred so far and the expected total. Total is
// -1 when the size is unknown.
type Func func(written, total int64)

// Bar draws a single-line progress bar. On a terminal it redraws in place;
// otherwise it prints a line every 10 percent.
type Bar struct {
	mu       sync.Mutex
	w        io.Writer
	label    string
	width    int
	inPlace  bool
	interval time.Duration
	now      func() time.Time

	last     time.Time
	lastStep int
	drawn    bool
	finished bool
}

// NewBar creates a bar writing to w. inPlace selects carriage-return redraws.
func NewBar(w io.Writer, label string, inPlace bool) *Bar {
	return &Bar{
		w:        w,
		label:    label,
		width:    30,
		inPlace:  inPlace,
		interval: 100 * time.Millisecond,
		now:      time.Now,
		lastStep: -1,
	}
}

// Update reports progress. It satisfies Func.
func (b *Bar) Update(written, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished {
		return
	}

	percent := -1
	if total > 0 {
		percent = int(written * 100 / total)
		if percent > 100 {
			percent = 100
		}
	}

	if b.inPlace {
		now := b.now()
		if percent != 100 && now.Sub(b.last) < b.interval {
			return
		}
		b.last = now
		b.drawn = true
		fmt.Fprintf(b.w, "\r%s", b.render(written, total, percent))
		return
	}

	if percent < 0 || percent/10 == b.lastStep {
		return
	}
	b.lastStep = percent / 10
	fmt.Fprintln(b.w, b.render(written, total, percent))
}

// Done finishes the line. A bar that never drew prints nothing.
func (b *Bar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	if b.inPlace && b.drawn {
		fmt.Fprintln(b.w)
	}
}

func (b *Bar) render(written, total int64, percent int) string {
	if percent < 0 {
		return fmt.Sprintf("%s %s", b.label, FormatBytes(written))
	}
	filled := percent * b.width / 100
	return fmt.Sprintf("%s [%s%s] %3d%% %s/%s",
		b.label,
		strings.Repeat("#", filled),
		strings.Repeat(".", b.width-filled),
		percent,
		FormatBytes(written),
		FormatBytes(total),
	)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Writer counts bytes written through it and reports them to fn.
type Writer struct {
	Total   int64
	Fn      Func
	written int64
}

func (w *Writer) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.Fn != nil {
		w.Fn(w.written, w.Total)
	}
	return len(p), nil
}

// Written returns the bytes counted so far.
func (w *Writer) Written() int64 { return w.written }
