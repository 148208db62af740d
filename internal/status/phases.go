// Package status tracks how far a VM provisioning run has progressed.
//
// Phases only move forward, one step at a time. A failure ends the run in one
// of two terminal phases depending on whether the VM shell was created, which
// is the only fact rollback needs.
package status

import (
	"fmt"
	"time"
)

// Phase is a provisioning phase.
type Phase string

const (
	PhaseNotStarted          Phase = "NotStarted"
	PhaseShellCreated        Phase = "ShellCreated"
	PhaseDiskImported        Phase = "DiskImported"
	PhaseDiskAttached        Phase = "DiskAttached"
	PhaseDiskResized         Phase = "DiskResized"
	PhaseCloudInitConfigured Phase = "CloudInitConfigured"
	PhaseStarted             Phase = "Started"
	PhaseDone                Phase = "Done"

	PhaseFailedBeforeCreation Phase = "FailedBeforeCreation"
	PhaseFailedAfterCreation  Phase = "FailedAfterCreation"
)

var order = []Phase{
	PhaseNotStarted,
	PhaseShellCreated,
	PhaseDiskImported,
	PhaseDiskAttached,
	PhaseDiskResized,
	PhaseCloudInitConfigured,
	PhaseStarted,
	PhaseDone,
}

func index(p Phase) int {
	for i, o := range order {
		if o == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p, or "" if p has no successor.
func Next(p Phase) Phase {
	i := index(p)
	if i < 0 || i == len(order)-1 {
		return ""
	}
	return order[i+1]
}

// IsTerminal reports whether no further transition is possible from p.
func IsTerminal(p Phase) bool {
	return p == PhaseDone || IsFailed(p)
}

// IsFailed reports whether p is a failure phase.
func IsFailed(p Phase) bool {
	return p == PhaseFailedBeforeCreation || p == PhaseFailedAfterCreation
}

// Transition is one recorded phase change.
type Transition struct {
	From    Phase
	To      Phase
	At      time.Time
	Message string
}

// Tracker holds the phase of a single run.
type Tracker struct {
	phase   Phase
	created bool
	history []Transition
	now     func() time.Time
}

// NewTracker returns a tracker in PhaseNotStarted.
func NewTracker() *Tracker {
	return &Tracker{phase: PhaseNotStarted, now: time.Now}
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase { return t.phase }

// CreationBegun reports whether the VM shell exists on the hypervisor. It
// stays true once set, including after failure.
func (t *Tracker) CreationBegun() bool { return t.created }

// History returns the recorded transitions in order.
func (t *Tracker) History() []Transition {
	out := make([]Transition, len(t.history))
	copy(out, t.history)
	return out
}

// Advance moves to the next phase. to must be the immediate successor of the
// current phase; skipping or repeating a phase is an error and leaves the
// tracker unchanged.
func (t *Tracker) Advance(to Phase, message string) error {
	if IsTerminal(t.phase) {
		return fmt.Errorf("cannot transition to %s from terminal phase %s", to, t.phase)
	}
	if Next(t.phase) != to {
		return fmt.Errorf("cannot transition to %s from phase %s", to, t.phase)
	}
	t.record(to, message)
	if to == PhaseShellCreated {
		t.created = true
	}
	return nil
}

// Fail ends the run and returns the failure phase reached. Failing an already
// terminal run is a no-op that returns the existing phase.
func (t *Tracker) Fail(message string) Phase {
	if IsTerminal(t.phase) {
		return t.phase
	}
	to := PhaseFailedBeforeCreation
	if t.created {
		to = PhaseFailedAfterCreation
	}
	t.record(to, message)
	return to
}

func (t *Tracker) record(to Phase, message string) {
	t.history = append(t.history, Transition{
		From:    t.phase,
		To:      to,
		At:      t.now(),
		Message: message,
	})
	t.phase = to
}
