package manifest

import "slices"

// Manifest is the ordered record of every invocation made against a
// recording. While recording, entries are appended (and removed only to
// undo a failed registration); during replay the only mutation is consuming
// entries via the FindPending lookups.
type Manifest struct {
	entries []Entry
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{}
}

// Add appends an entry. Never rejects.
func (m *Manifest) Add(e Entry) {
	m.entries = append(m.entries, e)
}

// Remove deletes an entry by identity. Recording-side bookkeeping for
// undoing a registration that failed mid-setup; replay never removes
// entries. Removing an entry that is not present is a no-op.
func (m *Manifest) Remove(e Entry) {
	for i, entry := range m.entries {
		if entry == e {
			m.entries = slices.Delete(m.entries, i, i+1)
			return
		}
	}
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Entries returns the entries in recording order. The slice is a copy; the
// entries are not.
func (m *Manifest) Entries() []Entry {
	return slices.Clone(m.entries)
}

// RunCriteria selects a RunEntry. Nil fields are wildcards; provided fields
// must equal the entry's corresponding field exactly (element-wise and
// ordered for Command). Working directory and environment are deliberately
// not criteria.
type RunCriteria struct {
	Command        []string
	Mode           *string
	StdoutEncoding *string
	StderrEncoding *string
}

// FindPendingRunEntry returns the first not-yet-invoked RunEntry matching
// the criteria, in manifest order, and consumes it. Returns nil when no
// pending entry matches.
//
// First match wins. Two structurally identical commands issued out of their
// recorded relative order will cross-match; that is the accepted cost of
// keying on sanitized commands alone.
func (m *Manifest) FindPendingRunEntry(c RunCriteria) *RunEntry {
	for _, entry := range m.entries {
		e, ok := entry.(*RunEntry)
		if !ok || e.Invoked() {
			continue
		}
		if c.Command != nil && !slices.Equal(c.Command, e.Command) {
			continue
		}
		if c.Mode != nil && *c.Mode != e.Mode {
			continue
		}
		if c.StdoutEncoding != nil && *c.StdoutEncoding != e.StdoutEncoding {
			continue
		}
		if c.StderrEncoding != nil && *c.StderrEncoding != e.StderrEncoding {
			continue
		}
		e.MarkInvoked()
		return e
	}
	return nil
}

// FindPendingCanRunEntry returns the first not-yet-invoked CanRunEntry for
// the executable, in manifest order, and consumes it.
func (m *Manifest) FindPendingCanRunEntry(executable string) *CanRunEntry {
	for _, entry := range m.entries {
		e, ok := entry.(*CanRunEntry)
		if !ok || e.Invoked() {
			continue
		}
		if e.Executable != executable {
			continue
		}
		e.MarkInvoked()
		return e
	}
	return nil
}

// RunEntryForPid returns the first RunEntry recorded for pid, or nil.
// Recording-side bookkeeping only: pids are recycled by the OS, so this is
// never used for replay matching.
func (m *Manifest) RunEntryForPid(pid int) *RunEntry {
	for _, entry := range m.entries {
		if e, ok := entry.(*RunEntry); ok && e.Pid == pid {
			return e
		}
	}
	return nil
}
