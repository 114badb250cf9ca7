package manifest

import "encoding/json"

// EntryType is the discriminant of the tagged envelope wrapping each
// persisted entry.
type EntryType string

const (
	// TypeRun tags a RunEntry.
	TypeRun EntryType = "run"

	// TypeCanRun tags a CanRunEntry.
	TypeCanRun EntryType = "can_run"
)

// Entry is one persisted invocation record.
type Entry interface {
	// Type returns the envelope discriminant for this variant.
	Type() EntryType

	// Invoked reports whether a replay lookup has consumed this entry.
	Invoked() bool

	// MarkInvoked consumes the entry. Forward-only: there is no way to
	// return a consumed entry to the pool.
	MarkInvoked()

	// body returns the persisted form of the entry.
	body() (json.RawMessage, error)
}

// RunEntry records a single process invocation.
//
// Pid is informational: the OS recycles pids, so it is never a uniqueness
// key. Basename is the stable identifier tying the entry to its
// <basename>.stdout and <basename>.stderr blob files.
type RunEntry struct {
	Pid                      int
	Basename                 string
	Command                  []string // sanitized; element 0 is the executable
	WorkingDirectory         string
	Environment              map[string]string
	IncludeParentEnvironment bool
	RunInShell               bool
	Mode                     string // persisted start-mode name; empty for run-to-completion entries
	StdoutEncoding           string // IANA name; empty means raw bytes
	StderrEncoding           string
	ExitCode                 *int // nil until the process has exited

	daemon        bool
	notResponding bool
	invoked       bool
}

// Type implements Entry.
func (e *RunEntry) Type() EntryType {
	return TypeRun
}

// Invoked implements Entry.
func (e *RunEntry) Invoked() bool {
	return e.invoked
}

// MarkInvoked implements Entry.
func (e *RunEntry) MarkInvoked() {
	e.invoked = true
}

// Daemon reports whether the process was still running when the recording
// drain gave up waiting for it.
func (e *RunEntry) Daemon() bool {
	return e.daemon
}

// MarkDaemon flags the entry as a daemon. Forward-only.
func (e *RunEntry) MarkDaemon() {
	e.daemon = true
}

// NotResponding reports whether the process ignored the termination signal
// sent during drain.
func (e *RunEntry) NotResponding() bool {
	return e.notResponding
}

// MarkNotResponding flags the entry as not responding. Forward-only.
func (e *RunEntry) MarkNotResponding() {
	e.notResponding = true
}

// SetExitCode backfills the exit code once the process has exited.
func (e *RunEntry) SetExitCode(code int) {
	e.ExitCode = &code
}

// runBody is the persisted shape of a RunEntry. Pointer fields distinguish
// absent from zero during validation.
type runBody struct {
	Pid                      *int              `json:"pid"`
	Basename                 *string           `json:"basename"`
	Command                  []string          `json:"command"`
	WorkingDirectory         string            `json:"workingDirectory,omitempty"`
	Environment              map[string]string `json:"environment,omitempty"`
	IncludeParentEnvironment *bool             `json:"includeParentEnvironment,omitempty"`
	RunInShell               *bool             `json:"runInShell,omitempty"`
	Mode                     string            `json:"mode,omitempty"`
	StdoutEncoding           string            `json:"stdoutEncoding,omitempty"`
	StderrEncoding           string            `json:"stderrEncoding,omitempty"`
	Daemon                   *bool             `json:"daemon,omitempty"`
	NotResponding            *bool             `json:"notResponding,omitempty"`
	ExitCode                 *int              `json:"exitCode,omitempty"`
}

func (e *RunEntry) body() (json.RawMessage, error) {
	b := runBody{
		Pid:              &e.Pid,
		Basename:         &e.Basename,
		Command:          e.Command,
		WorkingDirectory: e.WorkingDirectory,
		Environment:      e.Environment,
		Mode:             e.Mode,
		StdoutEncoding:   e.StdoutEncoding,
		StderrEncoding:   e.StderrEncoding,
		ExitCode:         e.ExitCode,
	}
	// Parent environment is included by default, so only the unusual case
	// is worth persisting explicitly; same for the true-only flags.
	if !e.IncludeParentEnvironment {
		f := false
		b.IncludeParentEnvironment = &f
	}
	if e.RunInShell {
		v := true
		b.RunInShell = &v
	}
	if e.daemon {
		v := true
		b.Daemon = &v
	}
	if e.notResponding {
		v := true
		b.NotResponding = &v
	}
	return json.Marshal(b)
}

// runEntryFromBody validates and decodes a RunEntry body, naming the first
// missing required field.
func runEntryFromBody(data json.RawMessage) (*RunEntry, error) {
	var b runBody
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &FormatError{Message: "malformed run entry body", Err: err}
	}
	if b.Pid == nil {
		return nil, missingField(TypeRun, "pid")
	}
	if b.Basename == nil {
		return nil, missingField(TypeRun, "basename")
	}
	if b.Command == nil {
		return nil, missingField(TypeRun, "command")
	}

	e := &RunEntry{
		Pid:                      *b.Pid,
		Basename:                 *b.Basename,
		Command:                  b.Command,
		WorkingDirectory:         b.WorkingDirectory,
		Environment:              b.Environment,
		IncludeParentEnvironment: true,
		Mode:                     b.Mode,
		StdoutEncoding:           b.StdoutEncoding,
		StderrEncoding:           b.StderrEncoding,
		ExitCode:                 b.ExitCode,
	}
	if b.IncludeParentEnvironment != nil {
		e.IncludeParentEnvironment = *b.IncludeParentEnvironment
	}
	if b.RunInShell != nil {
		e.RunInShell = *b.RunInShell
	}
	if b.Daemon != nil && *b.Daemon {
		e.daemon = true
	}
	if b.NotResponding != nil && *b.NotResponding {
		e.notResponding = true
	}
	return e, nil
}

// CanRunEntry records a single executable-resolution probe.
type CanRunEntry struct {
	Executable string
	Result     bool

	invoked bool
}

// Type implements Entry.
func (e *CanRunEntry) Type() EntryType {
	return TypeCanRun
}

// Invoked implements Entry.
func (e *CanRunEntry) Invoked() bool {
	return e.invoked
}

// MarkInvoked implements Entry.
func (e *CanRunEntry) MarkInvoked() {
	e.invoked = true
}

type canRunBody struct {
	Executable *string `json:"executable"`
	Result     *bool   `json:"result"`
}

func (e *CanRunEntry) body() (json.RawMessage, error) {
	return json.Marshal(canRunBody{Executable: &e.Executable, Result: &e.Result})
}

func canRunEntryFromBody(data json.RawMessage) (*CanRunEntry, error) {
	var b canRunBody
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &FormatError{Message: "malformed can_run entry body", Err: err}
	}
	if b.Executable == nil {
		return nil, missingField(TypeCanRun, "executable")
	}
	if b.Result == nil {
		return nil, missingField(TypeCanRun, "result")
	}
	return &CanRunEntry{Executable: *b.Executable, Result: *b.Result}, nil
}
