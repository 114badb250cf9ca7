package manifest

import "testing"

func strPtr(s string) *string {
	return &s
}

func TestFindPendingRunEntry_FirstMatchWins(t *testing.T) {
	m := New()
	first := &RunEntry{Pid: 1, Basename: "000.echo.1", Command: []string{"echo", "foo"}}
	second := &RunEntry{Pid: 2, Basename: "001.echo.2", Command: []string{"echo", "foo"}}
	m.Add(first)
	m.Add(second)

	got := m.FindPendingRunEntry(RunCriteria{Command: []string{"echo", "foo"}})
	if got != first {
		t.Fatalf("first lookup returned entry pid=%d, want pid=1", got.Pid)
	}
	got = m.FindPendingRunEntry(RunCriteria{Command: []string{"echo", "foo"}})
	if got != second {
		t.Fatalf("second lookup returned entry pid=%d, want pid=2", got.Pid)
	}
}

func TestFindPendingRunEntry_AtMostOnce(t *testing.T) {
	m := New()
	m.Add(&RunEntry{Pid: 1, Basename: "000.echo.1", Command: []string{"echo", "foo"}})

	if m.FindPendingRunEntry(RunCriteria{Command: []string{"echo", "foo"}}) == nil {
		t.Fatal("first lookup found nothing")
	}
	// Consumed: no criteria, however loose, may return it again.
	if m.FindPendingRunEntry(RunCriteria{Command: []string{"echo", "foo"}}) != nil {
		t.Error("consumed entry matched again by command")
	}
	if m.FindPendingRunEntry(RunCriteria{}) != nil {
		t.Error("consumed entry matched again by wildcard")
	}
}

func TestFindPendingRunEntry_AbsentCriteriaAreWildcards(t *testing.T) {
	m := New()
	m.Add(&RunEntry{Pid: 1, Basename: "000.git.1", Command: []string{"git", "status"}, Mode: "normal"})

	got := m.FindPendingRunEntry(RunCriteria{})
	if got == nil || got.Pid != 1 {
		t.Fatal("wildcard criteria should match any pending run entry")
	}
}

func TestFindPendingRunEntry_ProvidedCriteriaMustMatch(t *testing.T) {
	m := New()
	m.Add(&RunEntry{Pid: 1, Basename: "000.git.1", Command: []string{"git", "status"}, Mode: "detached", StdoutEncoding: "utf-8"})

	if m.FindPendingRunEntry(RunCriteria{Command: []string{"git", "log"}}) != nil {
		t.Error("different command matched")
	}
	if m.FindPendingRunEntry(RunCriteria{Command: []string{"git", "status", "-s"}}) != nil {
		t.Error("longer command matched")
	}
	if m.FindPendingRunEntry(RunCriteria{Mode: strPtr("normal")}) != nil {
		t.Error("different mode matched")
	}
	if m.FindPendingRunEntry(RunCriteria{StdoutEncoding: strPtr("")}) != nil {
		t.Error("raw-stream criterion matched an encoded entry")
	}
	got := m.FindPendingRunEntry(RunCriteria{
		Command:        []string{"git", "status"},
		Mode:           strPtr("detached"),
		StdoutEncoding: strPtr("utf-8"),
	})
	if got == nil {
		t.Fatal("fully specified criteria should match")
	}
}

func TestFindPendingRunEntry_IgnoresWorkingDirAndEnvironment(t *testing.T) {
	m := New()
	first := &RunEntry{
		Pid:              1,
		Basename:         "000.make.1",
		Command:          []string{"make"},
		WorkingDirectory: "/src/a",
		Environment:      map[string]string{"CC": "gcc"},
	}
	second := &RunEntry{
		Pid:              2,
		Basename:         "001.make.2",
		Command:          []string{"make"},
		WorkingDirectory: "/src/b",
		Environment:      map[string]string{"CC": "clang"},
	}
	m.Add(first)
	m.Add(second)

	// Identical except workingDirectory/environment: matched in recorded
	// relative order, no spurious mismatch.
	if got := m.FindPendingRunEntry(RunCriteria{Command: []string{"make"}}); got != first {
		t.Errorf("first lookup = pid %d, want 1", got.Pid)
	}
	if got := m.FindPendingRunEntry(RunCriteria{Command: []string{"make"}}); got != second {
		t.Errorf("second lookup = pid %d, want 2", got.Pid)
	}
}

func TestFindPendingRunEntry_SkipsCanRunEntries(t *testing.T) {
	m := New()
	m.Add(&CanRunEntry{Executable: "echo", Result: true})
	if m.FindPendingRunEntry(RunCriteria{}) != nil {
		t.Error("run lookup returned a can_run entry")
	}
}

func TestFindPendingCanRunEntry(t *testing.T) {
	m := New()
	m.Add(&CanRunEntry{Executable: "toolA", Result: true})
	m.Add(&CanRunEntry{Executable: "toolB", Result: false})

	got := m.FindPendingCanRunEntry("toolB")
	if got == nil || got.Result {
		t.Fatal("lookup should return the toolB entry with result false")
	}
	if m.FindPendingCanRunEntry("toolB") != nil {
		t.Error("consumed can_run entry matched again")
	}
	if m.FindPendingCanRunEntry("toolC") != nil {
		t.Error("unknown executable matched")
	}
	if m.FindPendingCanRunEntry("toolA") == nil {
		t.Error("toolA should still be pending")
	}
}

func TestRunEntryForPid(t *testing.T) {
	m := New()
	entry := &RunEntry{Pid: 42, Basename: "000.echo.42", Command: []string{"echo"}}
	m.Add(&CanRunEntry{Executable: "echo", Result: true})
	m.Add(entry)

	if got := m.RunEntryForPid(42); got != entry {
		t.Errorf("RunEntryForPid(42) = %v, want the run entry", got)
	}
	if m.RunEntryForPid(7) != nil {
		t.Error("RunEntryForPid(7) should be nil")
	}
}

func TestAdd_PreservesOrder(t *testing.T) {
	m := New()
	m.Add(&RunEntry{Pid: 1, Basename: "a", Command: []string{"a"}})
	m.Add(&CanRunEntry{Executable: "b", Result: true})
	m.Add(&RunEntry{Pid: 3, Basename: "c", Command: []string{"c"}})

	entries := m.Entries()
	if len(entries) != 3 {
		t.Fatalf("Len = %d, want 3", len(entries))
	}
	if entries[0].Type() != TypeRun || entries[1].Type() != TypeCanRun || entries[2].Type() != TypeRun {
		t.Error("entries out of insertion order")
	}
}

func TestRemove(t *testing.T) {
	m := New()
	first := &RunEntry{Pid: 1, Basename: "a", Command: []string{"a"}}
	second := &RunEntry{Pid: 2, Basename: "b", Command: []string{"b"}}
	m.Add(first)
	m.Add(second)

	m.Remove(first)
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	if m.FindPendingRunEntry(RunCriteria{}) != second {
		t.Error("surviving entry should be the one not removed")
	}

	// Removing an entry that is not present leaves the manifest alone.
	m.Remove(first)
	if m.Len() != 1 {
		t.Errorf("Len = %d after removing absent entry, want 1", m.Len())
	}
}
