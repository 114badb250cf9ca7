package manifest

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// sampleManifest covers both variants, the optional fields, and the
// persisted drain flags.
func sampleManifest() *Manifest {
	m := New()
	exit := 0
	m.Add(&RunEntry{
		Pid:                      100,
		Basename:                 "000.echo.100",
		Command:                  []string{"echo", "foo"},
		IncludeParentEnvironment: true,
		StdoutEncoding:           "utf-8",
		StderrEncoding:           "utf-8",
		ExitCode:                 &exit,
	})
	daemon := &RunEntry{
		Pid:         101,
		Basename:    "001.sleep.101",
		Command:     []string{"sleep", "5"},
		Environment: map[string]string{"CI": "true"},
		RunInShell:  true,
		Mode:        "normal",
	}
	daemon.MarkDaemon()
	daemon.MarkNotResponding()
	m.Add(daemon)
	m.Add(&CanRunEntry{Executable: "git", Result: true})
	return m
}

func TestSerialize_Golden(t *testing.T) {
	data, err := sampleManifest().Serialize()
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "serialized", data)
}

func TestSerialize_RoundTrip(t *testing.T) {
	m := sampleManifest()
	data, err := m.Serialize()
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize() failed: %v", err)
	}
	if !reflect.DeepEqual(got.Entries(), m.Entries()) {
		t.Errorf("round trip changed entries:\ngot  %#v\nwant %#v", got.Entries(), m.Entries())
	}
}

func TestSerialize_EmptyManifest(t *testing.T) {
	data, err := New().Serialize()
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("Serialize() = %q, want empty array", data)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize() failed: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("Len = %d, want 0", got.Len())
	}
}

func TestDeserialize_UnknownType(t *testing.T) {
	_, err := Deserialize([]byte(`[{"type":"detach","body":{}}]`))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want FormatError", err)
	}
	if !strings.Contains(fe.Error(), "detach") {
		t.Errorf("error should name the unknown discriminant: %v", fe)
	}
}

func TestDeserialize_NotAnArray(t *testing.T) {
	var fe *FormatError
	if _, err := Deserialize([]byte(`{"type":"run"}`)); !errors.As(err, &fe) {
		t.Errorf("object document should be a FormatError, got %v", err)
	}
	if _, err := Deserialize([]byte(`not json`)); !errors.As(err, &fe) {
		t.Errorf("junk document should be a FormatError, got %v", err)
	}
}

func TestDeserialize_ObsoleteFlatSchema(t *testing.T) {
	// The historical flat per-entry record has no envelope; it is rejected
	// like any other malformed document, not parsed compatibly.
	flat := `[{"pid":1,"basename":"000.echo.1","command":["echo"]}]`
	_, err := Deserialize([]byte(flat))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("flat schema should be a FormatError, got %v", err)
	}
}

func TestDeserialize_MissingRequiredField(t *testing.T) {
	_, err := Deserialize([]byte(`[{"type":"run","body":{"pid":1,"command":["echo"]}}]`))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want FormatError", err)
	}
	if fe.Field != "basename" {
		t.Errorf("Field = %q, want basename", fe.Field)
	}
}
