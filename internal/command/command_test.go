package command

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestSanitize_PlainStrings(t *testing.T) {
	got := Sanitize([]any{"echo", "foo"})
	want := []string{"echo", "foo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %v, want %v", got, want)
	}
}

func TestSanitize_Element(t *testing.T) {
	// A generated temp path sanitizes to its stable basename.
	el := Element{
		Raw:      "/tmp/build-8f3a91/out.txt",
		Sanitize: func(string) string { return "out.txt" },
	}
	got := Sanitize([]any{"cat", el})
	want := []string{"cat", "out.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %v, want %v", got, want)
	}
}

func TestSanitize_ElementWithoutSanitizer(t *testing.T) {
	got := Sanitize([]any{Element{Raw: "ls"}})
	if got[0] != "ls" {
		t.Errorf("Sanitize() = %q, want %q", got[0], "ls")
	}
}

func TestSanitize_NonString(t *testing.T) {
	got := Sanitize([]any{"sleep", 5})
	want := []string{"sleep", "5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %v, want %v", got, want)
	}
}

func TestSanitize_Deterministic(t *testing.T) {
	el := Element{
		Raw:      "/tmp/work-12345",
		Sanitize: func(raw string) string { return filepath.Base(raw)[:4] },
	}
	first := Sanitize([]any{el})
	second := Sanitize([]any{el})
	if !reflect.DeepEqual(first, second) {
		t.Errorf("sanitize not deterministic: %v then %v", first, second)
	}
}

func TestRaw_PreservesOSValue(t *testing.T) {
	el := Element{
		Raw:      "/tmp/build-8f3a91/out.txt",
		Sanitize: func(string) string { return "out.txt" },
	}
	got := Raw([]any{"cat", el, 7})
	want := []string{"cat", "/tmp/build-8f3a91/out.txt", "7"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Raw() = %v, want %v", got, want)
	}
}

func TestElement_StringIsRaw(t *testing.T) {
	el := Element{Raw: "/tmp/x", Sanitize: func(string) string { return "x" }}
	if el.String() != "/tmp/x" {
		t.Errorf("String() = %q, want raw value", el.String())
	}
}
