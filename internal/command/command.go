// Package command models the two faces of a process command line: the raw
// values handed to the operating system and the sanitized values used as a
// stable lookup key when matching recorded invocations.
package command

import "fmt"

// Sanitizer derives a stable matching value from a raw command element.
// It must be deterministic: the same raw value sanitizes identically on
// every call.
type Sanitizer func(raw string) string

// Element pairs a raw OS-facing command value with an optional Sanitizer
// producing the value used for manifest matching. Elements are local to a
// single invocation call; nothing retains them.
type Element struct {
	Raw      string
	Sanitize Sanitizer
}

// Sanitized returns the matching form of the element. With no Sanitizer
// the raw value is already stable and is used as-is.
func (e Element) Sanitized() string {
	if e.Sanitize == nil {
		return e.Raw
	}
	return e.Sanitize(e.Raw)
}

// String returns the raw value, so an Element formatted with %v (or passed
// through Raw below) spawns the real process unchanged.
func (e Element) String() string {
	return e.Raw
}

// Sanitize maps each element of a command line to its matching form:
// the sanitizer-derived value for an Element, the plain string form for
// anything else.
func Sanitize(argv []any) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		switch v := arg.(type) {
		case Element:
			out[i] = v.Sanitized()
		case *Element:
			out[i] = v.Sanitized()
		case string:
			out[i] = v
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

// Raw maps each element of a command line to the value that must reach the
// real OS spawn call.
func Raw(argv []any) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		switch v := arg.(type) {
		case Element:
			out[i] = v.Raw
		case *Element:
			out[i] = v.Raw
		case string:
			out[i] = v
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
