package manifest

import "fmt"

// FormatError reports malformed persisted manifest data: a document that is
// not the tagged-envelope JSON array, an unrecognized entry type, or a
// required field missing from an entry body.
type FormatError struct {
	// Field names the first missing or offending field, when known.
	Field string

	// Message describes the problem.
	Message string

	// Err is the underlying decode error, if any.
	Err error
}

func (e *FormatError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("manifest format error: %s: %s: %v", e.Field, e.Message, e.Err)
	case e.Field != "":
		return fmt.Sprintf("manifest format error: %s: %s", e.Field, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("manifest format error: %s: %v", e.Message, e.Err)
	default:
		return fmt.Sprintf("manifest format error: %s", e.Message)
	}
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// missingField builds the FormatError for a required field absent from an
// entry body.
func missingField(entryType EntryType, field string) *FormatError {
	return &FormatError{
		Field:   field,
		Message: fmt.Sprintf("required field missing from %q entry", entryType),
	}
}
