package manifest

import (
	"encoding/json"
	"fmt"
)

// envelope is the persisted wrapper around each entry. The type discriminant
// selects the body decoder; unknown discriminants are a format error.
type envelope struct {
	Type EntryType       `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Serialize renders the manifest as the tagged-envelope JSON array, indented
// for maintainer eyes, with a trailing newline.
func (m *Manifest) Serialize() ([]byte, error) {
	envelopes := make([]envelope, len(m.entries))
	for i, entry := range m.entries {
		body, err := entry.body()
		if err != nil {
			return nil, fmt.Errorf("serialize manifest entry %d: %w", i, err)
		}
		envelopes[i] = envelope{Type: entry.Type(), Body: body}
	}
	data, err := json.MarshalIndent(envelopes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Deserialize parses a serialized manifest, dispatching each envelope on its
// type discriminant. The invoked flag of every decoded entry starts false;
// it is never persisted, so a manifest replays from a full pool no matter
// how often it was replayed before.
func Deserialize(data []byte) (*Manifest, error) {
	var envelopes []envelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, &FormatError{Message: "manifest is not a tagged-envelope JSON array", Err: err}
	}

	m := New()
	for i, env := range envelopes {
		var (
			entry Entry
			err   error
		)
		switch env.Type {
		case TypeRun:
			entry, err = runEntryFromBody(env.Body)
		case TypeCanRun:
			entry, err = canRunEntryFromBody(env.Body)
		default:
			err = &FormatError{
				Field:   "type",
				Message: fmt.Sprintf("unknown entry type %q", env.Type),
			}
		}
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
		m.Add(entry)
	}
	return m, nil
}
