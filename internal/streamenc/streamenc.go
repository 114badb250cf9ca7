// Package streamenc resolves the encoding names recorded for process stdio
// streams. A recorded entry names its stdout/stderr encoding by IANA charset
// name; an absent name means the stream is raw bytes. The reserved name
// "system" denotes the platform default encoding.
package streamenc

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// SystemName is the reserved encoding name denoting the platform default.
const SystemName = "system"

// Lookup resolves an encoding name to its x/text encoding.
// Name matching is case-insensitive. Returns an error for names the IANA
// registry does not know, or knows but has no decoder for.
func Lookup(name string) (encoding.Encoding, error) {
	if strings.EqualFold(name, SystemName) {
		return systemEncoding(), nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q has no decoder", name)
	}
	return enc, nil
}

// Decode converts data captured in the named encoding to UTF-8 bytes.
func Decode(name string, data []byte) ([]byte, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s stream: %w", name, err)
	}
	return out, nil
}

// systemEncoding returns the platform default encoding. POSIX systems are
// UTF-8 in practice; Windows code-page detection is out of scope.
func systemEncoding() encoding.Encoding {
	return unicode.UTF8
}
