package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/metasync/internal/id"
)

// Document is one JSON object exchanged with the registry, after the
// envelope has been stripped.
type Document map[string]any

// Has reports whether key is present with a non-null value.
func (d Document) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}

// String returns the string value at key or a SchemaError.
func (d Document) String(key string) (string, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return "", &SchemaError{Field: key}
	}
	s, ok := v.(string)
	if !ok {
		return "", &SchemaError{Field: key}
	}
	return s, nil
}

// Array returns the array value at key or a SchemaError.
func (d Document) Array(key string) ([]any, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, &SchemaError{Field: key}
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, &SchemaError{Field: key}
	}
	return arr, nil
}

// Object returns the nested object at key, or nil when absent.
func (d Document) Object(key string) Document {
	v, ok := d[key]
	if !ok || v == nil {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return Document(obj)
}

// SelfID extracts the numeric identifier from the document's
// self-referencing url field.
func (d Document) SelfID() (id.ID, error) {
	ref, err := d.String("url")
	if err != nil {
		return 0, err
	}
	return TrailingID(ref)
}

// TrailingID parses the numeric identifier terminating a registry URL.
// Identifiers above 28 bits would collide with the local status flags, so
// they are rejected as malformed rather than stored.
func TrailingID(ref string) (id.ID, error) {
	trimmed := strings.TrimRight(ref, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return 0, fmt.Errorf("registry: no trailing id in %q", ref)
	}
	n, err := strconv.ParseUint(trimmed[idx+1:], 10, 28)
	if err != nil {
		return 0, fmt.Errorf("registry: no trailing id in %q: %w", ref, err)
	}
	return id.ID(n), nil
}
