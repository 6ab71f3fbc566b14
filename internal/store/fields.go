package store

import (
	"maps"
	"time"
)

// Fields is the field map of a document.
//
// Values are limited to what the store can persist: string, bool, numbers,
// time.Time, []string (and []any of those), and the ServerTimestamp
// placeholder on writes.
type Fields map[string]any

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	return maps.Clone(f)
}

// Has reports whether the field is present.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// String returns the field as a string, or "" if absent or of another type.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Bool returns the field as a bool, or false.
func (f Fields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

// Time returns the field as a time, or the zero time.
func (f Fields) Time(key string) time.Time {
	t, _ := f[key].(time.Time)
	return t
}

// Strings returns a string-array field. Decoded documents hold []any, so
// both shapes are accepted; non-string members are skipped.
func (f Fields) Strings(key string) []string {
	switch v := f[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
