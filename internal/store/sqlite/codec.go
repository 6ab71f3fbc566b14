package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/college-forum/internal/store"
)

// timeKey tags a JSON object that encodes a time.Time. JSON has no time
// type, and a plain string would decode back as a string.
const timeKey = "$time"

// encodeFields serializes fields, resolving ServerTimestamp placeholders
// to ts.
func encodeFields(fields store.Fields, ts time.Time) (string, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = encodeValue(v, ts)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding fields: %w", err)
	}
	return string(b), nil
}

func encodeValue(v any, ts time.Time) any {
	switch x := v.(type) {
	case time.Time:
		return map[string]string{timeKey: x.UTC().Format(time.RFC3339Nano)}
	case []any:
		items := make([]any, len(x))
		for i, item := range x {
			items[i] = encodeValue(item, ts)
		}
		return items
	}
	if store.IsServerTimestamp(v) {
		return map[string]string{timeKey: ts.Format(time.RFC3339Nano)}
	}
	return v
}

func decodeFields(raw string) (store.Fields, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}
	fields := make(store.Fields, len(m))
	for k, v := range m {
		fields[k] = decodeValue(v)
	}
	return fields, nil
}

func decodeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if s, ok := x[timeKey].(string); ok && len(x) == 1 {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
		return x
	case []any:
		for i, item := range x {
			x[i] = decodeValue(item)
		}
		return x
	}
	return v
}
