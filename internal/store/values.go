package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TimeLayout is the fixed-width UTC layout timestamps are stored in, so
// lexical and chronological order agree in every backend.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts TimeLayout and any RFC 3339 timestamp.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ===============================
// FIELD TRANSFORMS
// ===============================

// Transform is a write-time field value computed by the backend.
type Transform interface {
	apply(current interface{}, now time.Time) (interface{}, error)
}

type incrementTransform struct {
	delta float64
}

func (t incrementTransform) apply(current interface{}, _ time.Time) (interface{}, error) {
	switch v := current.(type) {
	case nil:
		return t.delta, nil
	case float64:
		return v + t.delta, nil
	default:
		// non-numeric fields are replaced, as the managed stores do
		return t.delta, nil
	}
}

type serverTimestampTransform struct{}

func (serverTimestampTransform) apply(_ interface{}, now time.Time) (interface{}, error) {
	return FormatTime(now), nil
}

// Increment atomically adds delta to a numeric field; a missing field counts as zero.
func Increment(delta int64) Transform {
	return incrementTransform{delta: float64(delta)}
}

// ServerTimestamp sets a field to the commit time.
func ServerTimestamp() Transform {
	return serverTimestampTransform{}
}

// ===============================
// VALUE NORMALIZATION
// ===============================

// normalizeValue converts Go values into the JSON value domain the store keeps:
// nil, bool, float64, string, []interface{} and map[string]interface{}.
// Times become TimeLayout strings.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, bool, float64, string:
		return x
	case time.Time:
		return FormatTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return FormatTime(*x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, el := range x {
			out[i] = normalizeValue(el)
		}
		return out
	case []string:
		out := make([]interface{}, len(x))
		for i, el := range x {
			out[i] = el
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, el := range x {
			out[k] = normalizeValue(el)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return normalizeValue(rv.Elem().Interface())
	}

	// structs, typed maps and slices round-trip through JSON
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}

// Normalize converts v into the stored value domain.
func Normalize(v interface{}) interface{} {
	return normalizeValue(v)
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		return cloneMap(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, el := range x {
			out[i] = cloneValue(el)
		}
		return out
	default:
		return x
	}
}

// ===============================
// FIELD PATHS
// ===============================

func splitPath(path string) ([]string, error) {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: field path %q", ErrInvalidArgument, path)
		}
	}
	return parts, nil
}

func lookupPath(data map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(data map[string]interface{}, parts []string, value interface{}) {
	cur := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// PrepareSet builds the stored body of a full overwrite.
func PrepareSet(data map[string]interface{}, now time.Time) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if strings.Contains(k, ".") {
			return nil, fmt.Errorf("%w: set does not accept dotted key %q", ErrInvalidArgument, k)
		}
		if t, ok := v.(Transform); ok {
			resolved, err := t.apply(nil, now)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
			continue
		}
		out[k] = normalizeValue(v)
	}
	return out, nil
}

// ApplyUpdate merges updates into a copy of current and returns it.
func ApplyUpdate(current, updates map[string]interface{}, now time.Time) (map[string]interface{}, error) {
	out := cloneMap(current)
	if out == nil {
		out = make(map[string]interface{})
	}
	for k, v := range updates {
		parts, err := splitPath(k)
		if err != nil {
			return nil, err
		}
		if t, ok := v.(Transform); ok {
			existing, _ := lookupPath(out, k)
			resolved, err := t.apply(existing, now)
			if err != nil {
				return nil, err
			}
			setPath(out, parts, resolved)
			continue
		}
		setPath(out, parts, normalizeValue(v))
	}
	return out, nil
}
