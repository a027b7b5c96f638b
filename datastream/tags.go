package datastream

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Tags is a nested tag structure. Values are scalars, arrays, or nested
// maps (map[string]any or Tags). The same shape serves both stream identity
// (query tags) and stream description.
type Tags map[string]any

// Clone returns a deep copy of the tags. Nested maps and slices are copied;
// scalar leaves and opaque values are carried over as-is.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Tags:
		return val.Clone()
	case map[string]any:
		return Tags(val).Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Merge deep-merges overlay into base and returns the result as a new map.
// Nested maps merge recursively; scalar and array leaves from the overlay
// replace the base value. Neither input is modified and the result shares no
// structure with either.
func Merge(base, overlay Tags) Tags {
	out := base.Clone()
	if out == nil {
		out = Tags{}
	}
	for k, v := range overlay {
		ov, isMap := asMap(v)
		bv, baseIsMap := asMap(out[k])
		if isMap && baseIsMap {
			out[k] = Merge(bv, ov)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

// Subsumes reports whether t contains query: every key path in query exists
// in t with an equal value, nested maps matched recursively. An empty query
// subsumes everything.
func (t Tags) Subsumes(query Tags) bool {
	for k, qv := range query {
		tv, ok := t[k]
		if !ok {
			return false
		}
		qm, qIsMap := asMap(qv)
		tm, tIsMap := asMap(tv)
		if qIsMap && tIsMap {
			if !tm.Subsumes(qm) {
				return false
			}
			continue
		}
		if qIsMap != tIsMap {
			return false
		}
		if !leafEqual(tv, qv) {
			return false
		}
	}
	return true
}

// CanonicalKey returns a deterministic serialization of the tags, suitable as
// a map key for stream identity. Numeric leaves compare by value, so tags
// that round-trip through JSON produce the same key.
func CanonicalKey(t Tags) (string, error) {
	var b strings.Builder
	if err := writeCanonical(&b, t); err != nil {
		return "", fmt.Errorf("canonical tag key: %w", err)
	}
	return b.String(), nil
}

func writeCanonical(b *strings.Builder, t Tags) error {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kj, _ := json.Marshal(k)
		b.Write(kj)
		b.WriteByte(':')
		if err := writeCanonicalValue(b, t[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

func writeCanonicalValue(b *strings.Builder, v any) error {
	if m, ok := asMap(v); ok {
		return writeCanonical(b, m)
	}
	switch val := v.(type) {
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonicalValue(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	default:
		if f, ok := toFloat(v); ok {
			// %g keeps 2 and 2.0 identical across int/float leaves
			fmt.Fprintf(b, "%g", f)
			return nil
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("tag value %T: %w", v, err)
		}
		b.Write(enc)
		return nil
	}
}

// asMap normalizes the two map representations that appear in tag values.
func asMap(v any) (Tags, bool) {
	switch m := v.(type) {
	case Tags:
		return m, true
	case map[string]any:
		return Tags(m), true
	default:
		return nil, false
	}
}

// leafEqual compares two leaf values, treating numeric types by value so that
// values surviving a JSON round-trip still match their in-process originals.
func leafEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !leafEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
