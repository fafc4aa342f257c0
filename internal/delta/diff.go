package delta

import (
	"reflect"
	"sort"
	"strings"
)

// Diff computes the ops that transform old into new. Both maps are the
// JSON-generic form of a document's naked payload (map[string]any with
// float64/string/bool/nil/[]any/map[string]any leaves).
//
// Nested objects are diffed field by field. Arrays are treated as atomic
// values: any element change replaces the whole array. Two replicas that
// append different elements to the same array therefore converge on the
// later delta's array, not on an element-wise merge.
func Diff(old, new map[string]any) []Op {
	var ops []Op
	diffMaps("", old, new, &ops)
	return ops
}

func diffMaps(prefix string, old, new map[string]any, ops *[]Op) {
	keys := make([]string, 0, len(old)+len(new))
	seen := make(map[string]struct{}, len(old)+len(new))
	for k := range old {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	for k := range new {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := prefix + "/" + escapePointer(k)
		oldVal, inOld := old[k]
		newVal, inNew := new[k]

		switch {
		case !inOld:
			*ops = append(*ops, Op{Op: OpAdd, Path: path, Value: newVal})
		case !inNew:
			*ops = append(*ops, Op{Op: OpRemove, Path: path})
		default:
			oldMap, oldIsMap := oldVal.(map[string]any)
			newMap, newIsMap := newVal.(map[string]any)
			if oldIsMap && newIsMap {
				diffMaps(path, oldMap, newMap, ops)
				continue
			}
			if !reflect.DeepEqual(oldVal, newVal) {
				*ops = append(*ops, Op{Op: OpReplace, Path: path, Value: newVal})
			}
		}
	}
}

// Patch applies ops to base and returns the result. base is not modified.
// Missing intermediate objects are created for add/replace; removing an
// absent path is a no-op.
func Patch(base map[string]any, ops []Op) map[string]any {
	result := deepCopyMap(base)
	for _, op := range ops {
		segments := splitPointer(op.Path)
		if len(segments) == 0 {
			continue
		}
		applyOp(result, segments, op)
	}
	return result
}

func applyOp(m map[string]any, segments []string, op Op) {
	head := segments[0]
	if len(segments) == 1 {
		switch op.Op {
		case OpAdd, OpReplace:
			m[head] = deepCopyValue(op.Value)
		case OpRemove:
			delete(m, head)
		}
		return
	}

	child, ok := m[head].(map[string]any)
	if !ok {
		if op.Op == OpRemove {
			return
		}
		child = map[string]any{}
		m[head] = child
	}
	applyOp(child, segments[1:], op)
}

func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

func unescapePointer(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

func splitPointer(path string) []string {
	if !strings.HasPrefix(path, "/") {
		return nil
	}
	parts := strings.Split(path[1:], "/")
	for i, p := range parts {
		parts[i] = unescapePointer(p)
	}
	return parts
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return deepCopyMap(value)
	case []any:
		out := make([]any, len(value))
		for i, e := range value {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return value
	}
}
