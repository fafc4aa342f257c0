package delta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mkarpenko/moneta/internal/common"
)

// DeltasField is the document field carrying the inline delta log.
const DeltasField = "$deltas"

// Merge deterministically merges two divergent versions of the same
// document (as generic JSON maps, including their delta logs): the union of
// both delta logs is deduplicated, sorted by logical timestamp (ties broken
// by comparing the serialized delta content), and replayed against an empty
// base. The result's top-level fields are the raw field union of both
// versions overlaid by the replayed payload, so the delta log is
// authoritative and the raw union only contributes metadata the deltas do
// not capture.
//
// Merge(a, b) == Merge(b, a). A malformed delta log yields an error wrapping
// common.ErrConflict; callers should fall back to RawUnion.
func Merge(a, b map[string]any) (map[string]any, error) {
	logA, err := parseLog(a[DeltasField])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrConflict, err)
	}
	logB, err := parseLog(b[DeltasField])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrConflict, err)
	}

	union := unionLogs(logA, logB)

	replayed := map[string]any{}
	for _, entry := range union {
		ops, err := entry.Ops()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", common.ErrConflict, err)
		}
		replayed = Patch(replayed, ops)
	}

	merged := RawUnion(a, b)
	for k, v := range replayed {
		merged[k] = v
	}
	merged[DeltasField] = union
	return merged, nil
}

// RawUnion returns the field union of both versions without delta replay.
// The overlay order is fixed by comparing the canonical serializations, so
// the union is independent of argument order. It is the best-effort fallback
// when a delta log is undecidable.
func RawUnion(a, b map[string]any) map[string]any {
	first, second := a, b
	if canonical(b) < canonical(a) {
		first, second = b, a
	}
	merged := deepCopyMap(first)
	for k, v := range second {
		merged[k] = deepCopyValue(v)
	}
	return merged
}

func unionLogs(a, b []Entry) []Entry {
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]Entry, 0, len(a)+len(b))
	for _, e := range append(append([]Entry{}, a...), b...) {
		key := fmt.Sprintf("%d|%x", e.T, e.D)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		union = append(union, e)
	}
	sort.SliceStable(union, func(i, j int) bool {
		if union[i].T != union[j].T {
			return union[i].T < union[j].T
		}
		return bytes.Compare(union[i].D, union[j].D) < 0
	})
	return union
}

// parseLog accepts the delta log in whatever generic form JSON decoding left
// it in ([]Entry, []any of maps, or absent).
func parseLog(v any) ([]Entry, error) {
	if v == nil {
		return nil, nil
	}
	if entries, ok := v.([]Entry); ok {
		return entries, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("malformed delta log: %w", err)
	}
	return entries, nil
}

func canonical(m map[string]any) string {
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(raw)
}
