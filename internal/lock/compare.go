package lock

import (
	"sort"
	"strings"
)

// Compare orders two lock handles by resource name using case-insensitive
// lexicographic comparison, returning -1, 0 or 1. A nil handle sorts
// before any non-nil handle, and two nils are equal. Values that are not
// lock handles fail with ErrIncomparable.
//
// The ordering lets callers that take several locks together do so in a
// deterministic sequence; it says nothing about whether a lock is held.
func Compare(a, b any) (int, error) {
	ha, ok := asHandle(a)
	if !ok {
		return 0, ErrIncomparable
	}
	hb, ok := asHandle(b)
	if !ok {
		return 0, ErrIncomparable
	}

	switch {
	case ha == nil && hb == nil:
		return 0, nil
	case ha == nil:
		return -1, nil
	case hb == nil:
		return 1, nil
	}
	return compareResources(ha.resource, hb.resource), nil
}

func asHandle(v any) (*Handle, bool) {
	switch h := v.(type) {
	case nil:
		return nil, true
	case *Handle:
		return h, true
	default:
		return nil, false
	}
}

func compareResources(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// sortResources orders resource names the same way Compare orders handles.
func sortResources(resources []string) {
	sort.Slice(resources, func(i, j int) bool {
		return compareResources(resources[i], resources[j]) < 0
	})
}
