package layout

import "unsafe"

// b2s reinterprets b as a string without copying, matching this
// lineage's zero-allocation conversion idiom. The caller must not
// mutate b afterward.
func b2s(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}
