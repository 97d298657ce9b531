// hash.go — open-addressed node-id index for the mirror.
//
// Linear probing with Knuth's Algorithm R for deletion: on remove, the
// hole left behind is backfilled by scanning forward and pulling in
// any entry whose home bucket does not fall inside the hole-to-scan
// range, which preserves every other key's probe chain without
// tombstones. A Robin-Hood scheme would also solve this, but the
// mirror's lookup pattern (short bursts of add/remove around render
// quanta, not a steady-state workload under probe-length pressure)
// doesn't call for its extra bookkeeping.
package nodetree

const hashMask = hashBuckets - 1

// mix64 is the Murmur3 finalizer: a fixed-point avalanche mixer that
// spreads a small integer key across the full bucket range.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

func homeBucket(key int32) uint32 {
	return uint32(mix64(uint64(uint32(key)))) & hashMask
}

// hashInsert places key → slot, probing forward from its home bucket.
// The caller guarantees key is not already present.
func (t *Tree) hashInsert(key, slot int32) {
	i := homeBucket(key)
	for t.occupied[i] {
		i = (i + 1) & hashMask
	}
	t.hashKeys[i] = key
	t.hashSlot[i] = slot
	t.occupied[i] = true
}

// hashFind returns the entry-array slot for key, if present.
func (t *Tree) hashFind(key int32) (int32, bool) {
	i := homeBucket(key)
	for t.occupied[i] {
		if t.hashKeys[i] == key {
			return t.hashSlot[i], true
		}
		i = (i + 1) & hashMask
	}
	return 0, false
}

// hashRemove deletes key from the index, backward-shifting the probe
// chain that follows it so every surviving key remains reachable by
// linear probing from its home bucket.
func (t *Tree) hashRemove(key int32) {
	i := homeBucket(key)
	for t.occupied[i] && t.hashKeys[i] != key {
		i = (i + 1) & hashMask
	}
	if !t.occupied[i] {
		return
	}
	t.occupied[i] = false

	j := i
	for {
		j = (j + 1) & hashMask
		if !t.occupied[j] {
			return
		}
		home := homeBucket(t.hashKeys[j])
		if !inCyclicRange(home, (i+1)&hashMask, j) {
			t.hashKeys[i] = t.hashKeys[j]
			t.hashSlot[i] = t.hashSlot[j]
			t.occupied[i] = true
			t.occupied[j] = false
			i = j
		}
	}
}

// inCyclicRange reports whether k lies in the inclusive cyclic range
// [lo, hi] modulo the bucket count.
func inCyclicRange(k, lo, hi uint32) bool {
	return ((k - lo) & hashMask) <= ((hi - lo) & hashMask)
}
