package sampler

// table is the concrete WatchpointTable: a native Go map keyed by
// (key, operand), holding a slice per key to preserve multiset
// semantics (spec §4.2: "duplicates ... are permitted"). The design
// notes call for the target language's native associative container
// rather than reimplementing the original's intrusive hash buckets —
// a Go map already gives expected O(1) insert and lookup without the
// power-of-two bucket-count bookkeeping the original needed.
type table struct {
	entries map[watchpointKey][]*watchpointEntry
	size    int
}

// newTable preallocates the backing map with room for buckets entries
// (spec §4.2: "bucket count is a power of two ... chosen at init"),
// carrying Config.TableBuckets through as a capacity hint rather than
// leaving it decorative.
func newTable(buckets int) *table {
	return &table{entries: make(map[watchpointKey][]*watchpointEntry, buckets)}
}

// Insert allocates an entry and adds it to the multiset for (key, operand).
func (t *table) Insert(key uint64, operand uint8, access AccessRecord, burst *BurstHandle) {
	k := watchpointKey{key: key, operand: operand}
	e := &watchpointEntry{key: k, access: access, burst: burst}
	t.entries[k] = append(t.entries[k], e)
	t.size++
}

// LookupAndRemove returns and removes one matching entry if present.
// Selection among duplicates is unspecified; this picks the oldest
// (spec §4.2 leaves the choice open), so a hit is paired with the
// longest-pending watchpoint for its key.
func (t *table) LookupAndRemove(key uint64, operand uint8) (*watchpointEntry, bool) {
	k := watchpointKey{key: key, operand: operand}
	bucket, ok := t.entries[k]
	if !ok || len(bucket) == 0 {
		return nil, false
	}

	e := bucket[0]
	if len(bucket) == 1 {
		delete(t.entries, k)
	} else {
		t.entries[k] = bucket[1:]
	}
	t.size--
	return e, true
}

// Drain yields and removes all entries, for shutdown only.
func (t *table) Drain() []*watchpointEntry {
	out := make([]*watchpointEntry, 0, t.size)
	for k, bucket := range t.entries {
		out = append(out, bucket...)
		delete(t.entries, k)
	}
	t.size = 0
	return out
}

func (t *table) Len() int {
	return t.size
}
