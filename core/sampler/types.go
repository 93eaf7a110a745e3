package sampler

// AccessType tags a memory access as it came off the instrumentation
// front-end. The core never interprets it; it is only forwarded to the
// burst writer.
type AccessType uint8

const (
	AccessRead AccessType = iota
	AccessWrite
	AccessPrefetch
)

func (t AccessType) String() string {
	switch t {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessPrefetch:
		return "prefetch"
	default:
		return "unknown"
	}
}

// AccessRecord is a single instrumented memory reference.
type AccessRecord struct {
	Addr    uint64
	PC      uint64
	Time    uint64
	Operand uint8
	Type    AccessType
}

// CacheLine derives the cache-line index of an access given the
// configured line-size log2.
func CacheLine(addr uint64, lineSizeLog2 uint8) uint64 {
	return addr >> lineSizeLog2
}

// watchpointKey identifies a pending watchpoint in either table: a
// line index or a PC, plus the operand that disambiguates multiple
// memory operands of the same instruction. Two entries collide only
// when both fields match.
type watchpointKey struct {
	key     uint64
	operand uint8
}

// watchpointEntry is a deferred commitment to treat the next access
// matching its key as the end of a sample or stride pair.
type watchpointEntry struct {
	key    watchpointKey
	access AccessRecord
	burst  *BurstHandle
}

// BurstHandle is the sampler's record of one burst window: its
// writer, name, and start time. Its lifetime runs from burst-begin to
// process shutdown — the writer is not closed at burst-end so that
// dangling watchpoints belonging to a completed burst can still be
// appended at shutdown (spec §3, burst handle lifetime).
type BurstHandle struct {
	Idx       int
	Name      string
	BeginTime uint64
	writer    Writer
}
