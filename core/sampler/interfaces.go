package sampler

// Writer is the burst writer contract (spec §4.1). One Writer backs
// exactly one burst, from burst-begin to process shutdown.
type Writer interface {
	// BurstBegin emits the burst-begin event. Called once, immediately
	// after the writer is opened.
	BurstBegin(header BurstHeader) error

	// Sample records a reuse witnessed within the burst: begin is the
	// access that placed the watchpoint, end is the access that hit it.
	Sample(begin, end AccessRecord, lineSizeLog2 uint8) error

	// Stride records two successive accesses issued from the same PC.
	Stride(begin, end AccessRecord, lineSizeLog2 uint8) error

	// Dangling records a watchpoint that was never hit, emitted only
	// at shutdown.
	Dangling(access AccessRecord, lineSizeLog2 uint8) error

	// ShortTrace records the PC window immediately preceding a sample.
	ShortTrace(access AccessRecord, pcs [TraceLen]uint64) error

	// Close flushes and closes the underlying trace stream. Called at
	// shutdown, never at burst-end.
	Close() error
}

// WatchpointTable is a multiset keyed by (key, operand) -> pending
// access. Both tables (line and PC) implement this interface (spec
// §4.2); Insert and LookupAndRemove are expected O(1).
type WatchpointTable interface {
	Insert(key uint64, operand uint8, access AccessRecord, burst *BurstHandle)
	LookupAndRemove(key uint64, operand uint8) (*watchpointEntry, bool)
	Drain() []*watchpointEntry
	Len() int
}

// TraceRing is the fixed-capacity, bucket-indexed short-PC-trace ring
// (spec §4.3).
type TraceRing interface {
	// Record pushes pc onto the bucket for time, unless time == 0,
	// which instead pushes pc onto every bucket (spec §4.5 step 4/5e).
	Record(pc uint64, time uint64)

	// Flush drains the bucket for sampleTime, returning the
	// chronological PC window and whether any entry was present.
	Flush(sampleTime uint64) ([TraceLen]uint64, bool)
}

// SamplingFunc maps a configured period to an unsigned delta (spec
// §4.4). ConstantPolicy and ExponentialPolicy are the two provided
// implementations.
type SamplingFunc func(period uint64) uint64

// MetricsReporter receives counters and gauges from the sampler's hot
// path. Implementations must be safe to read concurrently with
// Sampler.Reference, since the core writes them from the dispatcher
// goroutine while an exporter typically reads them from another one.
type MetricsReporter interface {
	ReportLineWatchpoints(count int)
	ReportPCWatchpoints(count int)
	ReportSamples(count int)
	ReportStrides(count int)
	ReportDangling(count int)
	ReportShortTraces(count int)
	ReportBurstsOpened(count int)
	ReportTotalReferences(count uint64)
}
