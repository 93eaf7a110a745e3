package sampler

import (
	"fmt"

	"go.uber.org/zap"
)

// openWriterFunc opens the burst writer backing a new burst. Exposed
// as a field on Sampler (default openBoltWriter) so tests can swap in
// a fake Writer without touching disk.
type openWriterFunc func(path string, idx int, compress bool) (Writer, error)

// Sampler is the reference dispatcher (spec §4.5) plus the state it
// composes: the burst scheduler, the two watchpoint tables, the
// short-trace ring, and the burst handles opened so far. One Sampler
// instance is never shared across goroutines — the teacher's
// reservoir processor is driven by a single collector pipeline
// goroutine in exactly the same way.
type Sampler struct {
	cfg *Config

	sched     *scheduler
	lineTable WatchpointTable
	pcTable   WatchpointTable
	ring      TraceRing

	openWriter openWriterFunc

	bursts          []*BurstHandle
	activeBurst     *BurstHandle
	totalReferences uint64

	metrics MetricsReporter
	logger  *zap.Logger
}

// New validates cfg and allocates a Sampler ready to receive
// references (spec §6, init).
func New(cfg *Config) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Sampler{
		cfg:        cfg,
		sched:      newScheduler(cfg),
		lineTable:  newTable(cfg.TableBuckets),
		pcTable:    newTable(cfg.TableBuckets),
		ring:       newRing(),
		openWriter: openWriterAdapter,
		metrics:    metrics,
		logger:     cfg.Logger,
	}, nil
}

func openWriterAdapter(path string, idx int, compress bool) (Writer, error) {
	return openBoltWriter(path, idx, compress)
}

// BurstActive reports whether a burst is currently open (spec §6).
func (s *Sampler) BurstActive() bool {
	return s.sched.Active()
}

// TotalReferences returns the count of references dispatched so far,
// whether or not a burst was active for any of them.
func (s *Sampler) TotalReferences() uint64 {
	return s.totalReferences
}

// BurstHeader returns the header that was written at the start of
// burst idx, if that burst has been opened.
func (s *Sampler) BurstHeader(idx int) (BurstHeader, bool) {
	for _, b := range s.bursts {
		if b.Idx == idx {
			return BurstHeader{
				Version:      wireFormatVersion,
				Compression:  s.cfg.Compress,
				WriterFlags:  s.cfg.WriterFlags,
				LineSizeLog2: s.cfg.LineSizeLog2,
				BeginTime:    b.BeginTime,
			}, true
		}
	}
	return BurstHeader{}, false
}

// Reference is the dispatcher: the sampler's only hot-path entry
// point (spec §4.5). It performs steps 1-5 in the exact order the
// design requires; reordering them breaks the invariants in spec §3.
func (s *Sampler) Reference(a AccessRecord) error {
	s.totalReferences++
	s.metrics.ReportTotalReferences(s.totalReferences)

	// Step 1: line-watchpoint lookup.
	line := CacheLine(a.Addr, s.cfg.LineSizeLog2)
	if entry, ok := s.lineTable.LookupAndRemove(line, a.Operand); ok {
		s.metrics.ReportLineWatchpoints(s.lineTable.Len())
		if err := entry.burst.writer.Sample(entry.access, a, s.cfg.LineSizeLog2); err != nil {
			return err
		}
		s.metrics.ReportSamples(1)
	}

	// Step 2: PC-watchpoint lookup.
	if entry, ok := s.pcTable.LookupAndRemove(a.PC, a.Operand); ok {
		s.metrics.ReportPCWatchpoints(s.pcTable.Len())
		if err := entry.burst.writer.Stride(entry.access, a, s.cfg.LineSizeLog2); err != nil {
			return err
		}
		s.metrics.ReportStrides(1)
	}

	// Step 3: burst boundary handling.
	var b boundary
	if s.cfg.BurstSize > 0 {
		b = s.sched.CheckBoundary(a.Time)
		if b.ended {
			s.activeBurst = nil
		}
		if b.began {
			if err := s.openBurst(a.Time); err != nil {
				return err
			}
		}
	}

	// Step 4: pre-sample trace recording. Skipped for the access that
	// just opened the burst — it is never a short-trace-only record
	// (spec §8 boundary behavior).
	if !b.began && s.sched.InPreSampleWindow(a.Time) {
		if a.Time == s.sched.TraceBeginTime() || a.Time == s.sched.NextSample() {
			s.ring.Record(a.PC, a.Time)
		} else {
			s.ring.Record(a.PC, 0)
		}
	}

	// Step 5: sample placement.
	if s.sched.AtSamplePoint(a.Time) {
		burst := s.activeBurst
		if burst == nil {
			return &WriterError{Op: "sample_placement", Err: fmt.Errorf("sampler: no active burst at sample point")}
		}

		s.lineTable.Insert(line, a.Operand, a, burst)
		s.metrics.ReportLineWatchpoints(s.lineTable.Len())

		if !b.began {
			if pcs, found := s.ring.Flush(a.Time); found {
				if err := burst.writer.ShortTrace(a, pcs); err != nil {
					return err
				}
				s.metrics.ReportShortTraces(1)
			}
		}

		s.pcTable.Insert(a.PC, a.Operand, a, burst)
		s.metrics.ReportPCWatchpoints(s.pcTable.Len())

		s.sched.AdvanceSample(a.Time)
		if s.sched.SeedsRing(a.Time) {
			s.ring.Record(a.PC, s.sched.TraceBeginTime())
		}
	}

	return nil
}

// openBurst implements the writer-facing half of an IDLE->ACTIVE
// transition: open "<prefix>.<idx>", emit burst-begin, and record the
// handle (spec §4.1, §4.5 step 3b).
func (s *Sampler) openBurst(time uint64) error {
	idx := s.sched.BurstIdx()
	path := fmt.Sprintf("%s.%d", s.cfg.OutputPrefix, idx)

	w, err := s.openWriter(path, idx, s.cfg.Compress)
	if err != nil {
		return &WriterError{Burst: idx, Op: "open", Err: err}
	}

	handle := &BurstHandle{Idx: idx, Name: path, BeginTime: time, writer: w}

	header := BurstHeader{
		Version:      wireFormatVersion,
		Compression:  s.cfg.Compress,
		WriterFlags:  s.cfg.WriterFlags,
		LineSizeLog2: s.cfg.LineSizeLog2,
		BeginTime:    time,
	}
	if err := w.BurstBegin(header); err != nil {
		return err
	}

	s.bursts = append(s.bursts, handle)
	s.activeBurst = handle
	s.metrics.ReportBurstsOpened(1)
	s.logger.Debug("burst opened", zap.Int("burst_idx", idx), zap.Uint64("begin_time", time))

	return nil
}

// Finalize performs shutdown (spec §4.6): drain the line table into
// dangling events, close every burst writer in the order they were
// opened, and discard the PC table unflushed.
func (s *Sampler) Finalize() error {
	for _, entry := range s.lineTable.Drain() {
		if err := entry.burst.writer.Dangling(entry.access, s.cfg.LineSizeLog2); err != nil {
			return err
		}
		s.metrics.ReportDangling(1)
	}
	s.metrics.ReportLineWatchpoints(s.lineTable.Len())

	for _, b := range s.bursts {
		if err := b.writer.Close(); err != nil {
			return err
		}
	}

	s.pcTable.Drain()
	s.metrics.ReportPCWatchpoints(s.pcTable.Len())
	s.activeBurst = nil

	s.logger.Debug("sampler finalized",
		zap.Int("bursts", len(s.bursts)),
		zap.Uint64("total_references", s.totalReferences),
	)
	return nil
}
