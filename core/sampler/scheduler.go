package sampler

// scheduler is the burst-scheduling state machine (spec §4.4): a pure
// state machine over logical time with states {IDLE, ACTIVE}. It owns
// no I/O — Sampler drives burst-open/close side effects (writers,
// tables) off the transitions this reports.
//
// All logical-time fields are uint64 and rely on unsigned wraparound
// exactly as the original C implementation's "unsigned long" fields
// do: trace_begin_time = next_sample - TraceLen underflows to a huge
// value when next_sample < TraceLen, which makes the pre-sample
// window comparisons in Sampler.Reference naturally inert until
// enough logical time has elapsed. This is intentional, not a bug to
// paper over.
type scheduler struct {
	cfg *Config

	active bool

	burstBegin     uint64
	burstEnd       uint64
	nextSample     uint64
	traceBeginTime uint64
	burstIdx       int
	nextBurstIdx   int
}

func newScheduler(cfg *Config) *scheduler {
	return &scheduler{cfg: cfg}
}

func (s *scheduler) Active() bool { return s.active }

// boundary reports which of the two transitions fired on this call.
type boundary struct {
	ended bool
	began bool
}

// CheckBoundary implements spec §4.5 step 3: burst-end is always
// checked before burst-begin, because both can equal the current time
// when BurstRnd draws 0 (the two checks are independent ifs, not an
// else-if, precisely to allow a same-instant close-then-reopen).
func (s *scheduler) CheckBoundary(time uint64) boundary {
	var b boundary

	if s.cfg.BurstSize == 0 {
		return b
	}

	if s.active && time == s.burstEnd {
		s.active = false
		s.burstBegin = time + s.cfg.BurstRnd(s.cfg.BurstPeriod)
		b.ended = true
	}

	if !s.active && time == s.burstBegin {
		s.active = true
		s.nextSample = time
		s.burstEnd = time + s.cfg.BurstSize
		s.burstIdx = s.nextBurstIdx
		s.nextBurstIdx++
		b.began = true
	}

	return b
}

// InPreSampleWindow reports whether time falls in [traceBeginTime,
// nextSample], the condition gating spec §4.5 step 4.
func (s *scheduler) InPreSampleWindow(time uint64) bool {
	return s.active && time >= s.traceBeginTime && time <= s.nextSample
}

// AtSamplePoint reports whether time is exactly the next scheduled sample.
func (s *scheduler) AtSamplePoint(time uint64) bool {
	return s.active && time == s.nextSample
}

// AdvanceSample implements spec §4.5 step 5d: next_sample <- time +
// max(sample_rnd(sample_period), 1), then recomputes trace_begin_time.
func (s *scheduler) AdvanceSample(time uint64) {
	delta := clampMin1(s.cfg.SampleRnd(s.cfg.SamplePeriod))
	s.nextSample = time + delta
	s.traceBeginTime = s.nextSample - TraceLen
}

// SeedsRing reports whether the pre-sample window for the next sample
// has already started (spec §4.5 step 5e: trace_begin_time <= time).
func (s *scheduler) SeedsRing(time uint64) bool {
	return s.traceBeginTime <= time
}

func (s *scheduler) BurstIdx() int          { return s.burstIdx }
func (s *scheduler) TraceBeginTime() uint64 { return s.traceBeginTime }
func (s *scheduler) NextSample() uint64     { return s.nextSample }
