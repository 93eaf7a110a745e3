package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter is an in-memory Writer used by every Sampler test so none
// of them touch disk.
type fakeWriter struct {
	idx    int
	header BurstHeader

	samples  [][2]AccessRecord
	strides  [][2]AccessRecord
	dangling []AccessRecord

	shortTraces []shortTraceCall
	closed      bool
}

type shortTraceCall struct {
	access AccessRecord
	pcs    [TraceLen]uint64
}

func (w *fakeWriter) BurstBegin(h BurstHeader) error {
	w.header = h
	return nil
}

func (w *fakeWriter) Sample(begin, end AccessRecord, _ uint8) error {
	w.samples = append(w.samples, [2]AccessRecord{begin, end})
	return nil
}

func (w *fakeWriter) Stride(begin, end AccessRecord, _ uint8) error {
	w.strides = append(w.strides, [2]AccessRecord{begin, end})
	return nil
}

func (w *fakeWriter) Dangling(access AccessRecord, _ uint8) error {
	w.dangling = append(w.dangling, access)
	return nil
}

func (w *fakeWriter) ShortTrace(access AccessRecord, pcs [TraceLen]uint64) error {
	w.shortTraces = append(w.shortTraces, shortTraceCall{access: access, pcs: pcs})
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var _ Writer = (*fakeWriter)(nil)

// newTestSampler builds a Sampler whose burst writers are fakeWriters,
// keyed by burst index in the returned map (populated lazily as
// bursts open).
func newTestSampler(t *testing.T, cfg *Config) (*Sampler, map[int]*fakeWriter) {
	t.Helper()
	writers := make(map[int]*fakeWriter)

	s, err := New(cfg)
	require.NoError(t, err)

	s.openWriter = func(path string, idx int, compress bool) (Writer, error) {
		w := &fakeWriter{idx: idx}
		writers[idx] = w
		return w, nil
	}
	return s, writers
}

func baseConfig() *Config {
	return &Config{
		OutputPrefix: "test",
		LineSizeLog2: 6,
		BurstSize:    100,
		BurstPeriod:  0,
		SamplePeriod: 50,
		SampleRnd:    ConstantPolicy(),
		BurstRnd:     ConstantPolicy(),
	}
}

// Scenario 1: single reuse.
func TestScenario_SingleReuse(t *testing.T) {
	cfg := baseConfig()
	s, writers := newTestSampler(t, cfg)

	a1 := AccessRecord{Addr: 0x40, PC: 1, Time: 0}
	a2 := AccessRecord{Addr: 0x40, PC: 2, Time: 50}

	require.NoError(t, s.Reference(a1))
	require.NoError(t, s.Reference(a2))

	w := writers[0]
	require.NotNil(t, w)
	require.Len(t, w.samples, 1)
	assert.Equal(t, a1, w.samples[0][0])
	assert.Equal(t, a2, w.samples[0][1])
}

// Scenario 2: dangling.
func TestScenario_Dangling(t *testing.T) {
	cfg := baseConfig()
	s, writers := newTestSampler(t, cfg)

	a1 := AccessRecord{Addr: 0x40, PC: 1, Time: 0}
	a2 := AccessRecord{Addr: 0x80, PC: 2, Time: 50}

	require.NoError(t, s.Reference(a1))
	require.NoError(t, s.Reference(a2))
	require.NoError(t, s.Finalize())

	w := writers[0]
	require.NotNil(t, w)
	assert.Empty(t, w.samples)
	assert.Len(t, w.dangling, 2)
	assert.True(t, w.closed)
}

// Scenario 3: stride.
func TestScenario_Stride(t *testing.T) {
	cfg := baseConfig()
	s, writers := newTestSampler(t, cfg)

	a1 := AccessRecord{Addr: 0x40, PC: 5, Time: 0}
	a2 := AccessRecord{Addr: 0x80, PC: 5, Time: 50}

	require.NoError(t, s.Reference(a1))
	require.NoError(t, s.Reference(a2))

	w := writers[0]
	require.Len(t, w.strides, 1)
	assert.Equal(t, a1, w.strides[0][0])
	assert.Equal(t, a2, w.strides[0][1])
}

// Scenario 4: short-trace. The spec's own worked example uses
// TRACE_LEN=4; this package fixes TraceLen=32 (spec §9 calls 32 "a
// fixed-capacity compile-time power-of-two constant, e.g. 32"), so the
// timeline below is scaled up to exercise the same mechanism: a dense
// access stream spanning the pre-sample window, verifying the
// chronological-order and "drawn from accesses hashing to the same
// bucket as T" properties from spec §8 invariant 5.
func TestScenario_ShortTrace(t *testing.T) {
	cfg := &Config{
		OutputPrefix: "test",
		LineSizeLog2: 6,
		BurstSize:    200,
		SamplePeriod: 40,
		SampleRnd:    ConstantPolicy(),
		BurstRnd:     ConstantPolicy(),
	}
	s, writers := newTestSampler(t, cfg)

	for t64 := uint64(0); t64 <= 40; t64++ {
		pc := 100 + t64
		require.NoError(t, s.Reference(AccessRecord{Addr: 0x1000 + t64, PC: pc, Time: t64}))
	}

	w := writers[0]
	require.Len(t, w.shortTraces, 1)
	call := w.shortTraces[0]
	assert.Equal(t, uint64(40), call.access.Time)

	// trace_begin_time (8) and next_sample (40) differ by exactly
	// TraceLen, so both exact writes land in the same bucket; every
	// access from t=8..40 pushes into it (propagate-all for the
	// non-boundary ones), filling it to capacity, and t=40's exact
	// write evicts t=8's PC. The surviving chronological order is the
	// PCs from t=9..40.
	for i := 0; i < TraceLen; i++ {
		assert.Equal(t, uint64(109+i), call.pcs[i], "slot %d", i)
	}
}

// Scenario 5: burst cycling.
func TestScenario_BurstCycling(t *testing.T) {
	cfg := &Config{
		OutputPrefix: "test",
		LineSizeLog2: 6,
		BurstSize:    10,
		BurstPeriod:  5,
		SamplePeriod: 100, // large enough that only the opening sample fires
		SampleRnd:    ConstantPolicy(),
		BurstRnd:     ConstantPolicy(),
	}
	s, writers := newTestSampler(t, cfg)

	for t64 := uint64(0); t64 < 30; t64++ {
		require.NoError(t, s.Reference(AccessRecord{Addr: 0x1000 + t64, PC: t64, Time: t64}))
	}

	assert.Len(t, writers, 2, "expected two distinct burst files")
	require.NotNil(t, writers[0])
	require.NotNil(t, writers[1])
	assert.Equal(t, uint64(0), writers[0].header.BeginTime)
	assert.Equal(t, uint64(15), writers[1].header.BeginTime)
}

// Scenario 6: first-access-of-burst exclusion.
func TestScenario_FirstAccessExclusion(t *testing.T) {
	cfg := &Config{
		OutputPrefix: "test",
		LineSizeLog2: 6,
		BurstSize:    100,
		SamplePeriod: 50,
		SampleRnd:    ConstantPolicy(),
		BurstRnd:     ConstantPolicy(),
	}
	s, writers := newTestSampler(t, cfg)

	require.NoError(t, s.Reference(AccessRecord{Addr: 0x40, PC: 1, Time: 0}))

	w := writers[0]
	assert.Empty(t, w.shortTraces, "the opening access of a burst must never emit a short-trace event")
}

// Boundary: zero burst_size disables bursting entirely.
func TestBoundary_ZeroBurstSizeDisablesBursting(t *testing.T) {
	cfg := &Config{LineSizeLog2: 6}
	s, writers := newTestSampler(t, cfg)

	for t64 := uint64(0); t64 < 20; t64++ {
		require.NoError(t, s.Reference(AccessRecord{Addr: 0x40 * t64, PC: t64, Time: t64}))
	}

	assert.Empty(t, writers, "no burst should ever open")
	assert.False(t, s.BurstActive())
}

// Boundary: a sample_rnd returning 0 is clamped to 1.
func TestBoundary_SampleRndZeroClampedToOne(t *testing.T) {
	cfg := &Config{
		OutputPrefix: "test",
		LineSizeLog2: 6,
		BurstSize:    100,
		SamplePeriod: 1,
		SampleRnd:    func(uint64) uint64 { return 0 },
		BurstRnd:     ConstantPolicy(),
	}
	s, _ := newTestSampler(t, cfg)

	require.NoError(t, s.Reference(AccessRecord{Addr: 0x40, PC: 1, Time: 0}))
	assert.Equal(t, uint64(1), s.sched.NextSample())
}

// TotalReferences is maintained unconditionally, burst active or not.
func TestTotalReferencesCountsRegardlessOfBurstState(t *testing.T) {
	cfg := &Config{LineSizeLog2: 6}
	s, _ := newTestSampler(t, cfg)

	for t64 := uint64(0); t64 < 5; t64++ {
		require.NoError(t, s.Reference(AccessRecord{Addr: t64, PC: t64, Time: t64}))
	}
	assert.Equal(t, uint64(5), s.TotalReferences())
}

func TestBurstHeaderReflectsOpenedBurst(t *testing.T) {
	cfg := baseConfig()
	s, _ := newTestSampler(t, cfg)

	require.NoError(t, s.Reference(AccessRecord{Addr: 0x40, PC: 1, Time: 0}))

	h, ok := s.BurstHeader(0)
	require.True(t, ok)
	assert.Equal(t, uint64(0), h.BeginTime)
	assert.Equal(t, uint8(6), h.LineSizeLog2)

	_, ok = s.BurstHeader(1)
	assert.False(t, ok)
}
