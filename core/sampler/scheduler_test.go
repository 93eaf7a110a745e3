package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCfg() *Config {
	return &Config{
		BurstSize:    10,
		BurstPeriod:  5,
		SamplePeriod: 3,
		SampleRnd:    ConstantPolicy(),
		BurstRnd:     ConstantPolicy(),
	}
}

func TestScheduler_OpensAtBurstBeginZero(t *testing.T) {
	s := newScheduler(testCfg())
	b := s.CheckBoundary(0)
	assert.True(t, b.began)
	assert.False(t, b.ended)
	assert.True(t, s.Active())
	assert.Equal(t, 0, s.BurstIdx())
}

func TestScheduler_ClosesAtBurstEnd(t *testing.T) {
	s := newScheduler(testCfg())
	s.CheckBoundary(0)

	b := s.CheckBoundary(10)
	assert.True(t, b.ended)
	assert.False(t, s.Active())
}

func TestScheduler_BurstIdxIncrementsPerBurst(t *testing.T) {
	s := newScheduler(testCfg())
	s.CheckBoundary(0)
	assert.Equal(t, 0, s.BurstIdx())

	s.CheckBoundary(10) // ends, schedules next begin at 15
	b := s.CheckBoundary(15)
	assert.True(t, b.began)
	assert.Equal(t, 1, s.BurstIdx())
}

func TestScheduler_SameInstantCloseThenReopen(t *testing.T) {
	cfg := testCfg()
	cfg.BurstRnd = func(uint64) uint64 { return 0 }
	s := newScheduler(cfg)
	s.CheckBoundary(0)

	b := s.CheckBoundary(10)
	assert.True(t, b.ended)
	assert.True(t, b.began, "burst_rnd()==0 means burst_begin collides with burst_end")
	assert.True(t, s.Active())
	assert.Equal(t, 1, s.BurstIdx())
}

func TestScheduler_AdvanceSampleClampsToOne(t *testing.T) {
	cfg := testCfg()
	cfg.SampleRnd = func(uint64) uint64 { return 0 }
	s := newScheduler(cfg)
	s.CheckBoundary(0)

	s.AdvanceSample(0)
	assert.Equal(t, uint64(1), s.NextSample())
}

func TestScheduler_InPreSampleWindow(t *testing.T) {
	s := newScheduler(testCfg())
	s.CheckBoundary(0)
	s.AdvanceSample(100) // next_sample=103, trace_begin_time=71

	assert.False(t, s.InPreSampleWindow(70))
	assert.True(t, s.InPreSampleWindow(71))
	assert.True(t, s.InPreSampleWindow(103))
	assert.False(t, s.InPreSampleWindow(104))
}

func TestScheduler_BurstSizeZeroNeverTransitions(t *testing.T) {
	cfg := testCfg()
	cfg.BurstSize = 0
	s := newScheduler(cfg)

	b := s.CheckBoundary(0)
	assert.False(t, b.began)
	assert.False(t, b.ended)
	assert.False(t, s.Active())
}
