package sampler

import (
	"fmt"

	"go.uber.org/zap"
)

// TraceLen is the short-trace ring's fixed capacity, a compile-time
// power-of-two constant (spec §3).
const TraceLen = 32

// defaultTableBuckets is the default bucket count for both watchpoint
// tables; must be a power of two (spec §4.2).
const defaultTableBuckets = 1024

// Config configures a Sampler (spec §6). Logical-time fields are
// plain uint64 counts of references, not wall-clock durations — the
// dispatcher has no notion of wall time.
type Config struct {
	// OutputPrefix is the "<base>" in the "<base>.<idx>" burst filename.
	OutputPrefix string `mapstructure:"output_prefix"`

	// LineSizeLog2 derives a cache-line index as addr >> LineSizeLog2.
	LineSizeLog2 uint8 `mapstructure:"line_size_log2"`

	// BurstSize is the logical-time length of a burst window. Zero
	// disables bursting entirely (spec §8 boundary behavior).
	BurstSize uint64 `mapstructure:"burst_size"`

	// BurstPeriod seeds BurstRnd between the end of one burst and the
	// start of the next.
	BurstPeriod uint64 `mapstructure:"burst_period"`

	// SamplePeriod seeds SampleRnd between successive samples within a burst.
	SamplePeriod uint64 `mapstructure:"sample_period"`

	// SampleRnd and BurstRnd are the pluggable inter-arrival
	// distributions (spec §4.4). Required whenever BurstSize > 0.
	SampleRnd SamplingFunc `mapstructure:"-"`
	BurstRnd  SamplingFunc `mapstructure:"-"`

	// TableBuckets is the bucket count for both watchpoint tables.
	// Must be a power of two.
	TableBuckets int `mapstructure:"table_buckets"`

	// WriterFlags is opaque and forwarded to the burst writer header.
	WriterFlags uint32 `mapstructure:"writer_flags"`

	// Compress enables zstd compression of burst trace streams.
	Compress bool `mapstructure:"compress"`

	// Logger receives structured diagnostics. Defaults to a no-op
	// logger so the library stays silent when embedded.
	Logger *zap.Logger `mapstructure:"-"`

	// Metrics receives hot-path counters. Optional.
	Metrics MetricsReporter `mapstructure:"-"`
}

// Validate checks the configuration for the ConfigError cases spec §7 names.
func (c *Config) Validate() error {
	if c.LineSizeLog2 == 0 || c.LineSizeLog2 >= 64 {
		return &ConfigError{Field: "line_size_log2", Err: ErrInvalidLineSize}
	}

	if c.BurstSize > 0 {
		if c.OutputPrefix == "" {
			return &ConfigError{Field: "output_prefix", Err: ErrMissingOutputPrefix}
		}
		if c.SamplePeriod == 0 {
			return &ConfigError{Field: "sample_period", Err: ErrInvalidPeriod}
		}
		if c.SampleRnd == nil {
			return &ConfigError{Field: "sample_rnd", Err: ErrNoSamplingFunc}
		}
		if c.BurstRnd == nil {
			return &ConfigError{Field: "burst_rnd", Err: ErrNoSamplingFunc}
		}
	}

	if c.TableBuckets == 0 {
		c.TableBuckets = defaultTableBuckets
	}
	if c.TableBuckets&(c.TableBuckets-1) != 0 {
		return &ConfigError{Field: "table_buckets", Err: fmt.Errorf("must be a power of two, got %d", c.TableBuckets)}
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	return nil
}

// CreateDefaultConfig returns a Config with conservative defaults,
// mirroring the teacher's CreateDefaultConfig convention.
func CreateDefaultConfig() *Config {
	return &Config{
		LineSizeLog2: 6,
		BurstSize:    0,
		TableBuckets: defaultTableBuckets,
		Logger:       zap.NewNop(),
	}
}
