package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateRejectsBadLineSize(t *testing.T) {
	cfg := &Config{LineSizeLog2: 0}
	err := cfg.Validate()
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "line_size_log2", ce.Field)
}

func TestConfig_ValidateRequiresOutputPrefixWhenBursting(t *testing.T) {
	cfg := &Config{LineSizeLog2: 6, BurstSize: 10}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingOutputPrefix)
}

func TestConfig_ValidateRequiresSamplingFuncsWhenBursting(t *testing.T) {
	cfg := &Config{LineSizeLog2: 6, BurstSize: 10, OutputPrefix: "p", SamplePeriod: 1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSamplingFunc)
}

func TestConfig_ValidateDefaultsTableBuckets(t *testing.T) {
	cfg := &Config{LineSizeLog2: 6}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultTableBuckets, cfg.TableBuckets)
	assert.NotNil(t, cfg.Logger)
}

func TestConfig_ValidateRejectsNonPowerOfTwoBuckets(t *testing.T) {
	cfg := &Config{LineSizeLog2: 6, TableBuckets: 100}
	err := cfg.Validate()
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "table_buckets", ce.Field)
}

func TestCreateDefaultConfig(t *testing.T) {
	cfg := CreateDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint8(6), cfg.LineSizeLog2)
	assert.Equal(t, uint64(0), cfg.BurstSize)
}
