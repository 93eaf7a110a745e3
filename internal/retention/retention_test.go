package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBurstFile(t *testing.T, prefix string, idx int, size int, mtime time.Time) string {
	t.Helper()
	path := prefix + "." + itoa(idx)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func itoa(i int) string {
	return string(rune('0' + i))
}

func TestSweeper_RemovesOldestClosedFilesOverBudget(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "trace")

	now := time.Now()
	writeBurstFile(t, prefix, 0, 100, now.Add(-3*time.Hour))
	writeBurstFile(t, prefix, 1, 100, now.Add(-2*time.Hour))
	writeBurstFile(t, prefix, 2, 100, now.Add(-1*time.Hour))

	sweeper := NewSweeper(Config{
		Prefix:        prefix,
		Schedule:      "@every 1h",
		MaxTotalBytes: 150,
	}, func() map[int]bool { return nil })

	sweeper.sweepOnce()

	_, err0 := os.Stat(prefix + ".0")
	assert.True(t, os.IsNotExist(err0), "oldest file should be removed first")

	_, err2 := os.Stat(prefix + ".2")
	assert.NoError(t, err2, "newest file should survive")
}

func TestSweeper_NeverRemovesActiveBurst(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "trace")

	now := time.Now()
	writeBurstFile(t, prefix, 0, 100, now.Add(-5*time.Hour))
	writeBurstFile(t, prefix, 1, 100, now.Add(-4*time.Hour))

	sweeper := NewSweeper(Config{
		Prefix:        prefix,
		Schedule:      "@every 1h",
		MaxTotalBytes: 50,
	}, func() map[int]bool { return map[int]bool{0: true} })

	sweeper.sweepOnce()

	_, err0 := os.Stat(prefix + ".0")
	assert.NoError(t, err0, "active burst must survive even though it is the oldest")
}

func TestSweeper_NoopWhenUnderBudget(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "trace")
	writeBurstFile(t, prefix, 0, 10, time.Now())

	sweeper := NewSweeper(Config{
		Prefix:        prefix,
		Schedule:      "@every 1h",
		MaxTotalBytes: 1000,
	}, func() map[int]bool { return nil })

	sweeper.sweepOnce()

	_, err := os.Stat(prefix + ".0")
	assert.NoError(t, err)
}
