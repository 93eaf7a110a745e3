package sampler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltWriter_AppendOrderAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burst.0")

	w, err := openBoltWriter(path, 0, false)
	require.NoError(t, err)

	header := BurstHeader{Version: wireFormatVersion, LineSizeLog2: 6, BeginTime: 0}
	require.NoError(t, w.BurstBegin(header))

	a1 := AccessRecord{Addr: 0x40, PC: 1, Time: 0}
	a2 := AccessRecord{Addr: 0x40, PC: 2, Time: 50}
	require.NoError(t, w.Sample(a1, a2, 6))
	require.NoError(t, w.Dangling(a2, 6))
	require.NoError(t, w.Close())

	events, err := ReadEvents(path, false)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, eventBurstBegin, events[0].Kind)
	assert.Equal(t, header, *events[0].Header)

	assert.Equal(t, eventSample, events[1].Kind)
	assert.Equal(t, a1, events[1].Begin)
	assert.Equal(t, a2, events[1].End)

	assert.Equal(t, eventDangling, events[2].Kind)
	assert.Equal(t, a2, events[2].Access)
}

func TestBoltWriter_BurstBeginOnlyWritesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burst.0")

	w, err := openBoltWriter(path, 0, false)
	require.NoError(t, err)

	require.NoError(t, w.BurstBegin(BurstHeader{BeginTime: 1}))
	require.NoError(t, w.BurstBegin(BurstHeader{BeginTime: 2}))
	require.NoError(t, w.Close())

	events, err := ReadEvents(path, false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Header.BeginTime)
}

func TestBoltWriter_CompressedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burst.0")

	w, err := openBoltWriter(path, 0, true)
	require.NoError(t, err)

	access := AccessRecord{Addr: 0x40, PC: 7, Time: 3}
	var pcs [TraceLen]uint64
	for i := range pcs {
		pcs[i] = uint64(i)
	}
	require.NoError(t, w.ShortTrace(access, pcs))
	require.NoError(t, w.Close())

	events, err := ReadEvents(path, true)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, access, events[0].Access)
	assert.Equal(t, pcs, events[0].PCs)
}
