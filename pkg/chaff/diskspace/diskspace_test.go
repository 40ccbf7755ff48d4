package diskspace

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDisk struct {
	free  atomic.Int64
	calls atomic.Int64
	err   error
}

func (f *fakeDisk) probe(string) (uint64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return uint64(f.free.Load()), nil
}

func TestCounter_ReserveStopsAtFloor(t *testing.T) {
	t.Parallel()
	disk := &fakeDisk{}
	disk.free.Store(1000)

	c, err := NewCounter("/x", 300, 100, disk.probe)
	require.NoError(t, err)

	assert.True(t, c.Reserve(500))
	assert.True(t, c.Reserve(200))
	assert.False(t, c.Reserve(1), "reservation below floor must fail")
	assert.Equal(t, int64(300), c.Free())

	c.Release(200)
	assert.True(t, c.Reserve(150))
}

func TestCounter_ConcurrentReservationsNeverCrossFloor(t *testing.T) {
	t.Parallel()
	disk := &fakeDisk{}
	disk.free.Store(10_000)

	c, err := NewCounter("/x", 1_000, 1_000, disk.probe)
	require.NoError(t, err)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if c.Reserve(7) {
					granted.Add(7)
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, granted.Load(), int64(9_000))
	assert.GreaterOrEqual(t, c.Free(), c.Floor())
}

func TestCounter_RecheckAbsorbsDrift(t *testing.T) {
	t.Parallel()
	disk := &fakeDisk{}
	disk.free.Store(1000)

	c, err := NewCounter("/x", 0, 2, disk.probe)
	require.NoError(t, err)

	require.True(t, c.Reserve(100))
	// The real file is larger than reserved, e.g. block rounding.
	disk.free.Add(-150)
	require.NoError(t, c.Commit(100))
	assert.Equal(t, int64(900), c.Free(), "no recheck before the interval")

	require.True(t, c.Reserve(100))
	disk.free.Add(-150)
	require.NoError(t, c.Commit(100))

	assert.Equal(t, int64(1), c.Rechecks())
	assert.Equal(t, int64(700), c.Free())
	assert.Equal(t, int64(200), c.Written())
}

func TestCounter_RecheckKeepsInflightReservations(t *testing.T) {
	t.Parallel()
	disk := &fakeDisk{}
	disk.free.Store(1000)

	c, err := NewCounter("/x", 0, 1, disk.probe)
	require.NoError(t, err)

	require.True(t, c.Reserve(400)) // still being written
	require.NoError(t, c.Recheck())
	assert.Equal(t, int64(600), c.Free())
}

func TestCounter_ProbeError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	_, err := NewCounter("/x", 0, 1, (&fakeDisk{err: boom}).probe)
	assert.ErrorIs(t, err, boom)
}

func TestAvailable_TempDir(t *testing.T) {
	t.Parallel()
	free, err := Available(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)
}
