// Package diskspace measures free space on the target filesystem and
// tracks it during a run through a single shared counter.
package diskspace

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Probe reports the bytes available to an unprivileged writer at path.
type Probe func(path string) (uint64, error)

// Counter is the one point of synchronization between writers. It holds an
// estimate of free bytes: the last real measurement minus every byte
// reserved since. Writers reserve before committing a file and the estimate
// is corrected against the filesystem every interval writes.
type Counter struct {
	path     string
	floor    int64
	interval int64
	probe    Probe

	free     atomic.Int64
	inflight atomic.Int64
	written  atomic.Int64
	writes   atomic.Int64
	rechecks atomic.Int64

	recheckMu sync.Mutex
}

// NewCounter measures path once and returns a counter that refuses
// reservations which would leave less than floor bytes free. A nil probe
// uses Available.
func NewCounter(path string, floor int64, interval int, probe Probe) (*Counter, error) {
	if probe == nil {
		probe = Available
	}
	if interval < 1 {
		interval = 1
	}

	c := &Counter{path: path, floor: floor, interval: int64(interval), probe: probe}

	free, err := probe(path)
	if err != nil {
		return nil, fmt.Errorf("measuring free space on %s: %w", path, err)
	}
	c.free.Store(clamp(free))
	return c, nil
}

func clamp(v uint64) int64 {
	const maxInt64 = int64(^uint64(0) >> 1)
	if v > uint64(maxInt64) {
		return maxInt64
	}
	return int64(v)
}

// Reserve claims n bytes ahead of a write. It returns false, and claims
// nothing, when the write would cross the floor.
func (c *Counter) Reserve(n int64) bool {
	for {
		cur := c.free.Load()
		if cur-n < c.floor {
			return false
		}
		if c.free.CompareAndSwap(cur, cur-n) {
			c.inflight.Add(n)
			return true
		}
	}
}

// Release returns a reservation whose write was discarded.
func (c *Counter) Release(n int64) {
	c.inflight.Add(-n)
	c.free.Add(n)
}

// Commit records a completed write of n reserved bytes and re-measures the
// filesystem every interval writes.
func (c *Counter) Commit(n int64) error {
	c.inflight.Add(-n)
	c.written.Add(n)
	if c.writes.Add(1)%c.interval == 0 {
		return c.Recheck()
	}
	return nil
}

// Recheck corrects the estimate against a fresh measurement. Encoding
// overhead and filesystem block rounding make real usage drift from the
// reserved byte counts; the drift is applied as a delta so concurrent
// reservations are not lost.
func (c *Counter) Recheck() error {
	c.recheckMu.Lock()
	defer c.recheckMu.Unlock()

	measured, err := c.probe(c.path)
	if err != nil {
		return fmt.Errorf("re-measuring free space on %s: %w", c.path, err)
	}
	c.rechecks.Add(1)

	// Bytes reserved but not yet on disk are still counted as used.
	expected := c.free.Load() + c.inflight.Load()
	c.free.Add(clamp(measured) - expected)
	return nil
}

// Free returns the current free space estimate.
func (c *Counter) Free() int64 { return c.free.Load() }

// Floor returns the configured floor.
func (c *Counter) Floor() int64 { return c.floor }

// Written returns the bytes committed so far.
func (c *Counter) Written() int64 { return c.written.Load() }

// Rechecks returns how many times the filesystem was re-measured.
func (c *Counter) Rechecks() int64 { return c.rechecks.Load() }
