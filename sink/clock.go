// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"sync"
	"time"
)

// Clock is the time base a sink plays against.
type Clock interface {
	NowUs() int64
}

// SystemClock follows wall time.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) NowUs() int64 {
	return time.Since(c.start).Microseconds()
}

// ManualClock only moves when advanced. It drives faster than real time
// rendering and tests.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) NowUs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d.Microseconds()
}
