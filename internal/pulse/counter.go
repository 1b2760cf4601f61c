// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pulse counts debounced edges from reed-switch style sensors
// (anemometer cups, rain gauge bucket).
//
// RecordEdge is called from the edge-watcher goroutine, Drain from the
// sampling loop. Both sides only touch the counter through sync/atomic, so
// an edge racing a drain lands in exactly one interval.
package pulse

import (
	"math"
	"sync/atomic"
	"time"
)

const (
	// WindDebounce is the minimum spacing between two anemometer ticks.
	WindDebounce = 12 * time.Millisecond
	// RainDebounce is the minimum spacing between two bucket tips.
	RainDebounce = 200 * time.Millisecond
)

// noEdge marks a counter that has not accepted any edge yet.
const noEdge = math.MinInt64

// Counter accumulates debounced edges for one sensor line.
type Counter struct {
	name     string
	debounce time.Duration
	epoch    time.Time

	count     atomic.Uint64
	lastEdge  atomic.Int64 // ns since epoch of the last accepted edge
	lastDrain atomic.Int64 // ns since epoch of the last drain
}

// NewCounter returns an empty counter. now is the start of the first
// drain interval.
func NewCounter(name string, debounce time.Duration, now time.Time) *Counter {
	c := &Counter{
		name:     name,
		debounce: debounce,
		epoch:    now,
	}
	c.lastEdge.Store(noEdge)
	return c
}

// Name returns the line name ("wind", "rain").
func (c *Counter) Name() string { return c.name }

// Debounce returns the configured debounce window.
func (c *Counter) Debounce() time.Duration { return c.debounce }

func (c *Counter) offset(now time.Time) int64 {
	return int64(now.Sub(c.epoch))
}

// RecordEdge registers one edge observed at now. It reports whether the
// edge was counted; edges closer than the debounce window to the previous
// accepted edge are dropped as contact bounce.
func (c *Counter) RecordEdge(now time.Time) bool {
	t := c.offset(now)
	for {
		last := c.lastEdge.Load()
		if last != noEdge && t-last < int64(c.debounce) {
			return false
		}
		if c.lastEdge.CompareAndSwap(last, t) {
			c.count.Add(1)
			return true
		}
	}
}

// Drain returns the number of edges accepted since the previous drain and
// the time elapsed since then, and resets the count to zero.
func (c *Counter) Drain(now time.Time) (uint64, time.Duration) {
	n := c.count.Swap(0)
	t := c.offset(now)
	prev := c.lastDrain.Swap(t)
	return n, time.Duration(t - prev)
}

// Reset discards any pending edges and starts a new interval at now.
func (c *Counter) Reset(now time.Time) {
	c.Drain(now)
}
