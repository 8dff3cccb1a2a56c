// Package clock provides the monotonic microsecond clock domain every entity
// timestamp lives in, plus skew arithmetic for timestamps arriving from
// remote clock frames.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock yields timestamps in microseconds. The zero timestamp means "never".
type Clock interface {
	NowUsec() uint64
}

// System reads the wall clock.
type System struct{}

func (System) NowUsec() uint64 { return uint64(time.Now().UnixMicro()) }

// Manual is a hand-stepped clock for deterministic tests and replays.
type Manual struct {
	now atomic.Uint64
}

func NewManual(startUsec uint64) *Manual {
	m := &Manual{}
	m.now.Store(startUsec)
	return m
}

func (m *Manual) NowUsec() uint64 { return m.now.Load() }

func (m *Manual) Set(usec uint64) { m.now.Store(usec) }

// Advance moves the clock forward by d and returns the new reading.
func (m *Manual) Advance(d time.Duration) uint64 {
	return m.now.Add(uint64(d.Microseconds()))
}

// AdjustUsec shifts a remote-frame timestamp into the local frame by skew
// microseconds, saturating at zero rather than wrapping.
func AdjustUsec(t uint64, skew int64) uint64 {
	if skew >= 0 {
		return t + uint64(skew)
	}
	neg := uint64(-skew)
	if neg >= t {
		return 0
	}
	return t - neg
}
