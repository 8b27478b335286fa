package model

import (
	"fmt"
	"math"
	"time"
)

// VirtualTime is the simulation-wide event ordering axis, in nanoseconds since the start of the simulation.
type VirtualTime int64

const NanosecondsPerSecond = int64(time.Second / time.Nanosecond)

const TimeNever VirtualTime = -1
const TimeZero VirtualTime = 0

func formatNanos(ns int64) string {
	if ns < 0 {
		return "[never]"
	}
	return fmt.Sprintf("[%ds+%09dns]", ns/NanosecondsPerSecond, ns%NanosecondsPerSecond)
}

func addNanos(t int64, duration time.Duration) int64 {
	t2 := t + duration.Nanoseconds()
	if (duration > 0 && t2 < t) || (duration < 0 && t2 > t) {
		panic("times wrapped around")
	}
	return t2
}

// ceilNanos converts a point in seconds to nanoseconds, rounding up so that the result is never before the
// exact instant.
func ceilNanos(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		panic("cannot convert non-finite seconds to a time")
	}
	ns := math.Ceil(seconds * float64(NanosecondsPerSecond))
	if ns >= math.MaxInt64 {
		panic("time out of range")
	}
	return int64(ns)
}

func (t VirtualTime) String() string {
	return formatNanos(int64(t))
}

func (t VirtualTime) TimeExists() bool {
	return t >= 0
}

func (t VirtualTime) mustExist(t2 VirtualTime) {
	if !t.TimeExists() || !t2.TimeExists() {
		panic("times don't exist")
	}
}

func (t VirtualTime) AtOrAfter(t2 VirtualTime) bool {
	t.mustExist(t2)
	return t >= t2
}

func (t VirtualTime) After(t2 VirtualTime) bool {
	t.mustExist(t2)
	return t > t2
}

func (t VirtualTime) AtOrBefore(t2 VirtualTime) bool {
	t.mustExist(t2)
	return t <= t2
}

func (t VirtualTime) Before(t2 VirtualTime) bool {
	t.mustExist(t2)
	return t < t2
}

func (t VirtualTime) Add(duration time.Duration) VirtualTime {
	if !t.TimeExists() {
		return t
	}
	return VirtualTime(addNanos(int64(t), duration))
}

func (t VirtualTime) Since(base VirtualTime) time.Duration {
	t.mustExist(base)
	if base > t {
		panic("cannot compute negative duration in since; expectation is that base is AT or BEFORE t")
	}
	return time.Duration(t - base)
}

// Seconds is the time as a floating point offset from TimeZero.
func (t VirtualTime) Seconds() float64 {
	if !t.TimeExists() {
		panic("time doesn't exist")
	}
	return float64(t) / float64(NanosecondsPerSecond)
}

func (t VirtualTime) Nanoseconds() uint64 {
	if !t.TimeExists() {
		panic("time doesn't exist")
	}
	return uint64(t)
}

func FromNanoseconds(t uint64) (VirtualTime, bool) {
	vt := VirtualTime(t)
	return vt, vt.TimeExists()
}

// FromSecondsCeil returns the earliest virtual time at or after the given offset from TimeZero.
func FromSecondsCeil(seconds float64) VirtualTime {
	return VirtualTime(ceilNanos(seconds))
}

// AddSecondsCeil returns the earliest time at or after the given number of seconds past t. It reports false
// when that instant lies beyond the end of the time axis.
func (t VirtualTime) AddSecondsCeil(seconds float64) (VirtualTime, bool) {
	if !t.TimeExists() {
		panic("time doesn't exist")
	}
	if math.IsNaN(seconds) || seconds < 0 {
		panic(fmt.Sprintf("invalid offset of %v seconds", seconds))
	}
	ns := math.Ceil(seconds * float64(NanosecondsPerSecond))
	if ns >= float64(math.MaxInt64-int64(t)) {
		return TimeNever, false
	}
	sum := t + VirtualTime(ns)
	if sum < t {
		return TimeNever, false
	}
	return sum, true
}

func Latest(a, b VirtualTime) VirtualTime {
	a.mustExist(b)
	if a > b {
		return a
	}
	return b
}
