package model

import "time"

// ClockTime is a reading of a local clock. It advances independently of VirtualTime and may drift from it.
type ClockTime int64

const ClockNever ClockTime = -1
const ClockZero ClockTime = 0

func (c ClockTime) String() string {
	return "clock" + formatNanos(int64(c))
}

func (c ClockTime) TimeExists() bool {
	return c >= 0
}

func (c ClockTime) Before(c2 ClockTime) bool {
	if !c.TimeExists() || !c2.TimeExists() {
		panic("clock times don't exist")
	}
	return c < c2
}

func (c ClockTime) AtOrAfter(c2 ClockTime) bool {
	return !c.Before(c2)
}

func (c ClockTime) Add(duration time.Duration) ClockTime {
	if !c.TimeExists() {
		return c
	}
	return ClockTime(addNanos(int64(c), duration))
}

func (c ClockTime) Since(base ClockTime) time.Duration {
	if base.Before(ClockZero) || c.Before(base) {
		panic("cannot compute negative clock duration")
	}
	return time.Duration(c - base)
}
