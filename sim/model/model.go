package model

import "math/rand"

type SimContext interface {
	Now() VirtualTime
	// SetTimer arranges for callback to run once the simulation reaches expireAt. The returned cancel function
	// may be called any number of times, including after the timer has fired.
	SetTimer(expireAt VirtualTime, name string, callback func()) (cancel func())
	Later(name string, callback func()) (cancel func())
	Rand() *rand.Rand
}

// Clock is a local clock attached to a device. Its readings are ClockTimes, which need not advance at the same
// rate as VirtualTime.
type Clock interface {
	ClockNow() ClockTime
	SetClockTimer(expireAt ClockTime, name string, callback func()) (cancel func())
}

type EventSource interface {
	Subscribe(callback func()) (cancel func())
}
