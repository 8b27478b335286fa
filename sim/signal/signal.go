package signal

import (
	"fmt"
	"time"
)

// Signal is the physical-layer representation of a Unit as it is put on the medium.
type Signal struct {
	Unit     *Unit
	Datarate Datarate
	Symbols  []byte
	// Length of the representation on the medium, which includes any framing overhead.
	Length   Bits
	Duration time.Duration
}

func (s *Signal) WithDuration(d time.Duration) *Signal {
	c := *s
	c.Duration = d
	return &c
}

func (s *Signal) String() string {
	return fmt.Sprintf("signal{%v @ %v for %v}", s.Unit, s.Datarate, s.Duration)
}

// SamePayload compares the data carried by two signals, ignoring their timing.
func SamePayload(a, b *Signal) bool {
	return SameData(a.Unit, b.Unit)
}

type Encoder interface {
	Encode(unit *Unit, datarate Datarate) *Signal
	Decode(sig *Signal) (*Unit, error)
}
