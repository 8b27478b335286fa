package transmitter

import (
	"math"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
)

// txRecord is the state of the transmission in progress. Both the input (what the producer has supplied)
// and the output (what has been sent) are modelled as linear processes, each anchored at its last checkpoint.
type txRecord struct {
	datarate       signal.Datarate
	startTime      model.VirtualTime
	startClockTime model.ClockTime

	lastOutputTime     model.VirtualTime
	lastOutputPosition signal.Bits

	lastInputDatarate signal.Datarate
	lastInputTime     model.VirtualTime
	lastInputPosition signal.Bits
	// once the producer has pushed the end of the unit, there is no input rate any more
	inputComplete bool

	signal *signal.Signal
}

func idleRecord() txRecord {
	return txRecord{
		datarate:           signal.Datarate(math.NaN()),
		startTime:          model.TimeNever,
		startClockTime:     model.ClockNever,
		lastOutputTime:     model.TimeNever,
		lastOutputPosition: signal.BitsNever,
		lastInputDatarate:  signal.Datarate(math.NaN()),
		lastInputTime:      model.TimeNever,
		lastInputPosition:  signal.BitsNever,
		inputComplete:      false,
		signal:             nil,
	}
}

func (r *txRecord) active() bool {
	return r.signal != nil
}

// bitsBetween is how far a process running at rate moves from base to t, which may be earlier than base.
func bitsBetween(rate signal.Datarate, base, t model.VirtualTime) float64 {
	return float64(rate) * float64(t-base) / float64(model.NanosecondsPerSecond)
}

func (r *txRecord) inputPositionAt(t model.VirtualTime) float64 {
	if r.inputComplete {
		return float64(r.lastInputPosition)
	}
	return float64(r.lastInputPosition) + bitsBetween(r.lastInputDatarate, r.lastInputTime, t)
}

func (r *txRecord) outputPositionAt(t model.VirtualTime) float64 {
	return float64(r.lastOutputPosition) + bitsBetween(r.datarate, r.lastOutputTime, t)
}

// underrunTime is the first instant, no earlier than now, at which the output would need bits that the input
// has not supplied yet. Both positions are linear in time, so it is the intersection of the two lines:
//
//	lastInputPosition + inputRate*(t - lastInputTime) = lastOutputPosition + datarate*(t - lastOutputTime)
//
// An underrun is only possible while the input is slower than the output.
func (r *txRecord) underrunTime(now model.VirtualTime) model.VirtualTime {
	if r.inputComplete || !(r.lastInputDatarate < r.datarate) {
		return model.TimeNever
	}
	// measured from the output checkpoint, the input is this many bits ahead of the output
	lead := r.inputPositionAt(r.lastOutputTime) - float64(r.lastOutputPosition)
	dt := lead / float64(r.datarate-r.lastInputDatarate)
	if dt <= 0 {
		return now
	}
	at, ok := r.lastOutputTime.AddSecondsCeil(dt)
	if !ok {
		// so far off that the transmission is certain to have ended first
		return model.TimeNever
	}
	return model.Latest(at, now)
}
