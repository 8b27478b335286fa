package txmodel

import (
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
)

// Pusher is the upstream side of a streaming transmitter. A producer drives one unit at a time through
// PushStart (or PushStartAt), any number of PushProgress calls, and exactly one PushEnd, and must then wait
// for PushProcessed before starting the next unit.
type Pusher interface {
	model.EventSource
	CanPush() bool
	PushStart(unit *signal.Unit, datarate signal.Datarate)
	PushStartAt(unit *signal.Unit, datarate signal.Datarate, position signal.Bits)
	PushProgress(unit *signal.Unit, datarate signal.Datarate, position signal.Bits)
	PushEnd(unit *signal.Unit)
}

type Producer interface {
	// PushProcessed reports that a previously pushed unit has left the transmitter, whether or not it was
	// transmitted in full.
	PushProcessed(unit *signal.Unit, successful bool)
	CanPushChanged()
}

// Consumer is the downstream medium. Deliveries mirror the start/progress/end lifecycle of the outgoing
// signal; a progress delivery replaces the previously delivered signal from position onwards.
type Consumer interface {
	DeliverStart(sig *signal.Signal)
	DeliverProgress(sig *signal.Signal, position signal.Bits, elapsed time.Duration)
	DeliverEnd(sig *signal.Signal)
}

type Observer interface {
	TransmissionStarted(sig *signal.Signal)
	TransmissionEnded(sig *signal.Signal)
}

// NullConsumer discards every delivery.
type NullConsumer struct{}

func (NullConsumer) DeliverStart(*signal.Signal)                                {}
func (NullConsumer) DeliverProgress(*signal.Signal, signal.Bits, time.Duration) {}
func (NullConsumer) DeliverEnd(*signal.Signal)                                  {}
