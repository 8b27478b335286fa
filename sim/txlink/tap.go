package txlink

import (
	"time"

	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txmodel"
)

const (
	EventStart     = "start"
	EventProgress  = "progress"
	EventEnd       = "end"
	EventStarted   = "started"
	EventEnded     = "ended"
	EventProcessed = "processed"
	EventDropped   = "dropped"
)

// DeliveryFunc sees each delivery made to a consumer. position and elapsed are only meaningful for progress.
type DeliveryFunc func(event string, sig *signal.Signal, position signal.Bits, elapsed time.Duration)

type tappedConsumer struct {
	txmodel.Consumer
	cb DeliveryFunc
}

func (t *tappedConsumer) DeliverStart(sig *signal.Signal) {
	t.cb(EventStart, sig, 0, 0)
	t.Consumer.DeliverStart(sig)
}

func (t *tappedConsumer) DeliverProgress(sig *signal.Signal, position signal.Bits, elapsed time.Duration) {
	t.cb(EventProgress, sig, position, elapsed)
	t.Consumer.DeliverProgress(sig, position, elapsed)
}

func (t *tappedConsumer) DeliverEnd(sig *signal.Signal) {
	t.cb(EventEnd, sig, sig.Unit.Length, sig.Duration)
	t.Consumer.DeliverEnd(sig)
}

func TapConsumer(consumer txmodel.Consumer, cb DeliveryFunc) txmodel.Consumer {
	return &tappedConsumer{
		Consumer: consumer,
		cb:       cb,
	}
}

type tappedProducer struct {
	txmodel.Producer
	cb func(unit *signal.Unit, successful bool)
}

func (t *tappedProducer) PushProcessed(unit *signal.Unit, successful bool) {
	t.cb(unit, successful)
	t.Producer.PushProcessed(unit, successful)
}

func TapProducer(producer txmodel.Producer, cb func(unit *signal.Unit, successful bool)) txmodel.Producer {
	return &tappedProducer{
		Producer: producer,
		cb:       cb,
	}
}

// ObserverFuncs adapts a pair of functions into an Observer. Either may be nil.
type ObserverFuncs struct {
	Started func(sig *signal.Signal)
	Ended   func(sig *signal.Signal)
}

var _ txmodel.Observer = ObserverFuncs{}

func (o ObserverFuncs) TransmissionStarted(sig *signal.Signal) {
	if o.Started != nil {
		o.Started(sig)
	}
}

func (o ObserverFuncs) TransmissionEnded(sig *signal.Signal) {
	if o.Ended != nil {
		o.Ended(sig)
	}
}
