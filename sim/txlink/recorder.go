package txlink

import (
	"time"

	"github.com/celskeggs/streamthrough/sim/component"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txmodel"
)

func RecordConsumer(r *component.TxRecorder, channel string, consumer txmodel.Consumer) txmodel.Consumer {
	if r.IsRecording() {
		return TapConsumer(consumer, func(event string, sig *signal.Signal, position signal.Bits, elapsed time.Duration) {
			r.Record(channel, event, sig.Unit, position, elapsed)
		})
	} else {
		return consumer
	}
}

func RecordProducer(r *component.TxRecorder, channel string, producer txmodel.Producer) txmodel.Producer {
	if r.IsRecording() {
		return TapProducer(producer, func(unit *signal.Unit, successful bool) {
			event := EventProcessed
			if !successful {
				event = EventDropped
			}
			r.Record(channel, event, unit, unit.Length, 0)
		})
	} else {
		return producer
	}
}

// RecordObserver records transmission notifications; it records nothing if r is not recording.
func RecordObserver(r *component.TxRecorder, channel string) txmodel.Observer {
	if !r.IsRecording() {
		return ObserverFuncs{}
	}
	return ObserverFuncs{
		Started: func(sig *signal.Signal) {
			r.Record(channel, EventStarted, sig.Unit, 0, 0)
		},
		Ended: func(sig *signal.Signal) {
			r.Record(channel, EventEnded, sig.Unit, sig.Unit.Length, sig.Duration)
		},
	}
}
