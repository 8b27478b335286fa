package transmitter

import (
	"github.com/celskeggs/streamthrough/sim/signal"
	"go.uber.org/zap"
)

func (t *Transmitter) endTx() {
	if !t.IsTransmitting() {
		t.violation("end of transmission while idle")
	}
	sig := t.record.signal
	t.logger.Info("ending transmission",
		zap.Stringer("at", t.ctx.Now()),
		zap.Stringer("clock", t.clock.ClockNow()),
		zap.Stringer("unit", sig.Unit))
	t.finish(sig)
}

// abortTx cuts the transmission short. Whatever was sent so far goes downstream as a truncated unit flagged
// with a bit error.
func (t *Transmitter) abortTx(reason string) {
	if !t.IsTransmitting() {
		t.violation("abort (%s) while idle", reason)
	}
	now := t.ctx.Now()
	elapsed := now.Since(t.record.startTime)
	unit := t.record.signal.Unit
	sent := t.record.datarate.BitsIn(elapsed)
	if sent > unit.Length {
		sent = unit.Length
	}
	truncated := unit.Truncated(sent)
	truncated.BitError = true
	sig := t.encoder.Encode(truncated, t.record.datarate).WithDuration(elapsed)
	t.logger.Info("aborting transmission",
		zap.String("reason", reason),
		zap.Stringer("at", now),
		zap.Stringer("unit", unit),
		zap.Stringer("sent", sent),
		zap.Duration("elapsed", elapsed))
	t.finish(sig)
}

func (t *Transmitter) finish(sig *signal.Signal) {
	for _, observer := range t.observers {
		observer.TransmissionEnded(sig)
	}
	t.consumer.DeliverEnd(sig)
	t.reset()
	if t.producer != nil {
		t.producer.PushProcessed(sig.Unit, true)
		t.producer.CanPushChanged()
	}
	t.Dispatch()
}

func (t *Transmitter) reset() {
	t.cancelEvent(EventTransmissionEnd)
	t.cancelEvent(EventBufferUnderrun)
	t.record = idleRecord()
}

// Stop aborts the transmission in progress, if any, as when the node is shut down.
func (t *Transmitter) Stop() {
	if t.IsTransmitting() {
		t.abortTx("stop")
	}
}

// Crash aborts the transmission in progress, if any, as when the node fails.
func (t *Transmitter) Crash() {
	if t.IsTransmitting() {
		t.abortTx("crash")
	}
}
