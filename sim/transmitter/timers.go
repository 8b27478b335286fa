package transmitter

import (
	"fmt"
	"math"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"go.uber.org/zap"
)

type EventKind uint8

const (
	EventTransmissionEnd EventKind = iota + 1
	EventBufferUnderrun
)

func (k EventKind) String() string {
	switch k {
	case EventTransmissionEnd:
		return "TransmissionEnd"
	case EventBufferUnderrun:
		return "BufferUnderrun"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

func (t *Transmitter) timerName(kind EventKind) string {
	return fmt.Sprintf("%s/%v", t.config.Name, kind)
}

func (t *Transmitter) cancelEvent(kind EventKind) {
	switch kind {
	case EventTransmissionEnd:
		if t.cancelEnd != nil {
			t.cancelEnd()
			t.cancelEnd = nil
		}
		t.endAt = model.ClockNever
	case EventBufferUnderrun:
		if t.cancelUnderrun != nil {
			t.cancelUnderrun()
			t.cancelUnderrun = nil
		}
		t.underrunAt = model.TimeNever
	default:
		panic("unknown event kind " + kind.String())
	}
}

// the end is measured on the local clock, so it moves with any drift of that clock
func (t *Transmitter) scheduleTxEndTimer() {
	t.cancelEvent(EventTransmissionEnd)
	endAt := t.record.startClockTime.Add(t.record.signal.Duration)
	t.logger.Debug("scheduling transmission end",
		zap.Stringer("at", t.ctx.Now()), zap.Stringer("end_clock", endAt))
	t.endAt = endAt
	t.cancelEnd = t.clock.SetClockTimer(endAt, t.timerName(EventTransmissionEnd), func() {
		t.handleEvent(EventTransmissionEnd)
	})
}

func (t *Transmitter) scheduleBufferUnderrunTimer() {
	t.cancelEvent(EventBufferUnderrun)
	now := t.ctx.Now()
	underrunAt := t.record.underrunTime(now)
	if !underrunAt.TimeExists() {
		return
	}
	t.logger.Debug("scheduling buffer underrun",
		zap.Stringer("at", now), zap.Stringer("underrun_at", underrunAt))
	t.underrunAt = underrunAt
	t.cancelUnderrun = t.ctx.SetTimer(underrunAt, t.timerName(EventBufferUnderrun), func() {
		t.handleEvent(EventBufferUnderrun)
	})
}

func (t *Transmitter) handleEvent(kind EventKind) {
	switch kind {
	case EventTransmissionEnd:
		t.cancelEnd, t.endAt = nil, model.ClockNever
		t.endTx()
	case EventBufferUnderrun:
		t.cancelUnderrun, t.underrunAt = nil, model.TimeNever
		t.bufferUnderrun()
	default:
		panic("unknown event kind " + kind.String())
	}
}

func (t *Transmitter) bufferUnderrun() {
	now := t.ctx.Now()
	err := &BufferUnderrunError{
		Transmitter:    t.config.Name,
		Unit:           t.record.signal.Unit,
		At:             now,
		InputPosition:  signal.Bits(math.Floor(t.record.inputPositionAt(now))),
		OutputPosition: signal.Bits(math.Floor(t.record.outputPositionAt(now))),
		InputDatarate:  t.record.lastInputDatarate,
		Datarate:       t.record.datarate,
	}
	t.logger.Error("buffer underrun", zap.Error(err))
	panic(err)
}
