package transmitter

import (
	"math"
	"testing"
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/testpoint"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func drawHarness(t *rapid.T) *harness {
	rate := rapid.Float64Range(100, 1e6).Draw(t, "datarate")
	return makeHarness(zap.NewNop(), signal.Datarate(rate), 0, signal.LinearEncoder{})
}

func drawUnit(t *rapid.T, h *harness) *signal.Unit {
	length := signal.Bits(rapid.Int64Range(1, 100000).Draw(t, "length"))
	return signal.MakeUnitBits(signal.NewID(h.sim.Rand()), "unit", testpoint.RandBytes(h.sim.Rand(), length.Bytes()), length)
}

func TestPropertyFastInputNeverUnderruns(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := drawHarness(t)
		unit := drawUnit(t, h)
		rate := h.tx.Datarate()
		inputRate := func(label string) signal.Datarate {
			return rate * signal.Datarate(rapid.Float64Range(1, 10).Draw(t, label))
		}
		h.tx.PushStartAt(unit, inputRate("start rate"), signal.Bits(rapid.Int64Range(0, int64(unit.Length)).Draw(t, "start position")))
		if h.tx.Status().UnderrunAt.TimeExists() {
			t.Fatalf("underrun armed at %v with input at least as fast as output", h.tx.Status().UnderrunAt)
		}
		duration := rate.Duration(unit.Length)
		steps := rapid.IntRange(0, 10).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			next := h.sim.Now().Add(time.Duration(rapid.Int64Range(0, int64(duration)/10+1).Draw(t, "step")))
			if !next.Before(model.TimeZero.Add(duration)) {
				break
			}
			h.sim.Advance(next)
			position := signal.Bits(rapid.Int64Range(0, int64(unit.Length)).Draw(t, "position"))
			h.tx.PushProgress(unit, inputRate("rate"), position)
			if h.tx.Status().UnderrunAt.TimeExists() {
				t.Fatalf("underrun armed at %v with input at least as fast as output", h.tx.Status().UnderrunAt)
			}
		}
	})
}

func checkUnderrunAtIntersection(t *rapid.T, h *harness, inputRate float64, inputPosition signal.Bits) {
	status := h.tx.Status()
	// both checkpoints are at now: inputPosition + inputRate*dt = outputPosition + rate*dt
	lead := float64(inputPosition - status.OutputPosition)
	expected := float64(h.sim.Now())
	if lead > 0 {
		expected += lead / (float64(status.Datarate) - inputRate) * float64(time.Second)
	}
	actual := float64(status.UnderrunAt)
	if math.Abs(actual-expected) > 1 {
		t.Fatalf("underrun armed at %v ns instead of %v ns", actual, expected)
	}
}

func TestPropertyUnderrunAtIntersection(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := drawHarness(t)
		unit := drawUnit(t, h)
		rate := float64(h.tx.Datarate())
		drawRate := func(label string) float64 {
			return rapid.Float64Range(1, 0.99*rate).Draw(t, label)
		}
		inputRate := drawRate("input rate")
		lead := signal.Bits(rapid.Int64Range(0, int64(unit.Length)).Draw(t, "lead"))

		h.tx.PushStartAt(unit, signal.Datarate(inputRate), lead)
		checkUnderrunAtIntersection(t, h, inputRate, lead)

		steps := rapid.IntRange(0, 8).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			status := h.tx.Status()
			limit := status.UnderrunAt
			if end := model.VirtualTime(status.EndAt); !limit.TimeExists() || end.Before(limit) {
				limit = end
			}
			room := int64(limit.Since(h.sim.Now()))
			if room < 2 {
				break
			}
			h.sim.Advance(h.sim.Now().Add(time.Duration(rapid.Int64Range(1, room-1).Draw(t, "step"))))
			inputRate = drawRate("rate")
			position := signal.Bits(rapid.Int64Range(0, int64(unit.Length)).Draw(t, "position"))
			h.tx.PushProgress(unit, signal.Datarate(inputRate), position)
			checkUnderrunAtIntersection(t, h, inputRate, position)
		}
	})
}

func TestPropertyOutputPositionMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := drawHarness(t)
		unit := drawUnit(t, h)
		rate := h.tx.Datarate()
		h.tx.PushStart(unit, rate*2)
		end := h.tx.Status().EndAt

		last := signal.Bits(0)
		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			next := h.sim.Now().Add(time.Duration(rapid.Int64Range(0, int64(rate.Duration(unit.Length))/5+1).Draw(t, "step")))
			if !model.ClockTime(next).Before(end) {
				break
			}
			h.sim.Advance(next)
			content := unit
			if rapid.Bool().Draw(t, "change content") {
				content = unit.WithData(testpoint.RandBytes(h.sim.Rand(), unit.Length.Bytes()))
			}
			h.tx.PushProgress(content, rate*2, signal.Bits(rapid.Int64Range(0, int64(unit.Length)).Draw(t, "position")))
			position := h.tx.Status().OutputPosition
			if position < last || position > unit.Length {
				t.Fatalf("output position %v after %v (length %v)", position, last, unit.Length)
			}
			last = position
		}
		previous := signal.Bits(0)
		for _, d := range h.consumer.Collected {
			if d.Kind == testpoint.DeliveredProgress {
				if d.Position < previous || d.Position > d.Signal.Unit.Length {
					t.Fatalf("delivered position %v after %v", d.Position, previous)
				}
				previous = d.Position
			}
		}
	})
}

func TestPropertyAbortKeepsSentBits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := drawHarness(t)
		unit := drawUnit(t, h)
		rate := h.tx.Datarate()
		h.tx.PushStart(unit, rate)
		h.tx.PushEnd(unit)
		duration := rate.Duration(unit.Length)
		elapsed := time.Duration(rapid.Int64Range(0, int64(duration)-1).Draw(t, "elapsed"))
		h.sim.Advance(model.TimeZero.Add(elapsed))
		if !h.tx.IsTransmitting() {
			// rounding of the duration to whole nanoseconds may already have finished it
			return
		}
		h.tx.Crash()

		end := h.consumer.Last(testpoint.DeliveredEnd)
		expected := signal.Bits(math.Floor(float64(rate) * float64(elapsed) / float64(time.Second)))
		if expected > unit.Length {
			expected = unit.Length
		}
		if end.Signal.Unit.Length != expected {
			t.Fatalf("aborted unit has %v instead of %v", end.Signal.Unit.Length, expected)
		}
		if !end.Signal.Unit.BitError {
			t.Fatalf("aborted unit is not flagged")
		}
		if end.Signal.Duration != elapsed {
			t.Fatalf("aborted signal lasts %v instead of %v", end.Signal.Duration, elapsed)
		}
		if len(h.producer.Processed) != 1 || h.producer.CanPushChanges != 1 {
			t.Fatalf("producer was not notified exactly once")
		}
	})
}
