package component

import (
	"testing"
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimersRunInOrder(t *testing.T) {
	sim := MakeSimControllerSeeded(1, model.TimeZero)
	var fired []string
	record := func(name string) func() {
		return func() {
			fired = append(fired, name)
		}
	}
	sim.SetTimer(model.TimeZero.Add(time.Second*2), "c", record("c"))
	sim.SetTimer(model.TimeZero.Add(time.Second), "a", record("a"))
	sim.SetTimer(model.TimeZero.Add(time.Second), "b", record("b"))

	assert.Equal(t, []string{"a", "b", "c"}, sim.PendingTimers())

	next := sim.Advance(model.TimeZero.Add(time.Second))
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, model.TimeZero.Add(time.Second*2), next)

	next = sim.Advance(model.TimeZero.Add(time.Second * 10))
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, model.TimeNever, next)
	assert.Equal(t, model.TimeZero.Add(time.Second*10), sim.Now())
}

func TestCancelIsIdempotent(t *testing.T) {
	sim := MakeSimControllerSeeded(2, model.TimeZero)
	ran := false
	cancel := sim.SetTimer(model.TimeZero.Add(time.Millisecond), "cancelled", func() {
		ran = true
	})
	cancel()
	cancel()
	sim.Advance(model.TimeZero.Add(time.Second))
	assert.False(t, ran)

	// cancelling after firing has no effect either
	cancel = sim.Later("fires", func() {
		ran = true
	})
	sim.Advance(sim.Now())
	require.True(t, ran)
	cancel()
	assert.Empty(t, sim.PendingTimers())
}

func TestTimerInPastPanics(t *testing.T) {
	sim := MakeSimControllerSeeded(3, model.TimeZero.Add(time.Second))
	assert.Panics(t, func() {
		sim.SetTimer(model.TimeZero, "past", func() {})
	})
}

func TestRunUntilIdle(t *testing.T) {
	sim := MakeSimControllerSeeded(4, model.TimeZero)
	count := 0
	var tick func()
	tick = func() {
		count += 1
		if count < 5 {
			sim.SetTimer(sim.Now().Add(time.Second), "tick", tick)
		}
	}
	sim.Later("tick", tick)
	sim.RunUntilIdle(model.TimeZero.Add(time.Hour))
	assert.Equal(t, 5, count)
	assert.Equal(t, model.TimeZero.Add(time.Second*4), sim.Now())
}

func TestDispatcherUnsubscribe(t *testing.T) {
	sim := MakeSimControllerSeeded(5, model.TimeZero)
	ed := MakeEventDispatcher(sim, "test")
	var hits []int
	cancelFirst := ed.Subscribe(func() { hits = append(hits, 1) })
	ed.Subscribe(func() { hits = append(hits, 2) })
	ed.Dispatch()
	cancelFirst()
	cancelFirst()
	ed.DispatchLater()
	ed.DispatchLater()
	assert.Equal(t, []int{1, 2}, hits)
	sim.Advance(sim.Now())
	assert.Equal(t, []int{1, 2, 2}, hits)
	assert.Equal(t, 1, ed.SubscriberCount())
}
