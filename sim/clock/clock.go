package clock

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
)

type clockTimer struct {
	expireAt model.ClockTime
	name     string
	callback func()
	cancel   func()
}

// Drifting is a local clock that runs at a constant rate relative to virtual time, expressed as a drift in
// parts per million. The rate may be changed while timers are pending; they are rescheduled so that they
// still fire when the clock reaches their expiry.
type Drifting struct {
	ctx       model.SimContext
	name      string
	driftPPM  float64
	baseTime  model.VirtualTime
	baseClock model.ClockTime
	timers    map[uint64]*clockTimer
	nextID    uint64
}

var _ model.Clock = &Drifting{}

func rateFor(driftPPM float64) float64 {
	rate := 1 + driftPPM*1e-6
	if !(rate > 0) || math.IsInf(rate, 0) {
		panic(fmt.Sprintf("invalid clock drift: %v ppm", driftPPM))
	}
	return rate
}

func MakeDrifting(ctx model.SimContext, name string, initial model.ClockTime, driftPPM float64) *Drifting {
	if !initial.TimeExists() {
		panic("clock must start at a real time")
	}
	rateFor(driftPPM)
	return &Drifting{
		ctx:       ctx,
		name:      name,
		driftPPM:  driftPPM,
		baseTime:  ctx.Now(),
		baseClock: initial,
		timers:    map[uint64]*clockTimer{},
	}
}

// MakeIdeal builds a clock that reads exactly the virtual time.
func MakeIdeal(ctx model.SimContext, name string) *Drifting {
	return MakeDrifting(ctx, name, model.ClockTime(ctx.Now()), 0)
}

func (d *Drifting) DriftPPM() float64 {
	return d.driftPPM
}

func (d *Drifting) clockAt(vt model.VirtualTime) model.ClockTime {
	elapsed := vt.Since(d.baseTime)
	if d.driftPPM == 0 {
		return d.baseClock.Add(elapsed)
	}
	return d.baseClock.Add(time.Duration(math.Floor(float64(elapsed) * rateFor(d.driftPPM))))
}

func (d *Drifting) ClockNow() model.ClockTime {
	return d.clockAt(d.ctx.Now())
}

// virtualTimeFor finds the earliest virtual time, no earlier than now, at which the clock reads at least c.
func (d *Drifting) virtualTimeFor(c model.ClockTime) model.VirtualTime {
	now := d.ctx.Now()
	if !d.clockAt(now).Before(c) {
		return now
	}
	delta := c.Since(d.baseClock)
	vt := d.baseTime.Add(time.Duration(math.Ceil(float64(delta) / rateFor(d.driftPPM))))
	// floating point can leave us a nanosecond off in either direction
	for d.clockAt(vt).Before(c) {
		vt = vt.Add(time.Nanosecond)
	}
	for vt.After(now) && !d.clockAt(vt.Add(-time.Nanosecond)).Before(c) {
		vt = vt.Add(-time.Nanosecond)
	}
	return vt
}

func (d *Drifting) arm(id uint64, timer *clockTimer) {
	timer.cancel = d.ctx.SetTimer(d.virtualTimeFor(timer.expireAt), timer.name, func() {
		delete(d.timers, id)
		timer.callback()
	})
}

func (d *Drifting) SetClockTimer(expireAt model.ClockTime, name string, callback func()) (cancel func()) {
	if !expireAt.TimeExists() {
		panic("attempt to set clock timer at nonexistent time")
	}
	id := d.nextID
	d.nextID += 1
	timer := &clockTimer{
		expireAt: expireAt,
		name:     name,
		callback: callback,
	}
	d.timers[id] = timer
	d.arm(id, timer)
	return func() {
		if _, ok := d.timers[id]; ok {
			timer.cancel()
			delete(d.timers, id)
		}
	}
}

// SetDrift changes the clock rate from this instant on. The clock reading itself does not jump.
func (d *Drifting) SetDrift(driftPPM float64) {
	rateFor(driftPPM)
	d.baseClock = d.ClockNow()
	d.baseTime = d.ctx.Now()
	d.driftPPM = driftPPM

	ids := make([]uint64, 0, len(d.timers))
	for id := range d.timers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		timer := d.timers[id]
		timer.cancel()
		d.arm(id, timer)
	}
}

func (d *Drifting) String() string {
	return fmt.Sprintf("%s(%+.3fppm)", d.name, d.driftPPM)
}
