package component

import (
	"container/heap"
	"math/rand"
	"sort"
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
)

type simTimer struct {
	expireAt model.VirtualTime
	seq      uint64
	name     string
	callback func()
	index    int
}

type timerQueue []*simTimer

func (tq timerQueue) Len() int {
	return len(tq)
}

func (tq timerQueue) Less(i, j int) bool {
	if tq[i].expireAt != tq[j].expireAt {
		return tq[i].expireAt.Before(tq[j].expireAt)
	}
	// timers due at the same instant run in the order they were set
	return tq[i].seq < tq[j].seq
}

func (tq timerQueue) Swap(i, j int) {
	tq[i], tq[j] = tq[j], tq[i]
	tq[i].index = i
	tq[j].index = j
}

func (tq *timerQueue) Push(x interface{}) {
	timer := x.(*simTimer)
	timer.index = len(*tq)
	*tq = append(*tq, timer)
}

func (tq *timerQueue) Pop() interface{} {
	tqa := *tq
	timer := tqa[len(tqa)-1]
	timer.index = -1
	*tq = tqa[0 : len(tqa)-1]
	return timer
}

// SimController is the discrete-event scheduler that drives every model in a simulation. It is not safe for
// concurrent use; all callbacks run on the goroutine that calls Advance.
type SimController struct {
	currentTime model.VirtualTime
	rand        *rand.Rand
	nextSeq     uint64

	timers timerQueue
}

var _ model.SimContext = &SimController{}

func (sc *SimController) Now() model.VirtualTime {
	return sc.currentTime
}

func (sc *SimController) SetTimer(expireAt model.VirtualTime, name string, callback func()) (cancel func()) {
	if !expireAt.TimeExists() {
		panic("attempt to set timer at nonexistent time")
	}
	if expireAt.Before(sc.currentTime) {
		panic("attempt to set timer " + name + " in the past")
	}
	timer := &simTimer{
		expireAt: expireAt,
		seq:      sc.nextSeq,
		name:     name,
		callback: callback,
		index:    -1,
	}
	sc.nextSeq += 1
	heap.Push(&sc.timers, timer)
	if timer.index == -1 {
		panic("should have a real index now")
	}
	return func() {
		if timer.index != -1 {
			heap.Remove(&sc.timers, timer.index)
			if timer.index != -1 {
				panic("should have been removed!")
			}
		}
	}
}

func (sc *SimController) Later(name string, callback func()) (cancel func()) {
	// will cause it to be executed in Advance
	return sc.SetTimer(sc.Now(), name, callback)
}

func (sc *SimController) Rand() *rand.Rand {
	return sc.rand
}

// PendingTimers lists the names of all timers that have not yet fired, in firing order.
func (sc *SimController) PendingTimers() []string {
	pending := append(timerQueue(nil), sc.timers...)
	sort.Slice(pending, pending.Less)
	names := make([]string, len(pending))
	for i, timer := range pending {
		names[i] = timer.name
	}
	return names
}

func (sc *SimController) peekNextTimerExpiry() model.VirtualTime {
	if len(sc.timers) > 0 {
		return sc.timers[0].expireAt
	}
	return model.TimeNever
}

func (sc *SimController) popNextTimer() *simTimer {
	if len(sc.timers) == 0 {
		panic("cannot pop from empty timer list")
	}
	timer := heap.Pop(&sc.timers).(*simTimer)
	if timer.index != -1 {
		panic("invalid timer index")
	}
	return timer
}

func (sc *SimController) runCurrentTimers() {
	// this loop will keep rerunning as long as we have timers to process at or before the current time
	for len(sc.timers) > 0 && sc.peekNextTimerExpiry().AtOrBefore(sc.Now()) {
		nextTimer := sc.popNextTimer()
		if nextTimer.expireAt.After(sc.Now()) {
			panic("invalid expiration time for timer")
		}
		nextTimer.callback()
	}
}

// Advance moves forward to the time of each timer at or before advanceTo and executes it, repeating until
// advanceTo is reached and nothing remains to be executed at or before that time.
func (sc *SimController) Advance(advanceTo model.VirtualTime) (nextTimer model.VirtualTime) {
	sc.runCurrentTimers()
	for sc.Now().Before(advanceTo) {
		// move to the next timer, or the specified time, whichever is sooner
		timeStepTo := sc.peekNextTimerExpiry()
		if timeStepTo.TimeExists() && timeStepTo.AtOrBefore(advanceTo) {
			sc.currentTime = timeStepTo
		} else {
			sc.currentTime = advanceTo
		}

		sc.runCurrentTimers()
	}

	return sc.peekNextTimerExpiry()
}

// RunUntilIdle keeps advancing from timer to timer until no timers remain or the next one would fire after
// limit. Time is left at the last timer that ran.
func (sc *SimController) RunUntilIdle(limit model.VirtualTime) {
	for {
		next := sc.Advance(sc.Now())
		if !next.TimeExists() || next.After(limit) {
			return
		}
		sc.Advance(next)
	}
}

func MakeSimControllerRandomized(startAt model.VirtualTime) *SimController {
	return MakeSimControllerSeeded(time.Now().UnixNano(), startAt)
}

func MakeSimControllerSeeded(seed int64, startAt model.VirtualTime) *SimController {
	if !startAt.TimeExists() {
		panic("simulation must start at a real time")
	}
	return &SimController{
		currentTime: startAt,
		rand:        rand.New(rand.NewSource(seed)),
	}
}
