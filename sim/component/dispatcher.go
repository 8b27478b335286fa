package component

import (
	"fmt"
	"sort"

	"github.com/celskeggs/streamthrough/sim/model"
)

// EventDispatcher fans an edge notification ("something changed, look again") out to its subscribers, in
// subscription order.
type EventDispatcher struct {
	ctx          model.SimContext
	laterName    string
	subscribers  map[uint64]func()
	sorted       []func()
	nextIndex    uint64
	pendingLater bool
}

var _ model.EventSource = &EventDispatcher{}

func MakeEventDispatcher(ctx model.SimContext, name string) *EventDispatcher {
	return &EventDispatcher{
		ctx:         ctx,
		laterName:   fmt.Sprintf("%s/DispatchLater", name),
		subscribers: map[uint64]func(){},
		sorted:      nil,
		nextIndex:   0,
	}
}

func (ed *EventDispatcher) rebuildSorted() {
	var ints []uint64
	for k := range ed.subscribers {
		ints = append(ints, k)
	}
	sort.Slice(ints, func(i, j int) bool {
		return ints[i] < ints[j]
	})
	ed.sorted = make([]func(), len(ints))
	for i, k := range ints {
		ed.sorted[i] = ed.subscribers[k]
	}
}

func (ed *EventDispatcher) Subscribe(callback func()) (cancel func()) {
	index := ed.nextIndex
	ed.subscribers[index] = callback
	ed.rebuildSorted()
	ed.nextIndex += 1
	return func() {
		if _, ok := ed.subscribers[index]; ok {
			delete(ed.subscribers, index)
			ed.rebuildSorted()
		}
	}
}

func (ed *EventDispatcher) SubscriberCount() int {
	return len(ed.subscribers)
}

// Dispatch notifies every subscriber immediately.
func (ed *EventDispatcher) Dispatch() {
	for _, f := range ed.sorted {
		f()
	}
}

// DispatchLater notifies every subscriber from a fresh timer at the current time. Repeated calls before the
// notification runs are coalesced.
func (ed *EventDispatcher) DispatchLater() {
	if !ed.pendingLater {
		ed.pendingLater = true
		ed.ctx.Later(ed.laterName, func() {
			ed.pendingLater = false
			ed.Dispatch()
		})
	}
}
