package medium

import (
	"sort"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/util"
)

type ScheduleItem struct {
	StartTime model.VirtualTime
	EndTime   model.VirtualTime
	// Index is the position of the symbol within its signal.
	Index int
	Byte  byte
}

// SymbolSchedule is the predicted timeline of symbol bytes arriving over a medium. Each item is a
// (start-time, end-time, byte) tuple. The timing of an item is not final until sim.Now() has passed its start
// time, so the not-yet-started suffix of the timeline may be rewritten while a signal is still being updated.
// The value of an item may be revised until it is received.
//
// Contract:
//  1. New items can only be added with start-times no earlier than sim.Now().
//  2. Items with start-times no earlier than sim.Now() may be deleted.
//  3. Items never overlap, though end-time[n] = start-time[n+1] does not qualify as an overlap.
//  4. Changes only ever affect a suffix of the timeline.
//  5. The recipient may take prefixes with end times no later than sim.Now().
type SymbolSchedule struct {
	ctx model.SimContext

	schedule []ScheduleItem
}

func MakeSymbolSchedule(ctx model.SimContext) *SymbolSchedule {
	return &SymbolSchedule{
		ctx:      ctx,
		schedule: nil,
	}
}

// Fill appends symbols[offset:] of a signal that began at origin and runs at datarate. Symbol i occupies
// the bit interval [8i, 8(i+1)) measured from origin, cut off at totalBits, so times never accumulate rounding
// error however often a signal is refilled.
func (ss *SymbolSchedule) Fill(origin model.VirtualTime, datarate signal.Datarate, symbols []byte, offset int, totalBits signal.Bits) {
	timeOf := func(bit signal.Bits) model.VirtualTime {
		if bit > totalBits {
			bit = totalBits
		}
		return origin.Add(datarate.Duration(bit))
	}
	for i := offset; i < len(symbols); i++ {
		item := ScheduleItem{
			StartTime: timeOf(signal.Bits(i * util.BitsPerByte)),
			EndTime:   timeOf(signal.Bits((i + 1) * util.BitsPerByte)),
			Index:     i,
			Byte:      symbols[i],
		}
		if item.StartTime.Before(ss.ctx.Now()) {
			panic("cannot fill symbols starting before Now")
		}
		if !item.EndTime.After(item.StartTime) {
			panic("symbol must take time to arrive")
		}
		if len(ss.schedule) > 0 && item.StartTime.Before(ss.schedule[len(ss.schedule)-1].EndTime) {
			panic("cannot fill symbols overlapping existing items")
		}
		ss.schedule = append(ss.schedule, item)
	}
}

// Clear deletes every item with a start time at or after startTime, which must not be in the past.
func (ss *SymbolSchedule) Clear(startTime model.VirtualTime) {
	if startTime.Before(ss.ctx.Now()) {
		panic("cannot clear symbols before Now")
	}
	firstIdx := sort.Search(len(ss.schedule), func(i int) bool {
		return ss.schedule[i].StartTime.AtOrAfter(startTime)
	})
	ss.schedule = ss.schedule[:firstIdx]
}

// Cut deletes every item that would still be arriving after endTime, including one that is partway through
// arriving. This is what happens to a signal that stops abruptly.
func (ss *SymbolSchedule) Cut(endTime model.VirtualTime) {
	if endTime.Before(ss.ctx.Now()) {
		panic("cannot cut symbols before Now")
	}
	firstIdx := sort.Search(len(ss.schedule), func(i int) bool {
		return ss.schedule[i].EndTime.After(endTime)
	})
	ss.schedule = ss.schedule[:firstIdx]
}

// Revise replaces the value of every item of the signal that began at origin with the matching symbol.
func (ss *SymbolSchedule) Revise(origin model.VirtualTime, symbols []byte) {
	firstIdx := sort.Search(len(ss.schedule), func(i int) bool {
		return ss.schedule[i].StartTime.AtOrAfter(origin)
	})
	for i := firstIdx; i < len(ss.schedule); i++ {
		if index := ss.schedule[i].Index; index < len(symbols) {
			ss.schedule[i].Byte = symbols[index]
		}
	}
}

// Receive takes the prefix of items that have fully arrived by endTime.
func (ss *SymbolSchedule) Receive(endTime model.VirtualTime) []byte {
	if endTime.After(ss.ctx.Now()) {
		panic("cannot receive symbols after Now")
	}
	firstIdx := sort.Search(len(ss.schedule), func(i int) bool {
		return ss.schedule[i].EndTime.After(endTime)
	})
	output := make([]byte, firstIdx)
	for i := 0; i < firstIdx; i++ {
		output[i] = ss.schedule[i].Byte
	}
	ss.schedule = ss.schedule[firstIdx:]
	return output
}

// LastEndTime is the time at which the final scheduled item finishes arriving, or the current time, whichever
// is later.
func (ss *SymbolSchedule) LastEndTime() model.VirtualTime {
	if len(ss.schedule) == 0 {
		return ss.ctx.Now()
	}
	return model.Latest(ss.schedule[len(ss.schedule)-1].EndTime, ss.ctx.Now())
}

func (ss *SymbolSchedule) Len() int {
	return len(ss.schedule)
}

// PeekAll returns every scheduled byte, including those that are only predicted.
func (ss *SymbolSchedule) PeekAll() []byte {
	output := make([]byte, len(ss.schedule))
	for i, item := range ss.schedule {
		output[i] = item.Byte
	}
	return output
}

func (ss *SymbolSchedule) Item(nth int) ScheduleItem {
	return ss.schedule[nth]
}
