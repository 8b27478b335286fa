package medium

import (
	"sort"
	"time"

	"github.com/celskeggs/streamthrough/sim/component"
	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txmodel"
	"github.com/celskeggs/streamthrough/sim/util"
	"go.uber.org/zap"
)

// Reception is one signal as seen by the receiver. A signal is Aborted when it ends at a different time than
// its own duration predicted. The bit error flag of the unit is carried through as received and does not by
// itself mark an abort.
type Reception struct {
	Unit    *signal.Unit
	Started model.VirtualTime
	Ended   model.VirtualTime
	Updates int
	Aborted bool
}

// Receiver is the far end of the medium. It tracks the symbols of each incoming signal as they are predicted
// to arrive, revising the prediction whenever the transmitter updates the signal, so that the receiving side
// can start forwarding bytes before the signal has ended.
type Receiver struct {
	ctx    model.SimContext
	disp   *component.EventDispatcher
	logger *zap.Logger

	symbols    *SymbolSchedule
	current    *signal.Signal
	origin     model.VirtualTime
	receptions []Reception
}

var _ txmodel.Consumer = &Receiver{}

func MakeReceiver(ctx model.SimContext, name string, logger *zap.Logger) *Receiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Receiver{
		ctx:     ctx,
		disp:    component.MakeEventDispatcher(ctx, name),
		logger:  logger.Named("receiver").With(zap.String("name", name)),
		symbols: MakeSymbolSchedule(ctx),
		origin:  model.TimeNever,
	}
}

// Subscribe to changes in the predicted arrivals
func (r *Receiver) Subscribe(callback func()) (cancel func()) {
	return r.disp.Subscribe(callback)
}

func (r *Receiver) DeliverStart(sig *signal.Signal) {
	if r.current != nil {
		panic("signal started while another is still arriving")
	}
	now := r.ctx.Now()
	if r.symbols.LastEndTime().After(now) {
		// the previous signal was timed by a fast clock; whatever of it is still in flight is overridden
		r.logger.Warn("signal started before the previous one finished arriving",
			zap.Stringer("at", now), zap.Stringer("previous_end", r.symbols.LastEndTime()))
		r.symbols.Cut(now)
	}
	r.current = sig
	r.origin = now
	r.receptions = append(r.receptions, Reception{
		Unit:    sig.Unit,
		Started: now,
		Ended:   model.TimeNever,
	})
	r.symbols.Fill(now, sig.Datarate, sig.Symbols, 0, sig.Length)
	r.logger.Debug("signal started", zap.Stringer("at", now), zap.Stringer("unit", sig.Unit))
	r.disp.DispatchLater()
}

// firstUnstarted is the index of the first symbol of the current signal that has not started arriving.
func (r *Receiver) firstUnstarted(sig *signal.Signal) int {
	now := r.ctx.Now()
	return sort.Search(len(sig.Symbols), func(i int) bool {
		return r.origin.Add(sig.Datarate.Duration(signal.Bits(i * util.BitsPerByte))).AtOrAfter(now)
	})
}

func (r *Receiver) DeliverProgress(sig *signal.Signal, position signal.Bits, elapsed time.Duration) {
	if r.current == nil {
		panic("signal progressed while none is arriving")
	}
	now := r.ctx.Now()
	if origin := now.Add(-elapsed); origin != r.origin {
		panic("progressed signal does not line up with its start")
	}
	// symbols that have started arriving keep their timing; the rest are replaced
	skip := r.firstUnstarted(sig)
	r.symbols.Revise(r.origin, sig.Symbols)
	r.symbols.Clear(now)
	r.symbols.Fill(r.origin, sig.Datarate, sig.Symbols, skip, sig.Length)
	r.current = sig
	reception := &r.receptions[len(r.receptions)-1]
	reception.Unit = sig.Unit
	reception.Updates++
	r.logger.Debug("signal progressed",
		zap.Stringer("at", now), zap.Stringer("unit", sig.Unit),
		zap.Stringer("position", position), zap.Int("kept_symbols", skip))
	r.disp.DispatchLater()
}

func (r *Receiver) DeliverEnd(sig *signal.Signal) {
	if r.current == nil {
		panic("signal ended while none is arriving")
	}
	now := r.ctx.Now()
	reception := &r.receptions[len(r.receptions)-1]
	reception.Unit = sig.Unit
	reception.Ended = now
	r.symbols.Revise(r.origin, sig.Symbols)
	if sig.Duration != r.current.Duration {
		reception.Aborted = true
		r.symbols.Cut(now)
	}
	r.current = nil
	r.origin = model.TimeNever
	r.logger.Debug("signal ended",
		zap.Stringer("at", now), zap.Stringer("unit", sig.Unit), zap.Bool("aborted", reception.Aborted))
	r.disp.DispatchLater()
}

func (r *Receiver) Receptions() []Reception {
	return r.receptions
}

// Arriving reports whether a signal is currently being received.
func (r *Receiver) Arriving() bool {
	return r.current != nil
}

// PullBytesAvailable takes every symbol byte that has fully arrived. Bytes taken while a signal is still arriving
// carry the content known as of the latest delivery; they are never revised afterwards.
func (r *Receiver) PullBytesAvailable() []byte {
	return r.symbols.Receive(r.ctx.Now())
}

// CountBytesRemaining is the number of symbol bytes not yet pulled, and when the last of them will have arrived.
func (r *Receiver) CountBytesRemaining() (count int, lastEndTime model.VirtualTime) {
	return r.symbols.Len(), r.symbols.LastEndTime()
}

func (r *Receiver) PeekAllBytes() []byte {
	return r.symbols.PeekAll()
}
