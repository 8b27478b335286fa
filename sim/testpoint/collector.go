package testpoint

import (
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txmodel"
)

type DeliveryKind int

const (
	DeliveredStart DeliveryKind = iota
	DeliveredProgress
	DeliveredEnd
)

func (k DeliveryKind) String() string {
	switch k {
	case DeliveredStart:
		return "start"
	case DeliveredProgress:
		return "progress"
	case DeliveredEnd:
		return "end"
	default:
		panic("invalid delivery kind")
	}
}

type Delivery struct {
	Kind     DeliveryKind
	At       model.VirtualTime
	Signal   *signal.Signal
	Position signal.Bits
	Elapsed  time.Duration
}

// Collector is a consumer that records every delivery it receives, for later inspection.
type Collector struct {
	ctx       model.SimContext
	Collected []Delivery
}

var _ txmodel.Consumer = &Collector{}

func MakeCollector(ctx model.SimContext) *Collector {
	return &Collector{ctx: ctx}
}

func (c *Collector) DeliverStart(sig *signal.Signal) {
	c.Collected = append(c.Collected, Delivery{Kind: DeliveredStart, At: c.ctx.Now(), Signal: sig})
}

func (c *Collector) DeliverProgress(sig *signal.Signal, position signal.Bits, elapsed time.Duration) {
	c.Collected = append(c.Collected, Delivery{
		Kind:     DeliveredProgress,
		At:       c.ctx.Now(),
		Signal:   sig,
		Position: position,
		Elapsed:  elapsed,
	})
}

func (c *Collector) DeliverEnd(sig *signal.Signal) {
	c.Collected = append(c.Collected, Delivery{Kind: DeliveredEnd, At: c.ctx.Now(), Signal: sig})
}

func (c *Collector) Count(kind DeliveryKind) int {
	count := 0
	for _, d := range c.Collected {
		if d.Kind == kind {
			count++
		}
	}
	return count
}

// Last returns the most recent delivery of the given kind, or nil if there was none.
func (c *Collector) Last(kind DeliveryKind) *Delivery {
	for i := len(c.Collected) - 1; i >= 0; i-- {
		if c.Collected[i].Kind == kind {
			return &c.Collected[i]
		}
	}
	return nil
}

func (c *Collector) Take() []Delivery {
	out := c.Collected
	c.Collected = nil
	return out
}

type Processed struct {
	At         model.VirtualTime
	Unit       *signal.Unit
	Successful bool
}

// ProducerProbe stands in for the upstream module and records what the transmitter tells it.
type ProducerProbe struct {
	ctx            model.SimContext
	Processed      []Processed
	CanPushChanges int
	// OnCanPush, if set, runs on every CanPushChanged notification.
	OnCanPush func()
}

var _ txmodel.Producer = &ProducerProbe{}

func MakeProducerProbe(ctx model.SimContext) *ProducerProbe {
	return &ProducerProbe{ctx: ctx}
}

func (p *ProducerProbe) PushProcessed(unit *signal.Unit, successful bool) {
	p.Processed = append(p.Processed, Processed{At: p.ctx.Now(), Unit: unit, Successful: successful})
}

func (p *ProducerProbe) CanPushChanged() {
	p.CanPushChanges++
	if p.OnCanPush != nil {
		p.OnCanPush()
	}
}

// ObserverProbe records the notifications sent to transmission observers.
type ObserverProbe struct {
	Started []*signal.Signal
	Ended   []*signal.Signal
}

var _ txmodel.Observer = &ObserverProbe{}

func (o *ObserverProbe) TransmissionStarted(sig *signal.Signal) {
	o.Started = append(o.Started, sig)
}

func (o *ObserverProbe) TransmissionEnded(sig *signal.Signal) {
	o.Ended = append(o.Ended, sig)
}
