package transmitter

import (
	"fmt"
	"math"

	"github.com/celskeggs/streamthrough/sim/component"
	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txmodel"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Name     string
	Datarate signal.Datarate
}

func (c Config) Validate() error {
	var result *multierror.Error
	if c.Name == "" {
		result = multierror.Append(result, errors.New("transmitter name must not be empty"))
	}
	if !c.Datarate.Valid() {
		result = multierror.Append(result, errors.Errorf("transmitter datarate %v must be positive and finite", c.Datarate))
	}
	return result.ErrorOrNil()
}

// Transmitter sends each unit downstream while the unit is still arriving from upstream. The outgoing signal
// starts as soon as the first bits are pushed, is updated whenever the content changes, and ends on the local
// clock once its full duration has been sent.
type Transmitter struct {
	*component.EventDispatcher

	ctx       model.SimContext
	clock     model.Clock
	config    Config
	encoder   signal.Encoder
	consumer  txmodel.Consumer
	producer  txmodel.Producer
	observers []txmodel.Observer
	logger    *zap.Logger

	record txRecord

	endAt          model.ClockTime
	cancelEnd      func()
	underrunAt     model.VirtualTime
	cancelUnderrun func()
}

var _ txmodel.Pusher = &Transmitter{}

func (c Config) Construct(ctx model.SimContext, clock model.Clock, encoder signal.Encoder, consumer txmodel.Consumer, logger *zap.Logger) (*Transmitter, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid transmitter configuration")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if consumer == nil {
		consumer = txmodel.NullConsumer{}
	}
	return &Transmitter{
		EventDispatcher: component.MakeEventDispatcher(ctx, c.Name),
		ctx:             ctx,
		clock:           clock,
		config:          c,
		encoder:         encoder,
		consumer:        consumer,
		logger:          logger.Named("transmitter").With(zap.String("name", c.Name)),
		record:          idleRecord(),
		endAt:           model.ClockNever,
		underrunAt:      model.TimeNever,
	}, nil
}

func (t *Transmitter) Name() string {
	return t.config.Name
}

func (t *Transmitter) Datarate() signal.Datarate {
	return t.config.Datarate
}

// SetProducer attaches the upstream module that is told when each unit has been processed.
func (t *Transmitter) SetProducer(producer txmodel.Producer) {
	t.producer = producer
}

func (t *Transmitter) AddObserver(observer txmodel.Observer) {
	t.observers = append(t.observers, observer)
}

func (t *Transmitter) IsTransmitting() bool {
	return t.record.active()
}

func (t *Transmitter) CanPush() bool {
	return !t.IsTransmitting()
}

// Status is a snapshot of the transmission in progress.
type Status struct {
	Transmitting   bool
	Signal         *signal.Signal
	Datarate       signal.Datarate
	StartTime      model.VirtualTime
	StartClockTime model.ClockTime
	OutputPosition signal.Bits
	InputPosition  signal.Bits
	InputDatarate  signal.Datarate
	InputComplete  bool
	// EndAt and UnderrunAt are the pending events, if any.
	EndAt      model.ClockTime
	UnderrunAt model.VirtualTime
}

func (t *Transmitter) Status() Status {
	return Status{
		Transmitting:   t.IsTransmitting(),
		Signal:         t.record.signal,
		Datarate:       t.record.datarate,
		StartTime:      t.record.startTime,
		StartClockTime: t.record.startClockTime,
		OutputPosition: t.record.lastOutputPosition,
		InputPosition:  t.record.lastInputPosition,
		InputDatarate:  t.record.lastInputDatarate,
		InputComplete:  t.record.inputComplete,
		EndAt:          t.endAt,
		UnderrunAt:     t.underrunAt,
	}
}

func (t *Transmitter) String() string {
	if !t.IsTransmitting() {
		return fmt.Sprintf("%s[idle]", t.config.Name)
	}
	return fmt.Sprintf("%s[sending %v since %v]", t.config.Name, t.record.signal.Unit, t.record.startTime)
}

func (t *Transmitter) checkPush(unit *signal.Unit, datarate signal.Datarate, position signal.Bits) {
	if unit == nil {
		t.violation("nil unit pushed")
	}
	if !datarate.Valid() {
		t.violation("input datarate %v for %v must be positive and finite", datarate, unit)
	}
	if position < 0 || position > unit.Length {
		t.violation("input position %v outside of %v unit %v", position, unit.Length, unit)
	}
}

func (t *Transmitter) PushStart(unit *signal.Unit, datarate signal.Datarate) {
	t.PushStartAt(unit, datarate, 0)
}

// PushStartAt starts transmitting a unit of which the first position bits have already arrived.
func (t *Transmitter) PushStartAt(unit *signal.Unit, datarate signal.Datarate, position signal.Bits) {
	t.checkPush(unit, datarate, position)
	if t.IsTransmitting() {
		t.violation("cannot start %v while still sending %v", unit, t.record.signal.Unit)
	}
	t.startTx(unit, datarate, position)
}

func (t *Transmitter) PushProgress(unit *signal.Unit, datarate signal.Datarate, position signal.Bits) {
	t.checkPush(unit, datarate, position)
	t.checkInProgress(unit)
	t.progressTx(unit, datarate, position, false)
}

// PushEnd reports that the whole unit has arrived. The transmission itself continues until its end event.
func (t *Transmitter) PushEnd(unit *signal.Unit) {
	if unit == nil {
		t.violation("nil unit pushed")
	}
	t.checkInProgress(unit)
	t.progressTx(unit, signal.Datarate(math.NaN()), unit.Length, true)
}

func (t *Transmitter) checkInProgress(unit *signal.Unit) {
	if !t.IsTransmitting() {
		t.violation("progress on %v while idle", unit)
	}
	if unit.ID != t.record.signal.Unit.ID {
		t.violation("progress on %v while sending %v", unit, t.record.signal.Unit)
	}
	if t.record.inputComplete {
		t.violation("progress on %v after its end was pushed", unit)
	}
}

func (t *Transmitter) startTx(unit *signal.Unit, datarate signal.Datarate, position signal.Bits) {
	now := t.ctx.Now()
	t.record = txRecord{
		datarate:           t.config.Datarate,
		startTime:          now,
		startClockTime:     t.clock.ClockNow(),
		lastOutputTime:     now,
		lastOutputPosition: 0,
		lastInputDatarate:  datarate,
		lastInputTime:      now,
		lastInputPosition:  position,
		inputComplete:      false,
	}
	sig := t.encoder.Encode(unit, t.record.datarate)
	t.record.signal = sig
	t.logger.Info("starting transmission",
		zap.Stringer("at", now),
		zap.Stringer("clock", t.record.startClockTime),
		zap.Stringer("unit", unit),
		zap.Stringer("input_datarate", datarate),
		zap.Stringer("input_position", position),
		zap.Duration("duration", sig.Duration))
	for _, observer := range t.observers {
		observer.TransmissionStarted(sig)
	}
	t.consumer.DeliverStart(sig)
	t.scheduleTxEndTimer()
	t.scheduleBufferUnderrunTimer()
}

func (t *Transmitter) progressTx(unit *signal.Unit, datarate signal.Datarate, position signal.Bits, complete bool) {
	now := t.ctx.Now()
	current := t.record.signal.Unit

	outputPosition := signal.Bits(math.Floor(t.record.outputPositionAt(now)))
	if outputPosition < t.record.lastOutputPosition {
		outputPosition = t.record.lastOutputPosition
	}
	unchanged := position == unit.Length && unit.Length == current.Length && signal.SameData(unit, current)
	sent := outputPosition
	if sent > current.Length {
		sent = current.Length
	}
	if !unchanged && unit.Length < sent {
		t.violation("%v is shorter than the %v already sent", unit, sent)
	}
	if outputPosition > unit.Length {
		outputPosition = unit.Length
	}
	t.record.lastOutputTime = now
	t.record.lastOutputPosition = outputPosition

	if unchanged {
		t.logger.Debug("content unchanged; nothing to update",
			zap.Stringer("at", now), zap.Stringer("unit", unit))
	} else {
		sig := t.encoder.Encode(unit, t.record.datarate)
		t.record.signal = sig
		elapsed := now.Since(t.record.startTime)
		t.logger.Info("progressing transmission",
			zap.Stringer("at", now),
			zap.Stringer("unit", unit),
			zap.Stringer("output_position", outputPosition),
			zap.Duration("elapsed", elapsed),
			zap.Duration("duration", sig.Duration))
		t.consumer.DeliverProgress(sig, outputPosition, elapsed)
	}

	t.record.inputComplete = complete
	t.record.lastInputDatarate = datarate
	t.record.lastInputTime = now
	t.record.lastInputPosition = position

	t.scheduleTxEndTimer()
	t.scheduleBufferUnderrunTimer()
}
