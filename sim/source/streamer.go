package source

import (
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txmodel"
	"github.com/celskeggs/streamthrough/sim/util"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Name      string
	InputRate signal.Datarate
	// LeadBits is how much of a unit must have arrived before it is pushed at all.
	LeadBits signal.Bits
	Interval time.Duration
	// SlowdownAt, if nonzero, is how long after a unit starts arriving that its arrival slows to SlowdownRate.
	SlowdownAt   time.Duration
	SlowdownRate signal.Datarate
}

func (c Config) Validate() error {
	var result *multierror.Error
	if c.Name == "" {
		result = multierror.Append(result, errors.New("source name must not be empty"))
	}
	if !c.InputRate.Valid() {
		result = multierror.Append(result, errors.Errorf("input rate %v must be positive and finite", c.InputRate))
	}
	if c.LeadBits < 0 {
		result = multierror.Append(result, errors.Errorf("lead of %v must not be negative", c.LeadBits))
	}
	if c.Interval <= 0 {
		result = multierror.Append(result, errors.Errorf("progress interval %v must be positive", c.Interval))
	}
	if c.SlowdownAt < 0 {
		result = multierror.Append(result, errors.Errorf("slowdown time %v must not be negative", c.SlowdownAt))
	}
	if c.SlowdownAt > 0 && !c.SlowdownRate.Valid() {
		result = multierror.Append(result, errors.Errorf("slowdown rate %v must be positive and finite", c.SlowdownRate))
	}
	return result.ErrorOrNil()
}

type Completion struct {
	Unit       *signal.Unit
	Processed  model.VirtualTime
	Successful bool
	// Cut is set when the transmitter finished with the unit before all of it had arrived.
	Cut bool
}

// Streamer feeds a queue of units to a transmitter as though each one were arriving over an input link,
// pushing whatever has arrived so far at regular intervals.
type Streamer struct {
	ctx    model.SimContext
	config Config
	pusher txmodel.Pusher
	logger *zap.Logger

	queue        []*signal.Unit
	current      *signal.Unit
	arrivalStart model.VirtualTime
	pushed       bool
	complete     bool
	cancelTimer  func()
	completions  []Completion
}

var _ txmodel.Producer = &Streamer{}

func (c Config) Construct(ctx model.SimContext, pusher txmodel.Pusher, logger *zap.Logger) (*Streamer, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid source configuration")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Streamer{
		ctx:          ctx,
		config:       c,
		pusher:       pusher,
		logger:       logger.Named("source").With(zap.String("name", c.Name)),
		arrivalStart: model.TimeNever,
	}, nil
}

// Enqueue adds units to be sent after any already queued.
func (s *Streamer) Enqueue(units ...*signal.Unit) {
	s.queue = append(s.queue, units...)
	s.tryBegin()
}

func (s *Streamer) Idle() bool {
	return s.current == nil && len(s.queue) == 0
}

func (s *Streamer) Completions() []Completion {
	return s.completions
}

func (s *Streamer) tryBegin() {
	if s.current != nil || len(s.queue) == 0 || !s.pusher.CanPush() {
		return
	}
	s.current, s.queue = s.queue[0], s.queue[1:]
	s.arrivalStart = s.ctx.Now()
	s.pushed, s.complete = false, false
	s.logger.Debug("unit begins arriving", zap.Stringer("at", s.arrivalStart), zap.Stringer("unit", s.current))
	lead := s.config.LeadBits
	if lead > s.current.Length {
		lead = s.current.Length
	}
	s.setTimer(s.arrivalTime(lead))
}

func (s *Streamer) setTimer(at model.VirtualTime) {
	if s.cancelTimer != nil {
		s.cancelTimer()
	}
	s.cancelTimer = s.ctx.SetTimer(at, s.config.Name+"/Push", func() {
		s.cancelTimer = nil
		s.push()
	})
}

func (s *Streamer) slowdownTime() model.VirtualTime {
	if s.config.SlowdownAt == 0 {
		return model.TimeNever
	}
	return s.arrivalStart.Add(s.config.SlowdownAt)
}

func (s *Streamer) rateAt(t model.VirtualTime) signal.Datarate {
	if slowdown := s.slowdownTime(); slowdown.TimeExists() && t.AtOrAfter(slowdown) {
		return s.config.SlowdownRate
	}
	return s.config.InputRate
}

// arrivedAt is how many bits of the current unit have arrived by t.
func (s *Streamer) arrivedAt(t model.VirtualTime) signal.Bits {
	elapsed := t.Since(s.arrivalStart)
	var bits signal.Bits
	if slowdown := s.slowdownTime(); slowdown.TimeExists() && t.After(slowdown) {
		bits = s.config.InputRate.BitsIn(s.config.SlowdownAt) + s.config.SlowdownRate.BitsIn(elapsed-s.config.SlowdownAt)
	} else {
		bits = s.config.InputRate.BitsIn(elapsed)
	}
	if bits > s.current.Length {
		bits = s.current.Length
	}
	return bits
}

// arrivalTime is the earliest time by which the given number of bits of the current unit have arrived.
func (s *Streamer) arrivalTime(bits signal.Bits) model.VirtualTime {
	fast := s.config.InputRate
	var at model.VirtualTime
	if slowdown := s.slowdownTime(); slowdown.TimeExists() && bits > fast.BitsIn(s.config.SlowdownAt) {
		at = slowdown.Add(s.config.SlowdownRate.Duration(bits - fast.BitsIn(s.config.SlowdownAt)))
	} else {
		at = s.arrivalStart.Add(fast.Duration(bits))
	}
	at = model.Latest(at, s.ctx.Now())
	// durations are rounded, so nudge forward until enough has really arrived
	for s.arrivedAt(at) < bits {
		at = at.Add(time.Nanosecond)
	}
	return at
}

// partial is the current unit with only its first bits filled in.
func (s *Streamer) partial(bits signal.Bits) *signal.Unit {
	data := make([]byte, s.current.Length.Bytes())
	copy(data, util.MaskTrailingBits(s.current.Data, int64(bits)))
	return s.current.WithData(data)
}

func (s *Streamer) push() {
	now := s.ctx.Now()
	arrived := s.arrivedAt(now)
	rate := s.rateAt(now)
	if !s.pushed {
		s.pushed = true
		s.logger.Debug("pushing start", zap.Stringer("at", now), zap.Stringer("arrived", arrived))
		s.pusher.PushStartAt(s.partial(arrived), rate, arrived)
	} else if arrived < s.current.Length {
		s.pusher.PushProgress(s.partial(arrived), rate, arrived)
	}
	if arrived >= s.current.Length {
		s.complete = true
		s.logger.Debug("pushing end", zap.Stringer("at", now), zap.Stringer("unit", s.current))
		s.pusher.PushEnd(s.current)
		return
	}
	next := now.Add(s.config.Interval)
	if slowdown := s.slowdownTime(); slowdown.TimeExists() && slowdown.After(now) && slowdown.Before(next) {
		next = slowdown
	}
	if done := s.arrivalTime(s.current.Length); done.Before(next) {
		next = done
	}
	s.setTimer(next)
}

func (s *Streamer) PushProcessed(unit *signal.Unit, successful bool) {
	if s.current == nil || unit.ID != s.current.ID {
		s.logger.Warn("processed unit was not being sent", zap.Stringer("unit", unit))
		return
	}
	cut := !s.complete
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
	s.completions = append(s.completions, Completion{
		Unit:       unit,
		Processed:  s.ctx.Now(),
		Successful: successful,
		Cut:        cut,
	})
	s.logger.Info("unit processed",
		zap.Stringer("at", s.ctx.Now()), zap.Stringer("unit", unit),
		zap.Bool("successful", successful), zap.Bool("cut", cut))
	s.current = nil
	s.arrivalStart = model.TimeNever
}

func (s *Streamer) CanPushChanged() {
	s.tryBegin()
}
