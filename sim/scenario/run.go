package scenario

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/celskeggs/streamthrough/sim/clock"
	"github.com/celskeggs/streamthrough/sim/component"
	"github.com/celskeggs/streamthrough/sim/medium"
	"github.com/celskeggs/streamthrough/sim/metrics"
	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/source"
	"github.com/celskeggs/streamthrough/sim/testpoint"
	"github.com/celskeggs/streamthrough/sim/transmitter"
	"github.com/celskeggs/streamthrough/sim/txlink"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Options struct {
	Logger *zap.Logger
	// Recording, if set, receives a CSV recording of every transmission event.
	Recording io.Writer
	// Registerer, if set, receives the transmitter's metrics.
	Registerer prometheus.Registerer
}

type Result struct {
	Name        string
	EndTime     model.VirtualTime
	Receptions  []medium.Reception
	Completions []source.Completion
	// Received is every symbol byte that arrived at the far end of the medium.
	Received []byte
	Underrun *transmitter.BufferUnderrunError
}

// GenerateUnits builds the scenario's units. Their content is drawn from the scenario's seed, so it is the same
// on every run.
func (s *Spec) GenerateUnits() []*signal.Unit {
	r := rand.New(rand.NewSource(s.Seed))
	var units []*signal.Unit
	for _, u := range s.Units {
		for i := 0; i < u.Count; i++ {
			name := u.Name
			if u.Count > 1 {
				name = fmt.Sprintf("%s-%d", u.Name, i)
			}
			units = append(units, signal.MakeUnitBits(signal.NewID(r), name, testpoint.RandBytes(r, u.Bytes), u.length()))
		}
	}
	return units
}

// simulate runs the simulation up to limit, turning any panic raised by a model into an error.
func simulate(sim *component.SimController, limit model.VirtualTime) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = errors.Errorf("simulation panicked at %v: %v", sim.Now(), r)
			}
		}
	}()
	sim.Advance(limit)
	return nil
}

func Run(spec *Spec, opts Options) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid scenario %q", spec.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("scenario", spec.Name))

	sim := component.MakeSimControllerSeeded(spec.Seed, model.TimeZero)
	clk := clock.MakeDrifting(sim, spec.Name+"/clock", model.ClockZero, spec.ClockDriftPPM)
	recorder := component.MakeNullRecorder()
	if opts.Recording != nil {
		var err error
		if recorder, err = component.MakeRecorder(sim, opts.Recording); err != nil {
			return nil, err
		}
	}

	receiver := medium.MakeReceiver(sim, spec.Name+"/rx", logger)
	result := &Result{Name: spec.Name}
	// bytes are only taken between signals, once their content can no longer change
	receiver.Subscribe(func() {
		if !receiver.Arriving() {
			result.Received = append(result.Received, receiver.PullBytesAvailable()...)
		}
	})
	tx, err := transmitter.Config{
		Name:     spec.Name + "/tx",
		Datarate: signal.Datarate(spec.Datarate),
	}.Construct(sim, clk, spec.encoder(), txlink.RecordConsumer(recorder, "medium", receiver), logger)
	if err != nil {
		return nil, multierror.Append(err, recorder.Close())
	}
	var collector *metrics.Collector
	if opts.Registerer != nil {
		collector = metrics.NewCollector(opts.Registerer, "streamthrough", tx.Name(), logger)
		tx.AddObserver(collector)
	}
	tx.AddObserver(txlink.RecordObserver(recorder, "transmitter"))

	streamer, err := spec.sourceConfig().Construct(sim, tx, logger)
	if err != nil {
		return nil, multierror.Append(err, recorder.Close())
	}
	tx.SetProducer(txlink.RecordProducer(recorder, "source", streamer))

	if spec.AbortAt > 0 {
		sim.SetTimer(model.TimeZero.Add(spec.AbortAt), spec.Name+"/Abort", func() {
			if spec.Crash {
				tx.Crash()
			} else {
				tx.Stop()
			}
		})
	}
	streamer.Enqueue(spec.GenerateUnits()...)

	runErr := simulate(sim, model.TimeZero.Add(spec.Duration))
	result.EndTime = sim.Now()
	result.Receptions = receiver.Receptions()
	result.Completions = streamer.Completions()
	result.Received = append(result.Received, receiver.PullBytesAvailable()...)

	var underrun *transmitter.BufferUnderrunError
	if errors.As(runErr, &underrun) {
		result.Underrun = underrun
		if collector != nil {
			collector.RecordUnderrun()
		}
	}
	logger.Info("scenario finished",
		zap.Stringer("at", result.EndTime),
		zap.Int("completed", len(result.Completions)),
		zap.Int("received_bytes", len(result.Received)),
		zap.Error(runErr))

	var combined *multierror.Error
	if runErr != nil {
		combined = multierror.Append(combined, errors.Wrapf(runErr, "scenario %q stopped", spec.Name))
	}
	if err := recorder.Close(); err != nil {
		combined = multierror.Append(combined, err)
	}
	return result, combined.ErrorOrNil()
}
