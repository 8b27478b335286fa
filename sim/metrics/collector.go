package metrics

import (
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txmodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	OutcomeComplete = "complete"
	OutcomeAborted  = "aborted"
)

// Collector counts transmissions as an observer of one transmitter. Durations are in simulated seconds.
type Collector struct {
	started     prometheus.Counter
	ended       *prometheus.CounterVec
	bits        prometheus.Counter
	duration    prometheus.Histogram
	underruns   prometheus.Counter
	transmitter string

	logger *zap.Logger
}

var _ txmodel.Observer = &Collector{}

func NewCollector(reg prometheus.Registerer, namespace string, transmitter string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"transmitter": transmitter}
	return &Collector{
		started: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "transmissions_started_total",
			Help:        "Total number of transmissions started",
			ConstLabels: labels,
		}),
		ended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "transmissions_ended_total",
			Help:        "Total number of transmissions ended, by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		bits: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "transmitted_bits_total",
			Help:        "Total number of unit bits sent, including those of aborted transmissions",
			ConstLabels: labels,
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "transmission_duration_seconds",
			Help:        "Simulated duration of each transmission in seconds",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		underruns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "buffer_underruns_total",
			Help:        "Total number of transmissions that failed with a buffer underrun",
			ConstLabels: labels,
		}),
		transmitter: transmitter,
		logger:      logger.Named("metrics").With(zap.String("transmitter", transmitter)),
	}
}

func (c *Collector) TransmissionStarted(sig *signal.Signal) {
	c.started.Inc()
}

func (c *Collector) TransmissionEnded(sig *signal.Signal) {
	outcome := OutcomeComplete
	if sig.Unit.BitError {
		outcome = OutcomeAborted
	}
	c.ended.WithLabelValues(outcome).Inc()
	c.bits.Add(float64(sig.Unit.Length))
	c.duration.Observe(sig.Duration.Seconds())
	c.logger.Debug("transmission counted",
		zap.String("transmitter", c.transmitter), zap.String("outcome", outcome), zap.Stringer("unit", sig.Unit))
}

func (c *Collector) RecordUnderrun() {
	c.underruns.Inc()
}
