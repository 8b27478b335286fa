package scenario

import (
	"bytes"
	"os"
	"time"

	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/source"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	EncodingLinear = "linear"
	EncodingFramed = "framed"
)

type UnitSpec struct {
	Name  string `yaml:"name"`
	Bytes int    `yaml:"bytes"`
	// Bits, if set, cuts the last byte short.
	Bits  int64 `yaml:"bits,omitempty"`
	Count int   `yaml:"count,omitempty"`
}

func (u UnitSpec) length() signal.Bits {
	if u.Bits != 0 {
		return signal.Bits(u.Bits)
	}
	return signal.Bits(u.Bytes * 8)
}

type InputSpec struct {
	Rate         float64       `yaml:"rate"`
	LeadBits     int64         `yaml:"lead_bits"`
	Interval     time.Duration `yaml:"interval"`
	SlowdownAt   time.Duration `yaml:"slowdown_at,omitempty"`
	SlowdownRate float64       `yaml:"slowdown_rate,omitempty"`
}

// Spec describes one simulation run: a transmitter, the units pushed into it and how they arrive.
type Spec struct {
	Name          string        `yaml:"name"`
	Seed          int64         `yaml:"seed"`
	Datarate      float64       `yaml:"datarate"`
	Encoding      string        `yaml:"encoding"`
	ClockDriftPPM float64       `yaml:"clock_drift_ppm"`
	Units         []UnitSpec    `yaml:"units"`
	Input         InputSpec     `yaml:"input"`
	AbortAt       time.Duration `yaml:"abort_at,omitempty"`
	Crash         bool          `yaml:"crash,omitempty"`
	Duration      time.Duration `yaml:"duration"`
}

func Parse(data []byte) (*Spec, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	spec := &Spec{}
	if err := decoder.Decode(spec); err != nil {
		return nil, errors.Wrap(err, "cannot parse scenario")
	}
	if spec.Encoding == "" {
		spec.Encoding = EncodingLinear
	}
	for i := range spec.Units {
		if spec.Units[i].Count == 0 {
			spec.Units[i].Count = 1
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid scenario %q", spec.Name)
	}
	return spec, nil
}

func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read scenario")
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return spec, nil
}

func (s *Spec) sourceConfig() source.Config {
	return source.Config{
		Name:         s.Name + "/source",
		InputRate:    signal.Datarate(s.Input.Rate),
		LeadBits:     signal.Bits(s.Input.LeadBits),
		Interval:     s.Input.Interval,
		SlowdownAt:   s.Input.SlowdownAt,
		SlowdownRate: signal.Datarate(s.Input.SlowdownRate),
	}
}

func (s *Spec) encoder() signal.Encoder {
	switch s.Encoding {
	case EncodingFramed:
		return signal.FramedEncoder{}
	default:
		return signal.LinearEncoder{}
	}
}

func (s *Spec) Validate() error {
	var result *multierror.Error
	if s.Name == "" {
		result = multierror.Append(result, errors.New("scenario name must not be empty"))
	}
	if !signal.Datarate(s.Datarate).Valid() {
		result = multierror.Append(result, errors.Errorf("datarate %v must be positive and finite", s.Datarate))
	}
	if s.Encoding != EncodingLinear && s.Encoding != EncodingFramed {
		result = multierror.Append(result, errors.Errorf("unknown encoding %q", s.Encoding))
	}
	if !(s.ClockDriftPPM > -1e6) || s.ClockDriftPPM > 1e6 {
		result = multierror.Append(result, errors.Errorf("clock drift of %v ppm is out of range", s.ClockDriftPPM))
	}
	if len(s.Units) == 0 {
		result = multierror.Append(result, errors.New("at least one unit is required"))
	}
	for i, u := range s.Units {
		if u.Bytes <= 0 {
			result = multierror.Append(result, errors.Errorf("unit %d (%s) must have at least one byte", i, u.Name))
		} else if u.length().Bytes() != u.Bytes {
			result = multierror.Append(result, errors.Errorf("unit %d (%s) of %d bits does not fit %d bytes", i, u.Name, u.Bits, u.Bytes))
		}
		if u.Count < 0 {
			result = multierror.Append(result, errors.Errorf("unit %d (%s) has negative count", i, u.Name))
		}
	}
	if err := s.sourceConfig().Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if s.Duration <= 0 {
		result = multierror.Append(result, errors.Errorf("duration %v must be positive", s.Duration))
	}
	if s.AbortAt < 0 || (s.AbortAt > 0 && s.AbortAt >= s.Duration) {
		result = multierror.Append(result, errors.Errorf("abort time %v must fall within the run", s.AbortAt))
	}
	return result.ErrorOrNil()
}
