package scenario

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/celskeggs/streamthrough/sim/component"
	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/transmitter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func load(t *testing.T, name string) *Spec {
	spec, err := Load("testdata/" + name + ".yaml")
	require.NoError(t, err)
	return spec
}

func TestLoadFullSpeed(t *testing.T) {
	spec := load(t, "full_speed")
	assert.Equal(t, "full-speed", spec.Name)
	assert.Equal(t, 500*time.Millisecond, spec.Input.Interval)
	assert.Equal(t, 10*time.Second, spec.Duration)
	assert.Equal(t, 1, spec.Units[0].Count)
	assert.Equal(t, EncodingLinear, spec.Encoding)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("name: x\ndatarte: 5\n"))
	assert.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
name: ""
datarate: -1
encoding: morse
clock_drift_ppm: -2000000
units:
  - name: bad
    bytes: 0
  - name: short
    bytes: 2
    bits: 99
input:
  rate: 0
  interval: 0s
abort_at: 20s
duration: 10s
`))
	require.Error(t, err)
	for _, fragment := range []string{
		"name", "datarate", "morse", "clock drift", "at least one byte", "does not fit", "input rate", "interval", "abort time",
	} {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestGenerateUnitsIsRepeatable(t *testing.T) {
	spec := load(t, "framed_burst")
	first, second := spec.GenerateUnits(), spec.GenerateUnits()
	require.Len(t, first, 4)
	assert.Equal(t, "burst-1", first[1].Name)
	assert.Equal(t, signal.Bits(99), first[3].Length)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Data, second[i].Data)
	}
}

func TestRunFullSpeed(t *testing.T) {
	spec := load(t, "full_speed")
	reg := prometheus.NewRegistry()
	var recording bytes.Buffer
	result, err := Run(spec, Options{Logger: zaptest.NewLogger(t), Registerer: reg, Recording: &recording})
	require.NoError(t, err)

	units := spec.GenerateUnits()
	require.Len(t, result.Receptions, 1)
	reception := result.Receptions[0]
	assert.False(t, reception.Aborted)
	assert.Equal(t, model.TimeZero.Add(200*time.Millisecond), reception.Started)
	assert.Equal(t, model.TimeZero.Add(4200*time.Millisecond), reception.Ended)
	assert.Equal(t, units[0].Data, result.Received)
	require.Len(t, result.Completions, 1)
	assert.False(t, result.Completions[0].Cut)
	assert.Nil(t, result.Underrun)
	assert.Equal(t, model.TimeZero.Add(10*time.Second), result.EndTime)

	count, err := testutil.GatherAndCount(reg, "streamthrough_transmissions_ended_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	lines := strings.Split(strings.TrimSpace(recording.String()), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "Nanoseconds,Channel,Event"))
	assert.Contains(t, lines[len(lines)-1], ",source,processed,")
}

func TestRunUnderrunStopsTheRun(t *testing.T) {
	spec := load(t, "underrun")
	reg := prometheus.NewRegistry()
	result, err := Run(spec, Options{Logger: zaptest.NewLogger(t), Registerer: reg})
	require.Error(t, err)
	assert.True(t, errors.Is(err, transmitter.ErrBufferUnderrun))
	require.NotNil(t, result)
	require.NotNil(t, result.Underrun)
	assert.Equal(t, model.TimeZero.Add(2*time.Second), result.Underrun.At)
	assert.Equal(t, result.Underrun.At, result.EndTime)
	assert.Empty(t, result.Completions)

	count, err := testutil.GatherAndCount(reg, "streamthrough_buffer_underruns_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunAbort(t *testing.T) {
	spec := load(t, "abort")
	result, err := Run(spec, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	unit := spec.GenerateUnits()[0]
	require.Len(t, result.Receptions, 1)
	reception := result.Receptions[0]
	assert.True(t, reception.Aborted)
	assert.True(t, reception.Unit.BitError)
	assert.Equal(t, signal.Bits(2000), reception.Unit.Length)
	assert.Equal(t, model.TimeZero.Add(2*time.Second), reception.Ended)
	assert.Equal(t, unit.Data[:250], result.Received)
	require.Len(t, result.Completions, 1)
	// the unit was still arriving when the transmitter crashed
	assert.True(t, result.Completions[0].Cut)
}

func TestRunFramedBurst(t *testing.T) {
	spec := load(t, "framed_burst")
	result, err := Run(spec, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	units := spec.GenerateUnits()
	var expected []byte
	for _, unit := range units {
		expected = append(expected, signal.FramedEncoder{}.Encode(unit, 8000).Symbols...)
	}
	assert.Equal(t, expected, result.Received)
	require.Len(t, result.Completions, len(units))
	for i, completion := range result.Completions {
		assert.True(t, completion.Successful)
		assert.False(t, completion.Cut)
		assert.Equal(t, units[i].ID, completion.Unit.ID)
	}
}

func TestRunWithFastClock(t *testing.T) {
	spec, err := Parse([]byte(`
name: fast-clock
seed: 5
datarate: 1000
clock_drift_ppm: 100000
units:
  - name: packet
    bytes: 500
input:
  rate: 1000
  lead_bits: 1000
  interval: 500ms
duration: 10s
`))
	require.NoError(t, err)
	result, err := Run(spec, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	require.Len(t, result.Receptions, 1)
	reception := result.Receptions[0]
	assert.Equal(t, model.TimeZero.Add(time.Second), reception.Started)
	// the local clock reads 1.1s at the start, and the end is 4 clock-seconds later
	assert.InDelta(t, 5.1/1.1, reception.Ended.Seconds(), 1e-8)
	assert.False(t, result.Completions[0].Cut)
	assert.Equal(t, spec.GenerateUnits()[0].Data, result.Received)
}

func TestSimulateTurnsPanicsIntoErrors(t *testing.T) {
	sim := component.MakeSimControllerSeeded(1, model.TimeZero)
	sim.SetTimer(model.TimeZero.Add(time.Second), "boom", func() {
		panic("times don't exist")
	})
	err := simulate(sim, model.TimeZero.Add(2*time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "times don't exist")
	assert.Equal(t, model.TimeZero.Add(time.Second), sim.Now())

	sim = component.MakeSimControllerSeeded(1, model.TimeZero)
	sim.SetTimer(model.TimeZero.Add(time.Second), "underrun", func() {
		panic(&transmitter.BufferUnderrunError{Transmitter: "tx"})
	})
	err = simulate(sim, model.TimeZero.Add(2*time.Second))
	assert.True(t, errors.Is(err, transmitter.ErrBufferUnderrun))
}
