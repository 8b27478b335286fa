package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/celskeggs/streamthrough/sim/component"
	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func scenarioPath(name string) string {
	return filepath.Join("..", "..", "sim", "scenario", "testdata", name+".yaml")
}

func ms(n int) model.VirtualTime {
	return model.TimeZero.Add(time.Duration(n) * time.Millisecond)
}

func TestCollectTransmissions(t *testing.T) {
	records := []component.Record{
		{Timestamp: ms(0), Channel: "transmitter", Event: txlink.EventStarted, Length: 800},
		{Timestamp: ms(0), Channel: mediumChannel, Event: txlink.EventStart, Length: 800},
		{Timestamp: ms(300), Channel: mediumChannel, Event: txlink.EventProgress, Position: 300, Length: 800},
		{Timestamp: ms(800), Channel: mediumChannel, Event: txlink.EventEnd, Position: 800, Length: 800},
		{Timestamp: ms(800), Channel: "source", Event: txlink.EventProcessed, Position: 800, Length: 800},
		{Timestamp: ms(900), Channel: mediumChannel, Event: txlink.EventStart, Length: 400},
		{Timestamp: ms(1000), Channel: mediumChannel, Event: txlink.EventEnd, Position: 100, Length: 100, BitError: true},
		{Timestamp: ms(1100), Channel: mediumChannel, Event: txlink.EventStart, Length: 50},
	}
	txs, err := CollectTransmissions(records)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, ms(0), txs[0].Start)
	assert.Equal(t, ms(800), txs[0].End)
	assert.False(t, txs[0].Aborted)
	assert.Equal(t, []model.VirtualTime{ms(300)}, txs[0].Progress)
	require.Len(t, txs[0].Positions, 3)
	assert.InDelta(t, 0.3, txs[0].Positions[1].X, 1e-9)
	assert.Equal(t, 300.0, txs[0].Positions[1].Y)

	assert.True(t, txs[1].Aborted)
	assert.Equal(t, signal.Bits(100), txs[1].Length)

	assert.False(t, txs[2].Ended())

	_, err = BuildChart("test", txs, ms(1200))
	assert.NoError(t, err)
}

func TestCollectTransmissionsRejectsBrokenRecordings(t *testing.T) {
	_, err := CollectTransmissions([]component.Record{
		{Timestamp: ms(5), Channel: mediumChannel, Event: txlink.EventProgress},
	})
	assert.Error(t, err)

	_, err = CollectTransmissions([]component.Record{
		{Timestamp: ms(0), Channel: mediumChannel, Event: txlink.EventStart},
		{Timestamp: ms(5), Channel: mediumChannel, Event: txlink.EventStart},
	})
	assert.Error(t, err)

	_, err = CollectTransmissions([]component.Record{
		{Timestamp: ms(0), Channel: mediumChannel, Event: "wobble"},
	})
	assert.Error(t, err)
}

func TestRunThenPlot(t *testing.T) {
	dir := t.TempDir()
	recording := filepath.Join(dir, "full.csv")
	metricsOut := filepath.Join(dir, "full.prom")
	chart := filepath.Join(dir, "full.png")

	var out bytes.Buffer
	err := runScenario(&out, scenarioPath("full_speed"), recording, metricsOut, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "scenario full-speed finished")
	assert.Contains(t, out.String(), "1 units processed (0 cut short), 500 symbol bytes received")

	metrics, err := os.ReadFile(metricsOut)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "streamthrough_transmissions_started_total")

	records, err := component.DecodeRecording(recording)
	require.NoError(t, err)
	txs, err := CollectTransmissions(records)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ms(200), txs[0].Start)
	assert.Equal(t, ms(4200), txs[0].End)
	assert.NotEmpty(t, txs[0].Progress)

	require.NoError(t, plotRecording(recording, chart, 400, 300, zaptest.NewLogger(t)))
	info, err := os.Stat(chart)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestRootCommandReportsAbort(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", scenarioPath("abort"), "--record", filepath.Join(dir, "abort.csv")})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "aborted")
	assert.Contains(t, out.String(), "(1 cut short)")

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"plot", filepath.Join(dir, "abort.csv"), filepath.Join(dir, "abort.png"), "--width", "4"})
	require.NoError(t, cmd.Execute())
}

func TestRootCommandReportsUnderrun(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", scenarioPath("underrun")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, out.String(), "scenario underrun finished")
}
