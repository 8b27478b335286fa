package component

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderFormat(t *testing.T) {
	sim := MakeSimControllerSeeded(1, model.TimeZero)
	var buf bytes.Buffer
	r, err := MakeRecorder(sim, &buf)
	require.NoError(t, err)
	sim.Advance(model.TimeZero.Add(time.Millisecond))
	unit := signal.MakeUnitBits(signal.NewID(sim.Rand()), "u", []byte{0xAB, 0x07}, 11)
	r.Record("tx", "progress", unit, 5, time.Microsecond)
	require.NoError(t, r.Close())
	assert.Equal(t, "Nanoseconds,Channel,Event,Position,Elapsed Nanoseconds,Length,Bit Error,Hex Bytes\n"+
		"1000000,tx,progress,5,1000,11,0,ab07\n", buf.String())
	assert.False(t, r.IsRecording())
}

func TestDecodeRecordingErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty":        "",
		"old header":   "Nanoseconds,Channel,Hex Bytes\n",
		"short record": "Nanoseconds,Channel,Event,Position,Elapsed Nanoseconds,Length,Bit Error,Hex Bytes\n1,tx,start,0,0,8\n",
		"bad flag":     "Nanoseconds,Channel,Event,Position,Elapsed Nanoseconds,Length,Bit Error,Hex Bytes\n1,tx,start,0,0,8,yes,ff\n",
		"bad length":   "Nanoseconds,Channel,Event,Position,Elapsed Nanoseconds,Length,Bit Error,Hex Bytes\n1,tx,start,0,0,16,0,ff\n",
		"bad hex":      "Nanoseconds,Channel,Event,Position,Elapsed Nanoseconds,Length,Bit Error,Hex Bytes\n1,tx,start,0,0,8,0,zz\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name+".csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		_, err := DecodeRecording(path)
		assert.Error(t, err, name)
	}
	_, err := DecodeRecording(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
