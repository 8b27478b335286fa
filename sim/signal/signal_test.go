package signal

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randData(r *rand.Rand, n int) []byte {
	data := make([]byte, n)
	r.Read(data)
	return data
}

func TestDatarateArithmetic(t *testing.T) {
	rate := Datarate(1000)
	assert.Equal(t, time.Second*4, rate.Duration(4000))
	assert.Equal(t, Bits(2000), rate.BitsIn(time.Second*2))
	assert.Equal(t, Bits(1), rate.BitsIn(time.Millisecond*1999/1000))
	assert.Equal(t, Bits(2004), rate.BitsIn(2004*time.Millisecond))
	// (1e9-1)*(1e9+1) is one short of 1e18, which a float64 product rounds up to exactly 1e18
	assert.Equal(t, Bits(999999999), Datarate(999999999).BitsIn(time.Second+time.Nanosecond))
	assert.Equal(t, Bits(3e15), Datarate(3e9).BitsIn(1e6*time.Second))
	assert.Equal(t, Bits(1), Datarate(1.5).BitsIn(time.Second))
	assert.False(t, Datarate(0).Valid())
	assert.Panics(t, func() {
		Datarate(-5).Duration(10)
	})
}

func TestTruncatedUnit(t *testing.T) {
	u := MakeUnit("u", []byte{0xFF, 0xFF, 0xFF})
	cut := u.Truncated(13)
	assert.Equal(t, Bits(13), cut.Length)
	assert.Equal(t, []byte{0xFF, 0x1F}, cut.Data)
	assert.Equal(t, u.ID, cut.ID)
	assert.Equal(t, Bits(24), u.Length, "original must be untouched")
	assert.Panics(t, func() {
		u.Truncated(25)
	})
}

func TestSameData(t *testing.T) {
	a := MakeUnit("a", []byte{1, 2, 3})
	b := a.WithData([]byte{1, 2, 3})
	c := a.WithData([]byte{1, 2, 4})
	assert.True(t, SameData(a, b))
	assert.False(t, SameData(a, c))
	assert.False(t, SameData(a, a.Truncated(16)))
}

func TestLinearEncoder(t *testing.T) {
	r := rand.New(rand.NewSource(10))
	u := MakeUnitBits(NewID(r), "linear", randData(r, 500), 4000)
	sig := LinearEncoder{}.Encode(u, 1000)
	assert.Equal(t, Bits(4000), sig.Length)
	assert.Equal(t, time.Second*4, sig.Duration)

	back, err := LinearEncoder{}.Decode(sig)
	require.NoError(t, err)
	assert.True(t, SameData(u, back))
	assert.Equal(t, u.ID, back.ID)
}

func TestFramedEncoderRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(20))
	for i := 0; i < 200; i++ {
		data := randData(r, r.Intn(64)+1)
		bits := Bits(len(data)*8 - r.Intn(8))
		u := MakeUnitBits(NewID(r), "framed", data, bits)
		u.BitError = r.Intn(4) == 0

		sig := FramedEncoder{}.Encode(u, 8000)
		assert.GreaterOrEqual(t, int64(sig.Length), int64(u.Length)+5*8)
		assert.Equal(t, Datarate(8000).Duration(sig.Length), sig.Duration)

		back, err := FramedEncoder{}.Decode(sig)
		require.NoError(t, err)
		assert.True(t, SameData(u, back), "round trip of %v", u)
		assert.Equal(t, u.BitError, back.BitError)
	}
}

func TestFramedEncoderEscapes(t *testing.T) {
	u := MakeUnit("escapes", []byte{byte(ChEndPacket), 0x10, byte(ChEscapeSym)})
	sig := FramedEncoder{}.Encode(u, 1000)
	// start + length param (no control bytes in it) + 3 data bytes, two escaped + end
	assert.Equal(t, 1+4+5+1, len(sig.Symbols))
	assert.Equal(t, byte(ChEndPacket), sig.Symbols[len(sig.Symbols)-1])
}

func TestFramedDecoderRejectsDamage(t *testing.T) {
	u := MakeUnit("damaged", []byte{1, 2, 3, 4})
	sig := FramedEncoder{}.Encode(u, 1000)

	unterminated := *sig
	unterminated.Symbols = sig.Symbols[:len(sig.Symbols)-1]
	_, err := FramedEncoder{}.Decode(&unterminated)
	assert.Error(t, err)

	short := *sig
	short.Symbols = append(append([]byte{}, sig.Symbols[:len(sig.Symbols)-2]...), byte(ChEndPacket))
	_, err = FramedEncoder{}.Decode(&short)
	assert.Error(t, err)
}
