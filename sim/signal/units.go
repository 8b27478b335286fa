package signal

import (
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/celskeggs/streamthrough/sim/util"
)

// Bits is a length or offset measured in bits.
type Bits int64

const BitsNever Bits = -1

func (b Bits) Bytes() int {
	return util.BytesForBits(int64(b))
}

func (b Bits) String() string {
	if b < 0 {
		return "[no bits]"
	}
	return fmt.Sprintf("%db", int64(b))
}

// Datarate is a bit rate in bits per second.
type Datarate float64

func (r Datarate) Valid() bool {
	return r > 0 && !math.IsInf(float64(r), 0)
}

func (r Datarate) String() string {
	if math.IsNaN(float64(r)) {
		return "[no rate]"
	}
	return fmt.Sprintf("%gbps", float64(r))
}

// Duration is the time needed to send the given number of bits at this rate, rounded to the nearest
// nanosecond.
func (r Datarate) Duration(bits Bits) time.Duration {
	if !r.Valid() {
		panic(fmt.Sprintf("invalid datarate %v", r))
	}
	return time.Duration(math.Round(float64(bits) / float64(r) * float64(time.Second)))
}

// BitsIn is the number of whole bits sent at this rate during the given duration. For whole-number rates it
// is computed exactly in integer nanoseconds.
func (r Datarate) BitsIn(d time.Duration) Bits {
	if !r.Valid() {
		panic(fmt.Sprintf("invalid datarate %v", r))
	}
	if whole := math.Trunc(float64(r)); whole == float64(r) && whole < math.MaxInt64 && d >= 0 {
		hi, lo := bits.Mul64(uint64(whole), uint64(d))
		if hi < uint64(time.Second) {
			if q, _ := bits.Div64(hi, lo, uint64(time.Second)); q <= math.MaxInt64 {
				return Bits(q)
			}
		}
	}
	return Bits(math.Floor(float64(r) * float64(d) / float64(time.Second)))
}
