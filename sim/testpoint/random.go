package testpoint

import (
	"fmt"
	"math/rand"

	"github.com/celskeggs/streamthrough/sim/signal"
)

func RandBytes(r *rand.Rand, n int) []byte {
	data := make([]byte, n)
	_, _ = r.Read(data)
	return data
}

// RandUnit generates a unit with a random bit length of up to maxBits, not necessarily a whole number of bytes.
func RandUnit(r *rand.Rand, maxBits int) *signal.Unit {
	length := signal.Bits(r.Intn(maxBits) + 1)
	return signal.MakeUnitBits(signal.NewID(r), fmt.Sprintf("unit-%d", r.Intn(10000)), RandBytes(r, length.Bytes()), length)
}

// RandPacket generates a unit made of whole bytes, as a packet would be.
func RandPacket(r *rand.Rand) *signal.Unit {
	n := r.Intn(200) + 1
	return signal.MakeUnitBits(signal.NewID(r), fmt.Sprintf("packet-%d", r.Intn(10000)), RandBytes(r, n), signal.Bits(n*8))
}
