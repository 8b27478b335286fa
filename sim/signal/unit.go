package signal

import (
	"bytes"
	"fmt"
	"io"

	"github.com/celskeggs/streamthrough/sim/util"
	"github.com/google/uuid"
)

// Unit is a data unit (packet) as handed from producer to transmitter. Its Length may be shorter than
// len(Data)*8 when the final byte is only partially used.
type Unit struct {
	ID       uuid.UUID
	Name     string
	Data     []byte
	Length   Bits
	BitError bool
}

func MakeUnitBits(id uuid.UUID, name string, data []byte, length Bits) *Unit {
	if length < 0 || length.Bytes() != len(data) {
		panic(fmt.Sprintf("unit length %v does not match %d bytes of data", length, len(data)))
	}
	return &Unit{
		ID:     id,
		Name:   name,
		Data:   util.MaskTrailingBits(data, int64(length)),
		Length: length,
	}
}

func MakeUnit(name string, data []byte) *Unit {
	return MakeUnitBits(uuid.New(), name, data, Bits(len(data)*util.BitsPerByte))
}

// NewID draws a unit identifier from r, so that seeded simulations produce repeatable identifiers.
func NewID(r io.Reader) uuid.UUID {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		panic("cannot generate unit id: " + err.Error())
	}
	return id
}

func (u *Unit) Clone() *Unit {
	c := *u
	c.Data = append([]byte{}, u.Data...)
	return &c
}

// WithData is the same unit (same identity and length) with different content, as happens while the content
// of a unit is still arriving.
func (u *Unit) WithData(data []byte) *Unit {
	c := MakeUnitBits(u.ID, u.Name, data, u.Length)
	c.BitError = u.BitError
	return c
}

// Truncated keeps only the first bits bits of the unit.
func (u *Unit) Truncated(bits Bits) *Unit {
	if bits < 0 || bits > u.Length {
		panic(fmt.Sprintf("cannot truncate %v unit to %v", u.Length, bits))
	}
	c := u.Clone()
	c.Data = util.MaskTrailingBits(u.Data, int64(bits))
	c.Length = bits
	return c
}

func (u *Unit) String() string {
	flag := ""
	if u.BitError {
		flag = ",biterror"
	}
	return fmt.Sprintf("%s(%v%s)", u.Name, u.Length, flag)
}

// SameData reports whether two units carry bit-for-bit identical content.
func SameData(a, b *Unit) bool {
	return a.Length == b.Length && bytes.Equal(a.Data, b.Data)
}
