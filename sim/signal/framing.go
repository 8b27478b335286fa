package signal

import (
	"encoding/binary"
	"fmt"

	"github.com/celskeggs/streamthrough/sim/util"
	"github.com/pkg/errors"
)

type ControlChar uint8

const (
	ChNone ControlChar = 0x00

	ChStartPacket ControlChar = 0x82
	ChEndPacket   ControlChar = 0x83
	ChErrorPacket ControlChar = 0x84
	ChEscapeSym   ControlChar = 0x87

	// ChCodecError is an alias, because EscapeSym never needs to be passed to an upper layer
	ChCodecError = ChEscapeSym
)

func (cc ControlChar) String() string {
	switch cc {
	case ChNone:
		return "None"
	case ChStartPacket:
		return "StartPacket"
	case ChEndPacket:
		return "EndPacket"
	case ChErrorPacket:
		return "ErrorPacket"
	case ChCodecError:
		return "CodecError"
	default:
		panic(fmt.Sprintf("invalid control character: 0x%x", uint8(cc)))
	}
}

// IsParametrized reports whether the character is followed by a 32-bit big-endian parameter.
func (cc ControlChar) IsParametrized() bool {
	return cc == ChStartPacket
}

func IsCtrl(raw byte) bool {
	return raw >= 0x80 && raw <= byte(ChEscapeSym)
}

func EncodeDataBytes(data []byte) []byte {
	result := make([]byte, len(data)*2)
	outIndex := 0
	for _, b := range data {
		if IsCtrl(b) {
			// needs to be escaped; encode byte so that it remains in the data range
			result[outIndex] = byte(ChEscapeSym)
			outIndex += 1
			b ^= 0x10
		}
		result[outIndex] = b
		outIndex += 1
	}
	return result[:outIndex]
}

func EncodeCtrlChar(cc ControlChar, param uint32) (out []byte) {
	if !IsCtrl(byte(cc)) || (param != 0 && !cc.IsParametrized()) {
		panic("invalid control character")
	}
	out = []byte{byte(cc)}
	if cc.IsParametrized() {
		var p [4]byte
		binary.BigEndian.PutUint32(p[:], param)
		out = append(out, EncodeDataBytes(p[:])...)
	}
	return out
}

type frameDecoder struct {
	inEscape bool
	readData func([]byte)
	readCtrl func(ControlChar)
}

func (d *frameDecoder) decode(raw []byte) {
	var lrData []byte
	writeCtrl := func(b ControlChar) {
		if len(lrData) > 0 {
			d.readData(lrData)
			lrData = nil
		}
		d.readCtrl(b)
	}

	for _, b := range raw {
		if d.inEscape {
			d.inEscape = false
			decoded := b ^ 0x10
			if IsCtrl(decoded) {
				lrData = append(lrData, decoded)
				continue
			}
			// invalid escape sequence: report it, then process the character normally
			writeCtrl(ChCodecError)
		}
		if ControlChar(b) == ChEscapeSym {
			d.inEscape = true
		} else if IsCtrl(b) {
			writeCtrl(ControlChar(b))
		} else {
			lrData = append(lrData, b)
		}
	}

	if len(lrData) > 0 {
		d.readData(lrData)
	}
}

// FramedEncoder wraps each unit in a start-of-packet symbol carrying the unit's bit length and an
// end-of-packet (or error-end-of-packet, for units with bit errors) symbol, escaping any data bytes that
// collide with control symbols. The signal lasts as long as all of the framed symbols take to send.
type FramedEncoder struct{}

var _ Encoder = FramedEncoder{}

func (FramedEncoder) Encode(unit *Unit, datarate Datarate) *Signal {
	if int64(unit.Length) > int64(^uint32(0)) {
		panic("unit too long to frame")
	}
	symbols := EncodeCtrlChar(ChStartPacket, uint32(unit.Length))
	symbols = append(symbols, EncodeDataBytes(util.MaskTrailingBits(unit.Data, int64(unit.Length)))...)
	if unit.BitError {
		symbols = append(symbols, EncodeCtrlChar(ChErrorPacket, 0)...)
	} else {
		symbols = append(symbols, EncodeCtrlChar(ChEndPacket, 0)...)
	}
	length := Bits(len(symbols) * util.BitsPerByte)
	return &Signal{
		Unit:     unit,
		Datarate: datarate,
		Symbols:  symbols,
		Length:   length,
		Duration: datarate.Duration(length),
	}
}

func (FramedEncoder) Decode(sig *Signal) (*Unit, error) {
	var (
		pending  ControlChar
		param    []byte
		body     []byte
		length   Bits = BitsNever
		bitError bool
		ended    bool
		problem  error
	)
	fail := func(format string, args ...interface{}) {
		if problem == nil {
			problem = errors.Errorf(format, args...)
		}
	}
	d := &frameDecoder{
		readData: func(data []byte) {
			if pending == ChStartPacket {
				param = append(param, data...)
				if len(param) < 4 {
					return
				}
				length = Bits(binary.BigEndian.Uint32(param))
				data = param[4:]
				pending = ChNone
			}
			if length < 0 || ended {
				fail("data outside of frame")
				return
			}
			body = append(body, data...)
		},
		readCtrl: func(cc ControlChar) {
			if pending != ChNone {
				fail("truncated parameter for %v", pending)
			}
			switch cc {
			case ChStartPacket:
				if length >= 0 {
					fail("duplicate start of packet")
				}
				pending = ChStartPacket
			case ChEndPacket, ChErrorPacket:
				if length < 0 || ended {
					fail("unexpected %v", cc)
				}
				ended = true
				bitError = cc == ChErrorPacket
			default:
				fail("unexpected %v", cc)
			}
		},
	}
	d.decode(sig.Symbols)
	if problem == nil && !ended {
		fail("frame not terminated")
	}
	if problem == nil && length.Bytes() != len(body) {
		fail("frame declares %v but carries %d bytes", length, len(body))
	}
	if problem != nil {
		return nil, errors.Wrapf(problem, "cannot decode %v", sig)
	}
	u := MakeUnitBits(sig.Unit.ID, sig.Unit.Name, body, length)
	u.BitError = bitError
	return u, nil
}
