package util

import "strings"

const BitsPerByte = 8

// BytesForBits is the number of bytes needed to hold the given number of bits.
func BytesForBits(bits int64) int {
	if bits < 0 {
		panic("negative bit count")
	}
	return int((bits + BitsPerByte - 1) / BitsPerByte)
}

// MaskTrailingBits returns a copy of the first bits bits of data. Bits are numbered least significant first
// within each byte; any bits past the cut in the final byte are cleared.
func MaskTrailingBits(data []byte, bits int64) []byte {
	byteCount := BytesForBits(bits)
	if byteCount > len(data) {
		panic("not enough data to keep that many bits")
	}
	out := append([]byte{}, data[:byteCount]...)
	if rem := bits % BitsPerByte; rem != 0 {
		out[byteCount-1] &= byte(1<<rem) - 1
	}
	return out
}

func BitsToByte(bits []bool) byte {
	if len(bits) != BitsPerByte {
		panic("invalid # of bits")
	}
	var output byte
	for i, bit := range bits {
		if bit {
			output |= 1 << i
		}
	}
	return output
}

// BitsToBytes packs bits into bytes; a trailing partial byte is zero-padded.
func BitsToBytes(bits []bool) []byte {
	output := make([]byte, BytesForBits(int64(len(bits))))
	for i, bit := range bits {
		if bit {
			output[i/BitsPerByte] |= 1 << (i % BitsPerByte)
		}
	}
	return output
}

func BytesToBits(bytes []byte) []bool {
	output := make([]bool, len(bytes)*BitsPerByte)
	for i, b := range bytes {
		for j := 0; j < BitsPerByte; j++ {
			output[i*BitsPerByte+j] = (b & (1 << j)) != 0
		}
	}
	return output
}

func StringBits0(data []bool) string {
	var sb strings.Builder
	for _, bit := range data {
		if bit {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func StringBits(data []byte) string {
	return StringBits0(BytesToBits(data))
}
