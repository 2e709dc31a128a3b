package common

import (
	"encoding/binary"
	"math"
	"reflect"
)

// IsFixedKind reports whether k is a fixed-size primitive kind.
func IsFixedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// FixedSize returns the byte width for fixed-size primitive kinds.
func FixedSize(k reflect.Kind) int {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int64, reflect.Uint64, reflect.Float64:
		return 8
	default:
		return -1
	}
}

// AppendUint appends the low width bytes of x in little-endian order.
// width must be 1, 2, 4 or 8.
func AppendUint(dst []byte, x uint64, width int) []byte {
	switch width {
	case 1:
		return append(dst, byte(x))
	case 2:
		return binary.LittleEndian.AppendUint16(dst, uint16(x))
	case 4:
		return binary.LittleEndian.AppendUint32(dst, uint32(x))
	default:
		return binary.LittleEndian.AppendUint64(dst, x)
	}
}

// ReadUint decodes a little-endian unsigned integer of the given width.
// The caller guarantees len(b) >= width.
func ReadUint(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// SignExtend interprets the low width bytes of x as a two's complement integer.
func SignExtend(x uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(x))
	case 2:
		return int64(int16(x))
	case 4:
		return int64(int32(x))
	default:
		return int64(x)
	}
}

// AppendFloat appends f using the IEEE-754 layout of the given width (4 or 8).
func AppendFloat(dst []byte, f float64, width int) []byte {
	if width == 4 {
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(f)))
	}
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(f))
}

// ReadFloat decodes an IEEE-754 float of the given width (4 or 8).
func ReadFloat(b []byte, width int) float64 {
	if width == 4 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// IsIdentChar reports whether c can appear inside an identifier or keyword.
func IsIdentChar(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// IsSpace matches the C locale isspace set.
func IsSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
