// Package frame wraps a compiled record stream for storage: a fixed header,
// the optionally zstd-compressed stream and a CRC32 trailer.
//
//	"CPOD" | version u8 | flags u8 | payload length u64 | payload | crc32
//
// The checksum covers every byte between the magic and the checksum itself.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"
	"github.com/rawbytedev/cpod/internal/common"
)

const (
	Magic      = "CPOD"
	Version    = 1
	HeaderSize = len(Magic) + 1 + 1 + 8
	crcSize    = 4

	FlagZstd byte = 1 << 0
)

var (
	ErrBadMagic = errors.New("not a cpod frame")
	ErrVersion  = errors.New("unsupported frame version")
	ErrChecksum = errors.New("frame checksum mismatch")
)

// Options control Encode. The zero value stores the stream uncompressed.
type Options struct {
	Compress bool
	Level    zstd.EncoderLevel // defaults to zstd.SpeedDefault
}

// Header describes a frame without decoding its payload.
type Header struct {
	Version    byte
	Flags      byte
	PayloadLen uint64
}

func (h Header) Compressed() bool { return h.Flags&FlagZstd != 0 }

// Encode frames stream according to opts.
func Encode(stream []byte, opts Options) ([]byte, error) {
	var flags byte
	payload := stream
	if opts.Compress {
		level := opts.Level
		if level == 0 {
			level = zstd.SpeedDefault
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("frame: zstd encoder: %w", err)
		}
		payload = enc.EncodeAll(stream, nil)
		if err := enc.Close(); err != nil {
			return nil, err
		}
		flags |= FlagZstd
	}

	out := make([]byte, 0, HeaderSize+len(payload)+crcSize)
	out = append(out, Magic...)
	out = append(out, Version, flags)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(payload)))
	out = append(out, payload...)
	crc := crc32.ChecksumIEEE(out[len(Magic):])
	return binary.LittleEndian.AppendUint32(out, crc), nil
}

// Inspect validates the frame header, length and checksum.
func Inspect(data []byte) (Header, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return Header{}, ErrBadMagic
	}
	if len(data) < HeaderSize+crcSize {
		return Header{}, fmt.Errorf("frame header: %w", common.ErrTruncated)
	}
	h := Header{
		Version:    data[4],
		Flags:      data[5],
		PayloadLen: binary.LittleEndian.Uint64(data[6:]),
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if h.PayloadLen != uint64(len(data)-HeaderSize-crcSize) {
		return h, fmt.Errorf("%w: header says %d payload bytes, frame holds %d",
			common.ErrTruncated, h.PayloadLen, len(data)-HeaderSize-crcSize)
	}
	end := len(data) - crcSize
	if crc32.ChecksumIEEE(data[len(Magic):end]) != binary.LittleEndian.Uint32(data[end:]) {
		return h, ErrChecksum
	}
	return h, nil
}

// Decode validates a frame and returns the record stream it carries.
func Decode(data []byte) ([]byte, error) {
	h, err := Inspect(data)
	if err != nil {
		return nil, err
	}
	payload := data[HeaderSize : len(data)-crcSize]
	if !h.Compressed() {
		return payload, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("frame: zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("frame: decompress: %w", err)
	}
	return out, nil
}

// IsFrame reports whether data starts with the frame magic.
func IsFrame(data []byte) bool {
	return len(data) >= len(Magic) && string(data[:len(Magic)]) == Magic
}
