// Package protocol defines the binary frames that carry height fields to
// rendering clients.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

// Frame types
const (
	TypeHeights byte = 0x01
	TypeParams  byte = 0x02
)

// Frame size limits
const (
	HeaderSize  = 27
	CRCSize     = 4
	MaxGridSize = 4096
)

var (
	ErrShortFrame = errors.New("protocol: frame too short")
	ErrChecksum   = errors.New("protocol: checksum mismatch")
)

// HeightFrame is one tick of the height field plus the scalars the shading
// side needs.
//
// Format (big-endian):
// [Type(1B)][Seq(4B)][Size(2B)][Time(8B)][Amplitude(4B)][Choppiness(4B)]
// [Count(4B)][Heights(Count×4B)][CRC-32(4B)]
type HeightFrame struct {
	Type       byte
	Seq        uint32
	Size       uint16
	Time       float64
	Amplitude  float32
	Choppiness float32
	Heights    []float32 // row-major Size×Size, empty for TypeParams
}

// NewHeightFrame creates a HEIGHTS frame holding a copy of heights.
func NewHeightFrame(seq uint32, size int, t float64, amplitude, choppiness float32, heights []float32) *HeightFrame {
	h := make([]float32, len(heights))
	copy(h, heights)
	return &HeightFrame{
		Type:       TypeHeights,
		Seq:        seq,
		Size:       uint16(size),
		Time:       t,
		Amplitude:  amplitude,
		Choppiness: choppiness,
		Heights:    h,
	}
}

// NewParamsFrame creates a PARAMS frame announcing parameter changes.
func NewParamsFrame(seq uint32, size int, amplitude, choppiness float32) *HeightFrame {
	return &HeightFrame{
		Type:       TypeParams,
		Seq:        seq,
		Size:       uint16(size),
		Amplitude:  amplitude,
		Choppiness: choppiness,
	}
}

// TypeName returns a human-readable name for the frame type.
func (f *HeightFrame) TypeName() string {
	switch f.Type {
	case TypeHeights:
		return "HEIGHTS"
	case TypeParams:
		return "PARAMS"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", f.Type)
	}
}

// EncodedLen returns the size of the encoded frame in bytes.
func (f *HeightFrame) EncodedLen() int {
	return HeaderSize + 4*len(f.Heights) + CRCSize
}

// Encode serializes the frame to bytes with CRC-32.
func (f *HeightFrame) Encode() []byte {
	buf := make([]byte, f.EncodedLen())

	buf[0] = f.Type
	binary.BigEndian.PutUint32(buf[1:5], f.Seq)
	binary.BigEndian.PutUint16(buf[5:7], f.Size)
	binary.BigEndian.PutUint64(buf[7:15], math.Float64bits(f.Time))
	binary.BigEndian.PutUint32(buf[15:19], math.Float32bits(f.Amplitude))
	binary.BigEndian.PutUint32(buf[19:23], math.Float32bits(f.Choppiness))
	binary.BigEndian.PutUint32(buf[23:27], uint32(len(f.Heights)))

	off := HeaderSize
	for _, h := range f.Heights {
		binary.BigEndian.PutUint32(buf[off:off+4], math.Float32bits(h))
		off += 4
	}

	binary.BigEndian.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))
	return buf
}

// DecodeFrame deserializes bytes into a HeightFrame, verifying CRC-32 and
// that a HEIGHTS frame carries exactly Size² samples.
func DecodeFrame(data []byte) (*HeightFrame, error) {
	if len(data) < HeaderSize+CRCSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}

	count := binary.BigEndian.Uint32(data[23:27])
	if uint64(count) > uint64(len(data)-HeaderSize-CRCSize)/4 {
		return nil, fmt.Errorf("%w: %d samples declared, %d bytes present", ErrShortFrame, count, len(data))
	}

	end := HeaderSize + 4*int(count)
	expected := binary.BigEndian.Uint32(data[end : end+CRCSize])
	if actual := crc32.ChecksumIEEE(data[:end]); actual != expected {
		return nil, fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrChecksum, expected, actual)
	}

	f := &HeightFrame{
		Type:       data[0],
		Seq:        binary.BigEndian.Uint32(data[1:5]),
		Size:       binary.BigEndian.Uint16(data[5:7]),
		Time:       math.Float64frombits(binary.BigEndian.Uint64(data[7:15])),
		Amplitude:  math.Float32frombits(binary.BigEndian.Uint32(data[15:19])),
		Choppiness: math.Float32frombits(binary.BigEndian.Uint32(data[19:23])),
	}

	switch f.Type {
	case TypeHeights:
		if f.Size == 0 || f.Size > MaxGridSize || uint32(f.Size)*uint32(f.Size) != count {
			return nil, fmt.Errorf("heights frame: %d samples for size %d", count, f.Size)
		}
	case TypeParams:
		if count != 0 {
			return nil, fmt.Errorf("params frame carries %d samples", count)
		}
	default:
		return nil, fmt.Errorf("unknown frame type 0x%02x", f.Type)
	}

	if count > 0 {
		f.Heights = make([]float32, count)
		off := HeaderSize
		for i := range f.Heights {
			f.Heights[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4]))
			off += 4
		}
	}

	return f, nil
}
