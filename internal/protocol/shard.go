package protocol

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/jeongseonghan/fft-ocean/internal/fec"
)

// ShardMagic marks a shard datagram ("OS").
const ShardMagic uint16 = 0x4F53

// ShardHeaderSize is the fixed shard header length.
const ShardHeaderSize = 13

// ShardPacket carries one erasure-coded shard of an encoded frame.
//
// Format (big-endian):
// [Magic(2B)][FrameSeq(4B)][Index(1B)][Total(1B)][DataShards(1B)]
// [FrameLen(4B)][Data][CRC-32(4B)]
type ShardPacket struct {
	FrameSeq   uint32
	Index      uint8
	Total      uint8
	DataShards uint8
	FrameLen   uint32
	Data       []byte
}

// Encode serializes the shard packet. The trailing CRC lets receivers
// treat corrupted datagrams as erasures.
func (p *ShardPacket) Encode() []byte {
	buf := make([]byte, ShardHeaderSize+len(p.Data)+CRCSize)
	binary.BigEndian.PutUint16(buf[0:2], ShardMagic)
	binary.BigEndian.PutUint32(buf[2:6], p.FrameSeq)
	buf[6] = p.Index
	buf[7] = p.Total
	buf[8] = p.DataShards
	binary.BigEndian.PutUint32(buf[9:13], p.FrameLen)
	copy(buf[ShardHeaderSize:], p.Data)

	end := ShardHeaderSize + len(p.Data)
	binary.BigEndian.PutUint32(buf[end:], crc32.ChecksumIEEE(buf[:end]))
	return buf
}

// DecodeShard parses a shard datagram.
func DecodeShard(data []byte) (*ShardPacket, error) {
	if len(data) < ShardHeaderSize+CRCSize {
		return nil, fmt.Errorf("%w: shard of %d bytes", ErrShortFrame, len(data))
	}
	if magic := binary.BigEndian.Uint16(data[0:2]); magic != ShardMagic {
		return nil, fmt.Errorf("bad shard magic 0x%04x", magic)
	}

	end := len(data) - CRCSize
	expected := binary.BigEndian.Uint32(data[end:])
	if actual := crc32.ChecksumIEEE(data[:end]); actual != expected {
		return nil, fmt.Errorf("%w: shard expected 0x%08x, got 0x%08x", ErrChecksum, expected, actual)
	}

	p := &ShardPacket{
		FrameSeq:   binary.BigEndian.Uint32(data[2:6]),
		Index:      data[6],
		Total:      data[7],
		DataShards: data[8],
		FrameLen:   binary.BigEndian.Uint32(data[9:13]),
		Data:       make([]byte, end-ShardHeaderSize),
	}
	copy(p.Data, data[ShardHeaderSize:end])

	if p.Total == 0 || p.Index >= p.Total || p.DataShards == 0 || p.DataShards > p.Total {
		return nil, fmt.Errorf("invalid shard %d/%d (data %d)", p.Index, p.Total, p.DataShards)
	}
	return p, nil
}

// SplitFrame erasure-codes an encoded frame into shard packets.
func SplitFrame(codec *fec.Codec, seq uint32, encoded []byte) ([]*ShardPacket, error) {
	if codec.TotalShards() > MaxShards {
		return nil, fmt.Errorf("split frame: %d shards exceed packet index range", codec.TotalShards())
	}
	if n := ceilDiv(len(encoded), codec.DataShards()); n > MaxShardData {
		return nil, fmt.Errorf("%w: frame %d needs %d-byte shards", ErrFrameTooLarge, seq, n)
	}

	shards, err := codec.Split(encoded)
	if err != nil {
		return nil, fmt.Errorf("split frame %d: %w", seq, err)
	}

	packets := make([]*ShardPacket, len(shards))
	for i, s := range shards {
		packets[i] = &ShardPacket{
			FrameSeq:   seq,
			Index:      uint8(i),
			Total:      uint8(len(shards)),
			DataShards: uint8(codec.DataShards()),
			FrameLen:   uint32(len(encoded)),
			Data:       s,
		}
	}
	return packets, nil
}
