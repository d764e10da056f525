package protocol

import (
	"errors"
	"fmt"

	"github.com/jeongseonghan/fft-ocean/internal/fec"
)

// Datagram limits
const (
	MaxDatagramSize = 65507 // largest UDP payload over IPv4
	MaxShardData    = MaxDatagramSize - ShardHeaderSize - CRCSize

	// TargetShardData is the preferred shard payload, small enough for one
	// Ethernet frame after headers.
	TargetShardData = 1200

	// MaxShards bounds data+parity per frame: the shard index is one byte
	// and the GF(2^8) codec stops at 256.
	MaxShards = 255
)

// ErrFrameTooLarge is returned when a frame cannot be split into at most
// MaxShards datagrams of at most MaxDatagramSize bytes.
var ErrFrameTooLarge = errors.New("protocol: frame too large for datagram stream")

// Layout is the shard split used for one frame.
type Layout struct {
	DataShards   int
	ParityShards int
}

// Total returns DataShards + ParityShards.
func (l Layout) Total() int { return l.DataShards + l.ParityShards }

// ShardLen returns the per-shard payload length for a frame of frameLen bytes.
func (l Layout) ShardLen(frameLen int) int { return ceilDiv(frameLen, l.DataShards) }

// HeightFrameLen returns the encoded length of a HEIGHTS frame for a
// size×size grid.
func HeightFrameLen(size int) int {
	return HeaderSize + 4*size*size + CRCSize
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// LayoutFor picks the shard layout for a frame of frameLen bytes.
//
// minData is the smallest data-shard count; parity/minData is the parity
// ratio kept as the data-shard count grows. Data shards are added until
// each carries about TargetShardData bytes. When that would exceed
// MaxShards the split is capped and shards grow instead, up to
// MaxShardData.
func LayoutFor(frameLen, minData, parity int) (Layout, error) {
	if minData < 1 || parity < 1 || minData+parity > MaxShards {
		return Layout{}, fmt.Errorf("invalid shard counts %d+%d (need data >= 1, parity >= 1, total <= %d)",
			minData, parity, MaxShards)
	}
	if frameLen < 1 {
		return Layout{}, fmt.Errorf("invalid frame length %d", frameLen)
	}

	data := max(minData, ceilDiv(frameLen, TargetShardData))
	data = min(data, frameLen)
	par := ceilDiv(data*parity, minData)

	if data+par > MaxShards {
		data = MaxShards * minData / (minData + parity)
		par = min(ceilDiv(data*parity, minData), MaxShards-data)
	}

	l := Layout{DataShards: data, ParityShards: par}
	if n := l.ShardLen(frameLen); n > MaxShardData {
		return Layout{}, fmt.Errorf("%w: %d bytes need %d-byte shards, limit %d",
			ErrFrameTooLarge, frameLen, n, MaxShardData)
	}
	return l, nil
}

// codecCache reuses Reed-Solomon codecs per layout.
type codecCache struct {
	codecs map[Layout]*fec.Codec
}

// maxCachedCodecs bounds the cache; layouts only change with frame size.
const maxCachedCodecs = 16

func newCodecCache() *codecCache {
	return &codecCache{codecs: make(map[Layout]*fec.Codec)}
}

func (c *codecCache) get(l Layout) (*fec.Codec, error) {
	if codec, ok := c.codecs[l]; ok {
		return codec, nil
	}
	codec, err := fec.NewCodec(l.DataShards, l.ParityShards)
	if err != nil {
		return nil, err
	}
	if len(c.codecs) >= maxCachedCodecs {
		clear(c.codecs)
	}
	c.codecs[l] = codec
	return codec, nil
}
