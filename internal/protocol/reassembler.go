package protocol

import (
	"fmt"
)

// DefaultMaxPending bounds the number of incomplete frames a Reassembler
// tracks at once.
const DefaultMaxPending = 8

// Reassembler collects shard packets and rebuilds encoded frames once
// enough shards of a frame have arrived. Each shard carries its frame's
// layout, so frames of different sizes can share one stream. Frames older
// than the newest completed one are discarded. Not safe for concurrent use.
type Reassembler struct {
	codecs     *codecCache
	maxPending int
	pending    map[uint32]*partialFrame

	lastDone uint32
	haveDone bool

	// Stats
	completed int
	dropped   int
}

type partialFrame struct {
	layout   Layout
	shards   [][]byte
	have     int
	frameLen uint32
}

// NewReassembler creates a reassembler tracking at most maxPending
// incomplete frames.
func NewReassembler(maxPending int) *Reassembler {
	if maxPending < 1 {
		maxPending = DefaultMaxPending
	}
	return &Reassembler{
		codecs:     newCodecCache(),
		maxPending: maxPending,
		pending:    make(map[uint32]*partialFrame),
	}
}

// seqAfter reports whether a is newer than b, tolerating wrap-around.
func seqAfter(a, b uint32) bool {
	return int32(a-b) > 0
}

// Add feeds one shard. When it completes a frame, the encoded frame bytes
// are returned with ok set.
func (r *Reassembler) Add(p *ShardPacket) (frame []byte, ok bool, err error) {
	if p.DataShards == 0 || p.Total <= p.DataShards {
		return nil, false, fmt.Errorf("invalid shard layout %d/%d", p.DataShards, p.Total)
	}
	if p.Index >= p.Total {
		return nil, false, fmt.Errorf("shard index %d out of range %d", p.Index, p.Total)
	}
	if r.haveDone && !seqAfter(p.FrameSeq, r.lastDone) {
		return nil, false, nil
	}

	layout := Layout{DataShards: int(p.DataShards), ParityShards: int(p.Total - p.DataShards)}

	pf, exists := r.pending[p.FrameSeq]
	if !exists {
		pf = &partialFrame{
			layout:   layout,
			shards:   make([][]byte, layout.Total()),
			frameLen: p.FrameLen,
		}
		r.pending[p.FrameSeq] = pf
		r.evict()
		if _, kept := r.pending[p.FrameSeq]; !kept {
			return nil, false, nil
		}
	}
	if pf.layout != layout {
		return nil, false, fmt.Errorf("frame %d: shard layout %d/%d, expected %d/%d",
			p.FrameSeq, layout.DataShards, layout.Total(), pf.layout.DataShards, pf.layout.Total())
	}
	if pf.frameLen != p.FrameLen {
		return nil, false, fmt.Errorf("frame %d: shard declares length %d, expected %d", p.FrameSeq, p.FrameLen, pf.frameLen)
	}
	if pf.shards[p.Index] != nil {
		return nil, false, nil
	}
	for _, s := range pf.shards {
		if s != nil && len(s) != len(p.Data) {
			return nil, false, fmt.Errorf("frame %d: shard size %d, expected %d", p.FrameSeq, len(p.Data), len(s))
		}
	}

	pf.shards[p.Index] = append([]byte(nil), p.Data...)
	pf.have++
	if pf.have < pf.layout.DataShards {
		return nil, false, nil
	}

	delete(r.pending, p.FrameSeq)
	codec, err := r.codecs.get(pf.layout)
	if err != nil {
		r.dropped++
		return nil, false, fmt.Errorf("frame %d: %w", p.FrameSeq, err)
	}
	out, err := codec.Join(pf.shards, int(pf.frameLen))
	if err != nil {
		r.dropped++
		return nil, false, fmt.Errorf("frame %d: %w", p.FrameSeq, err)
	}

	r.lastDone = p.FrameSeq
	r.haveDone = true
	r.completed++
	for seq := range r.pending {
		if !seqAfter(seq, r.lastDone) {
			delete(r.pending, seq)
			r.dropped++
		}
	}
	return out, true, nil
}

// evict drops the oldest pending frames beyond maxPending.
func (r *Reassembler) evict() {
	for len(r.pending) > r.maxPending {
		var oldest uint32
		first := true
		for seq := range r.pending {
			if first || seqAfter(oldest, seq) {
				oldest = seq
				first = false
			}
		}
		delete(r.pending, oldest)
		r.dropped++
	}
}

// Pending returns the number of incomplete frames being tracked.
func (r *Reassembler) Pending() int { return len(r.pending) }

// Stats returns completed and dropped frame counts.
func (r *Reassembler) Stats() (completed, dropped int) {
	return r.completed, r.dropped
}
