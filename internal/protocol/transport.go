package protocol

import (
	"fmt"
	"sync"
)

// DatagramSender transmits one datagram.
type DatagramSender func(datagram []byte) error

// Transport streams height frames as erasure-coded shard datagrams.
// Frames are fire-and-forget; receivers recover lost shards from parity.
// The shard layout is chosen per frame with LayoutFor, so every datagram
// fits the UDP payload limit whatever the grid size.
type Transport struct {
	minData int
	parity  int
	sender  DatagramSender

	mu     sync.Mutex
	codecs *codecCache
	layout Layout

	// Stats
	framesSent int
	shardsSent int
	bytesSent  int
	errors     int
}

// NewTransport creates a transport that sends shards through sender.
// dataShards is the minimum data-shard count and parityShards/dataShards
// the parity ratio kept for larger frames.
func NewTransport(dataShards, parityShards int, sender DatagramSender) (*Transport, error) {
	if _, err := LayoutFor(1, dataShards, parityShards); err != nil {
		return nil, err
	}
	return &Transport{
		minData: dataShards,
		parity:  parityShards,
		sender:  sender,
		codecs:  newCodecCache(),
	}, nil
}

// SendFrame encodes frame, splits it into shards and sends every shard.
// Individual send failures are counted; the first one is returned after
// the remaining shards have been attempted.
func (t *Transport) SendFrame(frame *HeightFrame) error {
	encoded := frame.Encode()

	t.mu.Lock()
	defer t.mu.Unlock()

	packets, err := t.split(frame.Seq, encoded)
	if err != nil {
		t.errors++
		return err
	}

	var firstErr error
	for _, p := range packets {
		dgram := p.Encode()
		if err := t.sender(dgram); err != nil {
			t.errors++
			if firstErr == nil {
				firstErr = fmt.Errorf("send shard %d of frame %d: %w", p.Index, p.FrameSeq, err)
			}
			continue
		}
		t.shardsSent++
		t.bytesSent += len(dgram)
	}
	if firstErr == nil {
		t.framesSent++
	}
	return firstErr
}

func (t *Transport) split(seq uint32, encoded []byte) ([]*ShardPacket, error) {
	layout, err := LayoutFor(len(encoded), t.minData, t.parity)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", seq, err)
	}
	codec, err := t.codecs.get(layout)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", seq, err)
	}
	t.layout = layout
	return SplitFrame(codec, seq, encoded)
}

// Layout returns the shard layout of the last frame sent.
func (t *Transport) Layout() Layout {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.layout
}

// Stats returns transport statistics.
func (t *Transport) Stats() (frames, shards, bytes, errors int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.framesSent, t.shardsSent, t.bytesSent, t.errors
}

// Receiver decodes shard datagrams back into height frames.
type Receiver struct {
	reasm *Reassembler

	// Stats
	corrupt int
}

// NewReceiver creates a receiver. The shard layout is read from each
// datagram.
func NewReceiver() *Receiver {
	return &Receiver{reasm: NewReassembler(DefaultMaxPending)}
}

// Receive feeds one datagram. Corrupt datagrams are counted and treated as
// lost shards. A frame is returned once it has been rebuilt.
func (r *Receiver) Receive(datagram []byte) (*HeightFrame, error) {
	p, err := DecodeShard(datagram)
	if err != nil {
		r.corrupt++
		return nil, nil
	}

	data, ok, err := r.reasm.Add(p)
	if err != nil || !ok {
		return nil, err
	}
	return DecodeFrame(data)
}

// Stats returns completed, dropped and corrupt counts.
func (r *Receiver) Stats() (completed, dropped, corrupt int) {
	c, d := r.reasm.Stats()
	return c, d, r.corrupt
}
