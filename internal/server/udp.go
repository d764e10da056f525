package server

import (
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/jeongseonghan/fft-ocean/internal/logger"
	"github.com/jeongseonghan/fft-ocean/internal/protocol"
)

// UDPStats counts stream activity.
type UDPStats struct {
	Addr         string `json:"addr"`
	DataShards   int    `json:"dataShards"`
	ParityShards int    `json:"parityShards"`
	Frames       int    `json:"frames"`
	Shards       int    `json:"shards"`
	Bytes        int    `json:"bytes"`
	Errors       int    `json:"errors"`
}

// UDPStreamer sends every height frame to one UDP destination as
// Reed-Solomon shards, one datagram per shard.
type UDPStreamer struct {
	conn      *net.UDPConn
	transport *protocol.Transport
	log       *zap.Logger
	warned    atomic.Bool
}

// NewUDPStreamer dials addr and prepares a shard transport for a
// gridSize×gridSize field. dataShards and parityShards are the minimum
// split; larger frames get more shards at the same parity ratio. Grids
// whose frames cannot fit the datagram limit are rejected here.
func NewUDPStreamer(addr string, dataShards, parityShards, gridSize int) (*UDPStreamer, error) {
	layout, err := protocol.LayoutFor(protocol.HeightFrameLen(gridSize), dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("%d×%d grid: %w", gridSize, gridSize, err)
	}

	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	transport, err := protocol.NewTransport(dataShards, parityShards, func(d []byte) error {
		_, err := conn.Write(d)
		return err
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	s := &UDPStreamer{
		conn:      conn,
		transport: transport,
		log:       logger.Named("udp"),
	}
	s.log.Info("Streaming frames",
		zap.String("addr", raddr.String()),
		zap.Int("dataShards", layout.DataShards),
		zap.Int("parityShards", layout.ParityShards),
		zap.Int("shardBytes", layout.ShardLen(protocol.HeightFrameLen(gridSize))))
	return s, nil
}

// Publish implements FrameSink. Only the first send error is logged at
// warn level; later ones go to debug.
func (s *UDPStreamer) Publish(f *protocol.HeightFrame) {
	if err := s.transport.SendFrame(f); err != nil {
		if s.warned.CompareAndSwap(false, true) {
			s.log.Warn("Send failed", zap.Uint32("seq", f.Seq), zap.Error(err))
		} else {
			s.log.Debug("Send failed", zap.Uint32("seq", f.Seq), zap.Error(err))
		}
	}
}

// Stats returns stream counters.
func (s *UDPStreamer) Stats() UDPStats {
	frames, shards, bytes, errs := s.transport.Stats()
	layout := s.transport.Layout()
	return UDPStats{
		Addr:         s.conn.RemoteAddr().String(),
		DataShards:   layout.DataShards,
		ParityShards: layout.ParityShards,
		Frames:       frames,
		Shards:       shards,
		Bytes:        bytes,
		Errors:       errs,
	}
}

// Close closes the UDP socket.
func (s *UDPStreamer) Close() error {
	return s.conn.Close()
}
