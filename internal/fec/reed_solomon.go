// Package fec provides Reed-Solomon erasure coding for frames that travel
// over lossy datagram transports.
package fec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// ErrTooFewShards is returned when more shards are missing than the parity
// can recover.
var ErrTooFewShards = errors.New("fec: too few shards to reconstruct")

const (
	DefaultDataShards   = 10
	DefaultParityShards = 4
)

// Codec splits a payload into data + parity shards and joins them back,
// recovering up to ParityShards missing shards.
type Codec struct {
	enc        reedsolomon.Encoder
	dataShards int
	parShards  int
}

// NewCodec creates a codec with the given shard counts.
func NewCodec(dataShards, parityShards int) (*Codec, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("create reed-solomon encoder: %w", err)
	}
	return &Codec{
		enc:        enc,
		dataShards: dataShards,
		parShards:  parityShards,
	}, nil
}

// NewDefaultCodec creates a 10+4 codec.
func NewDefaultCodec() (*Codec, error) {
	return NewCodec(DefaultDataShards, DefaultParityShards)
}

// Split returns DataShards+ParityShards equally sized shards for payload.
// The last data shard is zero padded; Join needs the original size to trim it.
func (c *Codec) Split(payload []byte) ([][]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("split: empty payload")
	}

	// Split may reuse payload's backing array for the shards.
	buf := make([]byte, len(payload))
	copy(buf, payload)

	shards, err := c.enc.Split(buf)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	if err := c.enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("encode parity: %w", err)
	}
	return shards, nil
}

// Join reconstructs missing (nil) shards and returns the first size bytes
// of the data. shards must have DataShards+ParityShards entries.
func (c *Codec) Join(shards [][]byte, size int) ([]byte, error) {
	total := c.dataShards + c.parShards
	if len(shards) != total {
		return nil, fmt.Errorf("join: got %d shards, want %d", len(shards), total)
	}

	present := 0
	for _, s := range shards {
		if s != nil {
			present++
		}
	}
	if present < c.dataShards {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTooFewShards, present, c.dataShards)
	}

	if present < total {
		if err := c.enc.ReconstructData(shards); err != nil {
			return nil, fmt.Errorf("reconstruct: %w", err)
		}
	}

	var out bytes.Buffer
	out.Grow(size)
	if err := c.enc.Join(&out, shards, size); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	return out.Bytes(), nil
}

// Verify reports whether the parity shards match the data shards.
// All shards must be present.
func (c *Codec) Verify(shards [][]byte) (bool, error) {
	return c.enc.Verify(shards)
}

// DataShards returns the number of data shards.
func (c *Codec) DataShards() int { return c.dataShards }

// ParityShards returns the number of parity shards.
func (c *Codec) ParityShards() int { return c.parShards }

// TotalShards returns DataShards + ParityShards.
func (c *Codec) TotalShards() int { return c.dataShards + c.parShards }
