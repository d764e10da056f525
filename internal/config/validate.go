package config

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap/zapcore"

	"github.com/jeongseonghan/fft-ocean/internal/protocol"
)

// MaxTickRate bounds server.tick_rate.
const MaxTickRate = 1000

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if p, err := c.Simulation.Params(); err != nil {
		errs = append(errs, fmt.Errorf("simulation: %w", err))
	} else if err := p.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("simulation: %w", err))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.TickRate < 1 || c.Server.TickRate > MaxTickRate {
		errs = append(errs, fmt.Errorf("server.tick_rate %d out of range [1, %d]", c.Server.TickRate, MaxTickRate))
	}

	if c.Stream.UDPAddr != "" {
		frameLen := protocol.HeightFrameLen(c.Simulation.Size)
		if _, err := protocol.LayoutFor(frameLen, c.Stream.DataShards, c.Stream.ParityShards); err != nil {
			errs = append(errs, fmt.Errorf("stream: size %d: %w", c.Simulation.Size, err))
		}
	}

	if v := float64(c.Audio.Volume); math.IsNaN(v) || v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("audio.volume %v out of range [0, 1]", c.Audio.Volume))
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errs...)
}
