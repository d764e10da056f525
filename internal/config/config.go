// Package config handles ocean server configuration loading and management.
package config

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/jeongseonghan/fft-ocean/internal/ocean"
)

// Config holds all server settings.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Server     ServerConfig     `yaml:"server"`
	Stream     StreamConfig     `yaml:"stream"`
	Audio      AudioConfig      `yaml:"audio"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SimulationConfig holds the wave model parameters.
type SimulationConfig struct {
	Size             int        `yaml:"size"`   // grid dimension, power of two
	Extent           float32    `yaml:"extent"` // metres
	Amplitude        float32    `yaml:"amplitude"`
	PhillipsConstant float32    `yaml:"phillips_constant"`
	WindSpeed        float32    `yaml:"wind_speed"`
	WindDirection    [2]float32 `yaml:"wind_direction"`
	Choppiness       float32    `yaml:"choppiness"`
	Seed             int64      `yaml:"seed"`
	Draw             string     `yaml:"draw"` // uniform or gaussian
}

// ServerConfig holds HTTP and tick loop settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	TickRate  int    `yaml:"tick_rate"` // ticks per second
}

// StreamConfig holds the erasure-coded UDP frame stream settings.
type StreamConfig struct {
	UDPAddr      string `yaml:"udp_addr"` // empty disables the stream
	DataShards   int    `yaml:"data_shards"`
	ParityShards int    `yaml:"parity_shards"`
}

// AudioConfig holds surf ambience settings.
type AudioConfig struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float32 `yaml:"volume"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	p := ocean.DefaultParams()
	return &Config{
		Simulation: SimulationConfig{
			Size:             p.Size,
			Extent:           p.Extent,
			Amplitude:        p.Amplitude,
			PhillipsConstant: p.PhillipsConstant,
			WindSpeed:        p.WindSpeed,
			WindDirection:    [2]float32{1, 1},
			Choppiness:       p.Choppiness,
			Seed:             1,
			Draw:             p.Draw.String(),
		},
		Server: ServerConfig{
			Addr:      "0.0.0.0:8080",
			StaticDir: "./web/static",
			TickRate:  30,
		},
		Stream: StreamConfig{
			UDPAddr:      "",
			DataShards:   10,
			ParityShards: 4,
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  0.5,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Params converts the simulation section into ocean parameters.
// Validation is left to ocean.New.
func (s SimulationConfig) Params() (ocean.Params, error) {
	draw, err := ocean.ParseDrawMode(s.Draw)
	if err != nil {
		return ocean.Params{}, err
	}
	return ocean.Params{
		Size:             s.Size,
		Extent:           s.Extent,
		Amplitude:        s.Amplitude,
		PhillipsConstant: s.PhillipsConstant,
		WindSpeed:        s.WindSpeed,
		WindDirection:    mgl32.Vec2(s.WindDirection),
		Choppiness:       s.Choppiness,
		Draw:             draw,
	}, nil
}
