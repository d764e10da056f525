package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/jeongseonghan/fft-ocean/internal/logger"
	"github.com/jeongseonghan/fft-ocean/internal/ocean"
	"github.com/jeongseonghan/fft-ocean/internal/protocol"
)

const (
	SampleRate  = 44100
	NumChannels = 1
)

// Init initializes PortAudio.
func Init() error {
	return portaudio.Initialize()
}

// Terminate cleans up PortAudio.
func Terminate() error {
	return portaudio.Terminate()
}

// Player plays surf noise from a SurfSynth on the default output device.
// It follows the sea state through Publish.
type Player struct {
	synth  *SurfSynth
	stream *portaudio.Stream
	buf    []float32
	log    *zap.Logger
	mu     sync.Mutex

	stop chan struct{}
	done chan struct{}
}

// NewPlayer creates a player for synth.
func NewPlayer(synth *SurfSynth) *Player {
	return &Player{
		synth: synth,
		buf:   make([]float32, synth.BlockLen()),
		log:   logger.Named("audio"),
	}
}

// OpenOutput opens the default output stream.
func (p *Player) OpenOutput() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stream, err := portaudio.OpenDefaultStream(
		0,           // input channels
		NumChannels, // output channels
		float64(SampleRate),
		len(p.buf),
		p.buf,
	)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	p.stream = stream
	return nil
}

// Start starts the stream and the goroutine feeding it.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return fmt.Errorf("output stream not opened")
	}
	if p.stop != nil {
		return fmt.Errorf("player already started")
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.loop(p.stop, p.done)
	p.log.Info("Surf playback started",
		zap.Int("sampleRate", SampleRate),
		zap.Int("framesPerBuffer", len(p.buf)))
	return nil
}

func (p *Player) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := p.Write(p.synth.Next()); err != nil {
			p.log.Error("Playback stopped", zap.Error(err))
			return
		}
	}
}

// Write writes one block of samples to the output stream.
func (p *Player) Write(samples []float32) error {
	if p.stream == nil {
		return fmt.Errorf("output stream not opened")
	}
	copy(p.buf, samples)
	return p.stream.Write()
}

// Publish implements the server's FrameSink by steering loudness from the
// field RMS.
func (p *Player) Publish(f *protocol.HeightFrame) {
	if f.Type != protocol.TypeHeights {
		return
	}
	p.synth.SetLevel(ocean.Stats(f.Heights).RMS)
}

// Close stops playback and closes the stream.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		close(p.stop)
		<-p.done
		p.stop = nil
	}
	if p.stream == nil {
		return nil
	}

	var errs []error
	if err := p.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := p.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	p.stream = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
