package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guptarohit/asciigraph"
	"go.uber.org/zap"

	"github.com/jeongseonghan/fft-ocean/internal/audio"
	"github.com/jeongseonghan/fft-ocean/internal/config"
	"github.com/jeongseonghan/fft-ocean/internal/logger"
	"github.com/jeongseonghan/fft-ocean/internal/ocean"
	"github.com/jeongseonghan/fft-ocean/internal/server"
)

var (
	listDevices = flag.Bool("list-devices", false, "List audio output devices and exit")
	preview     = flag.Bool("preview", false, "Plot the centre row of a few ticks and exit")
	saveConfig  = flag.Bool("save-config", false, "Write the effective config to the user config dir and exit")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *saveConfig {
		path, err := cfg.Save()
		if err != nil {
			logger.Fatal("Failed to save config", zap.Error(err))
		}
		fmt.Printf("Config written to %s\n", path)
		return
	}

	if *listDevices {
		if err := audio.Init(); err != nil {
			logger.Fatal("Failed to initialize PortAudio", zap.Error(err))
		}
		defer audio.Terminate()
		if err := audio.PrintDevices(); err != nil {
			logger.Fatal("Failed to list devices", zap.Error(err))
		}
		return
	}

	params, err := cfg.Simulation.Params()
	if err != nil {
		logger.Fatal("Invalid simulation config", zap.Error(err))
	}
	sim, err := ocean.New(params, rand.New(rand.NewSource(cfg.Simulation.Seed)))
	if err != nil {
		logger.Fatal("Failed to create simulation", zap.Error(err))
	}
	logger.Info("Simulation ready",
		zap.Int("size", params.Size),
		zap.Float32("extent", params.Extent),
		zap.Float32("windSpeed", params.WindSpeed),
		zap.String("draw", params.Draw.String()),
		zap.Int64("seed", cfg.Simulation.Seed))

	if *preview {
		runPreview(sim)
		return
	}

	if err := run(cfg, sim); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func run(cfg *config.Config, sim *ocean.Simulation) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := server.NewWSHub()
	runner := server.NewRunner(sim, cfg.Server.TickRate, hub)

	var streamer *server.UDPStreamer
	if cfg.Stream.UDPAddr != "" {
		var err error
		streamer, err = server.NewUDPStreamer(cfg.Stream.UDPAddr,
			cfg.Stream.DataShards, cfg.Stream.ParityShards, sim.Size())
		if err != nil {
			return fmt.Errorf("udp stream: %w", err)
		}
		defer streamer.Close()
		runner.AddSink(streamer)
	}

	if cfg.Audio.Enabled {
		player, err := startAudio(cfg.Audio.Volume, cfg.Simulation.Seed)
		if err != nil {
			logger.Warn("Surf audio disabled", zap.Error(err))
		} else {
			defer func() {
				player.Close()
				audio.Terminate()
			}()
			runner.AddSink(player)
		}
	}

	handlers := server.NewHandlers(runner, hub, streamer)
	srv := server.NewServer(cfg.Server.Addr, handlers, cfg.Server.StaticDir)

	go runner.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	hub.BroadcastStatus("stopping", "server shutting down")
	hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func startAudio(volume float32, seed int64) (*audio.Player, error) {
	if err := audio.Init(); err != nil {
		return nil, fmt.Errorf("initialize PortAudio: %w", err)
	}

	synth, err := audio.NewSurfSynth(audio.SynthBlockSize, volume, rand.New(rand.NewSource(seed+1)))
	if err != nil {
		audio.Terminate()
		return nil, err
	}
	player := audio.NewPlayer(synth)
	if err := player.OpenOutput(); err != nil {
		audio.Terminate()
		return nil, err
	}
	if err := player.Start(); err != nil {
		player.Close()
		audio.Terminate()
		return nil, err
	}
	return player, nil
}

// runPreview ticks a few times and plots the centre row of each field.
func runPreview(sim *ocean.Simulation) {
	n := sim.Size()
	for _, t := range []float64{0, 1, 2} {
		heights := sim.Tick(t)
		row := make([]float64, n)
		for j := range row {
			row[j] = float64(heights[(n/2)*n+j])
		}
		st := ocean.Stats(heights)
		fmt.Println(asciigraph.Plot(row,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("t=%.1fs  mean=%.3g  rms=%.3g  min=%.3g  max=%.3g",
				t, st.Mean, st.RMS, st.Min, st.Max))))
		fmt.Println()
	}
}
