package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagAddr      = flag.String("addr", "", "HTTP listen address")
	flagSize      = flag.Int("size", 0, "Grid dimension (power of two)")
	flagSeed      = flag.Int64("seed", 0, "Random seed for the initial spectrum")
	flagWindSpeed = flag.Float64("wind-speed", 0, "Wind speed in m/s")
	flagUDP       = flag.String("udp", "", "Stream frames to this UDP address")
	flagAudio     = flag.Bool("audio", false, "Play surf ambience")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagAddr != "" {
		cfg.Server.Addr = *flagAddr
	}
	if *flagSize > 0 {
		cfg.Simulation.Size = *flagSize
	}
	if *flagSeed != 0 {
		cfg.Simulation.Seed = *flagSeed
	}
	if *flagWindSpeed > 0 {
		cfg.Simulation.WindSpeed = float32(*flagWindSpeed)
	}
	if *flagUDP != "" {
		cfg.Stream.UDPAddr = *flagUDP
	}
	if *flagAudio {
		cfg.Audio.Enabled = true
	}
}
