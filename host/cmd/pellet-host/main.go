package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"pellet/host/config"
	"pellet/host/feeder"
	"pellet/host/logger"
	"pellet/host/serial"
	"pellet/host/sim"
)

var (
	configPath = flag.String("config", "", "YAML configuration file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config, ignored for USB CDC)")
	useSim     = flag.Bool("sim", false, "Talk to a simulated feeder instead of a serial port")
	evalOnly   = flag.Bool("e", false, "Run the command given as arguments and exit")
	outputJSON = flag.Bool("json", false, "Print results in JSON")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to init logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Named("pellet-host")

	client, simulator, stop, err := connect(cfg)
	if err != nil {
		log.Error("connect failed", zap.Error(err))
		os.Exit(1)
	}
	defer stop()

	if err := client.CheckConnection(context.Background()); err != nil {
		log.Error("feeder not responding", zap.Error(err))
		stop()
		os.Exit(1)
	}
	log.Info("feeder connected", zap.String("device", cfg.Serial.Device), zap.Bool("sim", cfg.Sim.Enabled))

	sh := NewShell(client, simulator, !*evalOnly, *outputJSON)
	if err := sh.Run(flag.Args()...); err != nil {
		log.Error("command failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *useSim {
		cfg.Sim.Enabled = true
	}
	return cfg, config.Validate(cfg)
}

// connect opens the feeder link. stop releases everything it started.
func connect(cfg *config.Config) (*feeder.Client, *sim.Simulator, func(), error) {
	opts := []feeder.Option{
		feeder.WithLogger(logger.Named("feeder")),
		feeder.WithCommandTimeout(cfg.Client.CommandTimeout),
		feeder.WithStallTimeout(cfg.Client.StallTimeout),
	}

	if !cfg.Sim.Enabled {
		client, err := feeder.Connect(&serial.Config{
			Device:      cfg.Serial.Device,
			Baud:        cfg.Serial.Baud,
			ReadTimeout: cfg.Serial.ReadTimeout,
		}, opts...)
		if err != nil {
			return nil, nil, nil, err
		}
		return client, nil, func() { client.Close() }, nil
	}

	simOpts := sim.FromConfig(cfg.Sim)
	simOpts.Logger = logger.Named("sim")
	s, err := sim.New(simOpts)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	client := feeder.New(serial.Wrap(s.HostPort()), opts...)
	stop := func() {
		client.Close()
		cancel()
		<-done
	}
	return client, s, stop, nil
}
