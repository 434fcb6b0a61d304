package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/GoSim-25-26J-441/v2i-traffic/config"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/logger"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/congestion"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/detection"
	traffichttp "github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/http"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/placement"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/reroute"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/service"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RunSession drives one session against the simulator bridge without the
// API server and prints the outcome. Passing "-" as sensors disables detection.
func RunSession(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: run <network> [sensors] [ticks]")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	g, err := topology.LoadFile(args[0])
	if err != nil {
		return err
	}

	var policy *detection.Policy
	if len(args) > 1 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		sensors, err := placement.ReadSensors(f)
		f.Close()
		if err != nil {
			return err
		}
		policy = detection.NewPolicy(sensors, logger.Component("detection"))
	}

	maxTicks := cfg.Simulator.MaxTicks
	if len(args) > 2 {
		if maxTicks, err = strconv.ParseInt(args[2], 10, 64); err != nil {
			return fmt.Errorf("invalid ticks %q: %w", args[2], err)
		}
	}

	network := strings.SplitN(filepath.Base(args[0]), ".", 2)[0]
	sessionID := uuid.New().String()
	sim := traffichttp.NewSimulatorClient(cfg.Simulator.URL, sessionID, network, cfg.Simulator.Timeout)

	destination, err := reroute.PolicyFor(cfg.Reroute.DestinationPolicy, cfg.Reroute.DestinationEdge)
	if err != nil {
		return err
	}

	runner, err := service.NewRunner(sessionID, sim, g, service.RunnerOptions{
		Thresholds:  congestion.DefaultThresholds(),
		Destination: destination,
		Detection:   policy,
		Logger:      logger.Component("runner"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := rate.NewLimiter(rate.Every(cfg.Simulator.TickInterval), 1)
	runErr := runner.Run(ctx, limiter, maxTicks)

	rerouted, notRerouted := runner.Engine().Distribution()
	series := runner.Aggregator().Series()
	fmt.Printf("Session %s on %s: %d ticks\n", sessionID, network, runner.Ticks())
	fmt.Printf("Destination: %s\n", runner.Engine().Destination())
	fmt.Printf("Rerouted: %d, not rerouted: %d\n", rerouted, notRerouted)
	if n := series.Len(); n > 0 {
		fmt.Printf("Last tick: %d congested edges, %d rerouted vehicles\n", series.Congested[n-1], series.Rerouted[n-1])
	}
	return runErr
}
