package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/GoSim-25-26J-441/v2i-traffic/config"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/logger"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/placement"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
)

// RunPlaceSensors loads a network file, places sensors and writes the
// detector definitions to out (default sensors.add.xml).
func RunPlaceSensors(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: place-sensors <network> [out]")
	}
	out := "sensors.add.xml"
	if len(args) > 1 {
		out = args[1]
	}

	g, err := topology.LoadFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	policy, err := placement.PolicyFor(cfg.Placement.Policy)
	if err != nil {
		return err
	}

	res, err := placement.NewOptimizer(placement.Config{
		MinDistance:   cfg.Placement.MinDistance,
		MinLaneLength: cfg.Placement.MinLaneLength,
		Policy:        policy,
	}, logger.Component("placement")).Run(g)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()
	if err := placement.WriteSensors(f, res.Sensors); err != nil {
		return err
	}

	fmt.Printf("Wrote: %s\n", out)
	fmt.Printf("Coverage: %d/%d edges\n", len(res.Covered), res.TargetEdges)
	fmt.Printf("Sensors (%d):\n", len(res.Sensors))
	for _, s := range res.Sensors {
		fmt.Printf(" - %s lane=%s pos=%.2f\n", s.ID, s.Lane, s.Position)
	}
	for _, node := range res.Dropped {
		fmt.Printf(" ! %s has no lane long enough\n", node)
	}
	return nil
}
