package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/placement"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/repository"
	"github.com/rs/zerolog"
)

// SensorArtifactName is the artifact name of a network's sensor file.
func SensorArtifactName(network string) string {
	return network + "/sensors.add.xml"
}

// PlacementResult is an optimizer run plus where its artifact was stored.
type PlacementResult struct {
	*placement.Result
	Network  string `json:"network"`
	Artifact string `json:"artifact"`
}

// PlacementService runs the sensor placement optimizer on catalog networks
// and stores the resulting sensor file.
type PlacementService struct {
	networks *NetworkCatalog
	store    repository.ArtifactStore
	log      zerolog.Logger
}

func NewPlacementService(networks *NetworkCatalog, store repository.ArtifactStore, log zerolog.Logger) *PlacementService {
	return &PlacementService{networks: networks, store: store, log: log}
}

// Place runs the optimizer once on the named network.
func (s *PlacementService) Place(ctx context.Context, network string, cfg placement.Config) (*PlacementResult, error) {
	g, ok := s.networks.Get(network)
	if !ok {
		return nil, fmt.Errorf("%w: unknown network %q", domain.ErrLoad, network)
	}

	res, err := placement.NewOptimizer(cfg, s.log.With().Str("network", network).Logger()).Run(g)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := placement.WriteSensors(&buf, res.Sensors); err != nil {
		return nil, fmt.Errorf("encode sensors: %w", err)
	}
	uri, err := s.store.Put(ctx, SensorArtifactName(network), buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &PlacementResult{Result: res, Network: network, Artifact: uri}, nil
}

// Sensors reads back the stored sensor file of a network. It returns an empty
// list when no placement has been run yet.
func (s *PlacementService) Sensors(ctx context.Context, network string) ([]domain.Sensor, error) {
	data, err := s.store.Get(ctx, SensorArtifactName(network))
	if errors.Is(err, repository.ErrArtifactNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return placement.ReadSensors(bytes.NewReader(data))
}
