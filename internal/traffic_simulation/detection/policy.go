// Package detection slows vehicles down as they pass a roadside sensor.
package detection

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator"
	"github.com/rs/zerolog"
)

const (
	DefaultRange      = 30.0
	DefaultSlowFactor = 0.8
	DefaultMinSpeed   = 5.0
)

// SpeedController is the simulator command the policy issues.
type SpeedController interface {
	SetSpeed(ctx context.Context, vehicleID string, speed float64) error
}

// Detection is one vehicle seen by one sensor.
type Detection struct {
	SensorID  string  `json:"sensor_id"`
	VehicleID string  `json:"vehicle_id"`
	Lane      string  `json:"lane"`
	Distance  float64 `json:"distance"`
	OldSpeed  float64 `json:"old_speed"`
	NewSpeed  float64 `json:"new_speed"`
}

type Policy struct {
	Range      float64
	SlowFactor float64
	MinSpeed   float64

	byLane map[string][]domain.Sensor
	log    zerolog.Logger
}

// NewPolicy indexes sensors by lane, keeping the artifact order per lane.
func NewPolicy(sensors []domain.Sensor, log zerolog.Logger) *Policy {
	p := &Policy{
		Range:      DefaultRange,
		SlowFactor: DefaultSlowFactor,
		MinSpeed:   DefaultMinSpeed,
		byLane:     make(map[string][]domain.Sensor),
		log:        log,
	}
	for _, s := range sensors {
		p.byLane[s.Lane] = append(p.byLane[s.Lane], s)
	}
	return p
}

// Sensors returns the number of indexed sensors.
func (p *Policy) Sensors() int {
	n := 0
	for _, ss := range p.byLane {
		n += len(ss)
	}
	return n
}

// Match returns the first sensor on the vehicle's lane strictly within range.
func (p *Policy) Match(v simulator.Vehicle) (domain.Sensor, float64, bool) {
	for _, s := range p.byLane[v.Lane] {
		d := math.Abs(v.LanePosition - s.Position)
		if d < p.Range {
			return s, d, true
		}
	}
	return domain.Sensor{}, 0, false
}

// TargetSpeed is the slowed-down speed, never below MinSpeed.
func (p *Policy) TargetSpeed(speed float64) float64 {
	return math.Max(speed*p.SlowFactor, p.MinSpeed)
}

// Apply slows every detected vehicle once. A failure for one vehicle is
// logged and skipped; domain.ErrSimulatorUnavailable stops the pass.
func (p *Policy) Apply(ctx context.Context, vehicles []simulator.Vehicle, ctl SpeedController) ([]Detection, error) {
	if len(p.byLane) == 0 {
		return nil, nil
	}
	sorted := append([]simulator.Vehicle(nil), vehicles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var out []Detection
	for _, v := range sorted {
		s, dist, ok := p.Match(v)
		if !ok {
			continue
		}
		speed := p.TargetSpeed(v.Speed)
		if err := ctl.SetSpeed(ctx, v.ID, speed); err != nil {
			if errors.Is(err, domain.ErrSimulatorUnavailable) {
				return out, err
			}
			p.log.Warn().Err(err).Str("vehicle_id", v.ID).Str("sensor_id", s.ID).Msg("set speed failed")
			continue
		}
		p.log.Debug().
			Str("vehicle_id", v.ID).
			Str("sensor_id", s.ID).
			Float64("distance", dist).
			Float64("speed", speed).
			Msg("vehicle detected")
		out = append(out, Detection{
			SensorID:  s.ID,
			VehicleID: v.ID,
			Lane:      v.Lane,
			Distance:  dist,
			OldSpeed:  v.Speed,
			NewSpeed:  speed,
		})
	}
	return out, nil
}
