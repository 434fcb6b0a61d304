// Package congestion classifies edges from one tick of telemetry. It keeps no
// state: every call produces a fresh verdict.
package congestion

import "sort"

// EdgeObservation is the telemetry of one edge at one tick.
type EdgeObservation struct {
	EdgeID       string
	VehicleCount int
	MeanSpeed    float64
	WaitingTimes []float64
}

// Thresholds of the congestion rule. An edge is congested when
// (count > MinVehicles AND mean speed < MaxMeanSpeed) OR mean wait > MaxMeanWait.
type Thresholds struct {
	MinVehicles  int
	MaxMeanSpeed float64
	MaxMeanWait  float64
	// BusyVehicles only drives the visual edge status.
	BusyVehicles int
}

// DefaultThresholds returns the stock rule.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinVehicles:  5,
		MaxMeanSpeed: 5.0,
		MaxMeanWait:  10,
		BusyVehicles: 2,
	}
}

// MeanWaitingTime divides the summed waiting times by the vehicle count, or by
// one when the edge is empty.
func MeanWaitingTime(o EdgeObservation) float64 {
	var sum float64
	for _, w := range o.WaitingTimes {
		sum += w
	}
	div := o.VehicleCount
	if div < 1 {
		div = 1
	}
	return sum / float64(div)
}

// IsCongested applies the rule to one observation.
func (t Thresholds) IsCongested(o EdgeObservation) bool {
	if o.VehicleCount > t.MinVehicles && o.MeanSpeed < t.MaxMeanSpeed {
		return true
	}
	return MeanWaitingTime(o) > t.MaxMeanWait
}

// Classify returns the set of congested edge ids.
func (t Thresholds) Classify(obs []EdgeObservation) map[string]struct{} {
	out := make(map[string]struct{})
	for _, o := range obs {
		if t.IsCongested(o) {
			out[o.EdgeID] = struct{}{}
		}
	}
	return out
}

// Status is the visual state of an edge.
type Status string

const (
	StatusCongested Status = "congested"
	StatusBusy      Status = "busy"
	StatusFree      Status = "free"
	StatusUnknown   Status = "unknown"
)

// Status grades one observation for display.
func (t Thresholds) Status(o EdgeObservation) Status {
	switch {
	case t.IsCongested(o):
		return StatusCongested
	case o.VehicleCount > t.BusyVehicles:
		return StatusBusy
	default:
		return StatusFree
	}
}

// SortedIDs flattens an edge set into ascending order.
func SortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
