package topology

import (
	"fmt"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
)

// LoadError reports malformed network data. It matches domain.ErrLoad.
type LoadError struct {
	Source  string
	Element string
	Reason  string
	Err     error
}

func (e *LoadError) Error() string {
	msg := "load"
	if e.Source != "" {
		msg += " " + e.Source
	}
	if e.Element != "" {
		msg += ": " + e.Element
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == domain.ErrLoad }

func withSource(err error, source string) error {
	if le, ok := err.(*LoadError); ok && le.Source == "" {
		le.Source = source
	}
	return err
}
