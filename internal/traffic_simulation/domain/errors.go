package domain

import "errors"

var (
	ErrLoad                 = errors.New("topology load failed")
	ErrNoPathFound          = errors.New("no path found")
	ErrNoQualifyingLane     = errors.New("no qualifying lane")
	ErrSimulatorUnavailable = errors.New("simulator unavailable")

	ErrSessionNotFound      = errors.New("simulation session not found")
	ErrSessionAlreadyExists = errors.New("simulation session already exists")
	ErrInvalidStatus        = errors.New("invalid session status")
)
