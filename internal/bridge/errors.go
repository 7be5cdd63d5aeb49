package bridge

import (
	"errors"

	"github.com/cbegin/tonecore/internal/evqueue"
)

var (
	ErrUnknownTrack  = errors.New("no voice machine registered for track")
	ErrNoParamBridge = errors.New("track has no parameter bridge to route ParamChange through")
)

// DispatchError pairs a failed-to-dispatch event with the reason.
type DispatchError struct {
	Event evqueue.Event
	Err   error
}

func (d DispatchError) Error() string { return d.Err.Error() }

func (d DispatchError) Unwrap() error { return d.Err }
