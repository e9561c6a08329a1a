package session

import (
	"context"
	"errors"

	"github.com/rbright/spymic/internal/graph"
)

var (
	// ErrPermissionDenied indicates the host refused microphone access.
	ErrPermissionDenied = errors.New("microphone access denied")
	// ErrConstruction indicates the audio graph could not be built after access was granted.
	ErrConstruction = errors.New("audio graph construction failed")
	// ErrTeardown indicates at least one release step failed; release still ran to completion.
	ErrTeardown = errors.New("audio teardown incomplete")
	// ErrClosed indicates the controller was disposed while an activation was in flight.
	ErrClosed = errors.New("session controller closed")
	// ErrHostUnavailable indicates no audio host is wired.
	ErrHostUnavailable = errors.New("no audio host configured")
)

// IsActivationFailure reports whether err came from a denied or failed activation.
func IsActivationFailure(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrConstruction)
}

// unavailableHost keeps the controller usable when no host is wired.
type unavailableHost struct{}

func (unavailableHost) RequestCapture(context.Context) (graph.Stream, error) {
	return nil, ErrHostUnavailable
}

func (unavailableHost) NewContext() (graph.Context, error) {
	return nil, ErrHostUnavailable
}
