// Package graph defines the host audio primitives a session builds on and the
// owning set of handles acquired for one live session.
package graph

import (
	"context"
	"errors"
	"fmt"
)

// Host is the capture-permission and processing-context provider.
type Host interface {
	// RequestCapture asks the host for live microphone input. It fails when
	// access is refused or the capture hardware is unavailable.
	RequestCapture(ctx context.Context) (Stream, error)
	NewContext() (Context, error)
}

// Stream is a live microphone tap made of one or more tracks.
type Stream interface {
	Tracks() []Track
}

// Track is one constituent input of a Stream.
type Track interface {
	Stop() error
}

// Context hosts nodes and their clock.
type Context interface {
	NewSource(Stream) (Node, error)
	NewGain() (GainNode, error)
	Destination() Node
	Close() error
	Closed() bool
}

// Node is one element of the audio graph.
type Node interface {
	Connect(Node) error
	Disconnect() error
}

// GainNode scales its input by a runtime-settable factor.
type GainNode interface {
	Node
	SetGain(float64)
}

// Handles is the complete set of resources held for one session. Any field
// may be nil while the graph is partially built.
type Handles struct {
	Stream  Stream
	Context Context
	Source  Node
	Gain    GainNode
}

// Live reports whether any handle is still held.
func (h *Handles) Live() bool {
	return h.Stream != nil || h.Context != nil || h.Source != nil || h.Gain != nil
}

// Build constructs source -> gain -> destination on top of stream. Handles
// acquired before a failure stay set so the caller can Release them.
func (h *Handles) Build(host Host, stream Stream) error {
	h.Stream = stream

	audioCtx, err := host.NewContext()
	if err != nil {
		return fmt.Errorf("create processing context: %w", err)
	}
	h.Context = audioCtx

	source, err := audioCtx.NewSource(stream)
	if err != nil {
		return fmt.Errorf("create source node: %w", err)
	}
	h.Source = source

	gainNode, err := audioCtx.NewGain()
	if err != nil {
		return fmt.Errorf("create gain node: %w", err)
	}
	h.Gain = gainNode

	if err := source.Connect(gainNode); err != nil {
		return fmt.Errorf("connect source to gain: %w", err)
	}
	if err := gainNode.Connect(audioCtx.Destination()); err != nil {
		return fmt.Errorf("connect gain to destination: %w", err)
	}
	return nil
}

// Release stops the stream, disconnects the graph, closes the context, and
// clears every handle. It is safe on a partial or already released set. Step
// failures are joined into the returned error; release always runs to the end.
func (h *Handles) Release() error {
	var errs []error

	if h.Stream != nil {
		for i, track := range h.Stream.Tracks() {
			if track == nil {
				continue
			}
			if err := track.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop track %d: %w", i, err))
			}
		}
	}
	if h.Gain != nil {
		if err := h.Gain.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect gain: %w", err))
		}
	}
	if h.Source != nil {
		if err := h.Source.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect source: %w", err))
		}
	}
	if h.Context != nil && !h.Context.Closed() {
		if err := h.Context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}

	h.Stream = nil
	h.Context = nil
	h.Source = nil
	h.Gain = nil

	return errors.Join(errs...)
}
