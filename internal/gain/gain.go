// Package gain derives and holds the effective output gain of a live session.
package gain

import (
	"errors"
	"math"
	"sync/atomic"
)

// DefaultVolume is the volume used before any explicit SetVolume.
const DefaultVolume = 0.5

// ErrInvalidVolume indicates a volume that cannot be clamped into [0,1].
var ErrInvalidVolume = errors.New("volume must be a number")

// Effective returns the gain applied to the gain stage for (playing, volume).
func Effective(playing bool, volume float64) float64 {
	if !playing {
		return 0
	}
	return volume
}

// Clamp bounds v to [0,1]. NaN is rejected.
func Clamp(v float64) (float64, error) {
	if math.IsNaN(v) {
		return 0, ErrInvalidVolume
	}
	if v < 0 {
		return 0, nil
	}
	if v > 1 {
		return 1, nil
	}
	return v, nil
}

// Percent renders a volume as a rounded 0-100 integer.
func Percent(v float64) int {
	return int(math.Round(v * 100))
}

// Stage is a lock-free gain value shared between a control goroutine and an
// audio callback.
type Stage struct {
	bits atomic.Uint64
}

// Set stores an immediate gain value.
func (s *Stage) Set(v float64) {
	s.bits.Store(math.Float64bits(v))
}

// Value returns the current gain value.
func (s *Stage) Value() float64 {
	return math.Float64frombits(s.bits.Load())
}

// Apply scales samples in place by the current gain with int16 saturation.
func (s *Stage) Apply(samples []int16) {
	g := s.Value()
	if g == 1 {
		return
	}
	if g == 0 {
		clear(samples)
		return
	}
	for i, sample := range samples {
		scaled := math.Round(float64(sample) * g)
		switch {
		case scaled > math.MaxInt16:
			samples[i] = math.MaxInt16
		case scaled < math.MinInt16:
			samples[i] = math.MinInt16
		default:
			samples[i] = int16(scaled)
		}
	}
}
