package session

import (
	"fmt"

	"github.com/rbright/spymic/internal/fsm"
	"github.com/rbright/spymic/internal/gain"
)

// Snapshot is the read-only session view consumed by presentation code.
type Snapshot struct {
	State   fsm.State
	Playing bool
	Volume  float64
	// Revision increases with every committed change.
	Revision uint64
}

// StatusText is the one-line human status for the snapshot.
func (s Snapshot) StatusText() string {
	switch s.State {
	case fsm.StateDenied:
		return "Mic access denied. Check permissions."
	case fsm.StateRequesting:
		return "Connecting to microphone..."
	case fsm.StateGranted:
		if s.Playing {
			return "Listening via Mic"
		}
		return "Paused - Mic Active"
	default:
		return "Inactive"
	}
}

// VolumeText renders the volume as a rounded percentage.
func (s Snapshot) VolumeText() string {
	return fmt.Sprintf("Volume: %d%%", gain.Percent(s.Volume))
}

// EffectiveGain is the gain the live graph carries for this snapshot, or 0
// when no graph exists.
func (s Snapshot) EffectiveGain() float64 {
	if s.State != fsm.StateGranted {
		return 0
	}
	return gain.Effective(s.Playing, s.Volume)
}
