package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rbright/spymic/internal/gain"
)

const stateFileName = "state.yaml"

// persisted is the on-disk form of settings that outlive an owner process.
type persisted struct {
	Volume *float64 `yaml:"volume,omitempty"`
}

// StatePath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func StatePath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "spymic", stateFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "spymic", stateFileName), nil
}

// LoadVolume reads the stored volume. ok is false when none was stored.
func LoadVolume(path string) (float64, bool, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read state: %w", err)
	}

	var state persisted
	if err := yaml.Unmarshal(content, &state); err != nil {
		return 0, false, fmt.Errorf("decode state %s: %w", path, err)
	}
	if state.Volume == nil {
		return 0, false, nil
	}

	v, err := gain.Clamp(*state.Volume)
	if err != nil {
		return 0, false, fmt.Errorf("decode state %s: %w", path, err)
	}
	return v, true, nil
}

// SaveVolume clamps v and replaces the stored volume. It returns the stored
// value.
func SaveVolume(path string, v float64) (float64, error) {
	clamped, err := gain.Clamp(v)
	if err != nil {
		return 0, err
	}

	content, err := yaml.Marshal(persisted{Volume: &clamped})
	if err != nil {
		return 0, fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return 0, fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), stateFileName+".*")
	if err != nil {
		return 0, fmt.Errorf("write state: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("write state: %w", err)
	}
	return clamped, nil
}

// PersistVolume stores the volume whenever it changes until the returned
// function is called.
func (c *Controller) PersistVolume(path string) func() {
	var last *float64
	if v, ok, err := LoadVolume(path); err == nil && ok {
		last = &v
	}

	var (
		mu     sync.Mutex
		latest uint64
	)
	return c.Observe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Revision < latest {
			return
		}
		latest = snap.Revision
		if last != nil && *last == snap.Volume {
			return
		}
		if _, err := SaveVolume(path, snap.Volume); err != nil {
			c.logger.Warn("persist volume failed", "error", err.Error())
			return
		}
		v := snap.Volume
		last = &v
	})
}
