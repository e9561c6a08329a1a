// Package session owns the microphone monitoring lifecycle: permission,
// graph construction, live gain, and teardown.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/spymic/internal/fsm"
	"github.com/rbright/spymic/internal/gain"
	"github.com/rbright/spymic/internal/graph"
)

// Outcome is the resolution of one Activate call.
type Outcome struct {
	State fsm.State
	// Ignored is set when the call was not valid from the current state and
	// had no effect.
	Ignored bool
	Err     error
}

// Granted reports whether the activation produced a live graph.
func (o Outcome) Granted() bool {
	return !o.Ignored && o.Err == nil && o.State == fsm.StateGranted
}

// acquisition is the result of the asynchronous half of Activate.
type acquisition struct {
	handles graph.Handles
	err     error
}

// Controller is the single owner of the capture stream and audio graph.
type Controller struct {
	logger   *slog.Logger
	host     graph.Host
	notifier Notifier

	mu       sync.Mutex
	state    fsm.State
	playing  bool
	volume   float64
	handles  graph.Handles
	closed   bool
	revision uint64

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(logger *slog.Logger, host graph.Host, notifier Notifier) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if host == nil {
		host = unavailableHost{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &Controller{
		logger:    logger,
		host:      host,
		notifier:  notifier,
		state:     fsm.StateIdle,
		volume:    gain.DefaultVolume,
		observers: make(map[int]func(Snapshot)),
	}
}

// State returns the current FSM state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current observer view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Observe registers fn to receive every committed snapshot. The returned
// function unregisters it.
func (c *Controller) Observe(fn func(Snapshot)) func() {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

// Activate requests microphone access and builds the live graph. It is valid
// from idle or denied; any other call returns an ignored Outcome without
// touching the host. The permission request is the only blocking step.
func (c *Controller) Activate(ctx context.Context) Outcome {
	c.mu.Lock()
	if c.closed || !fsm.CanActivate(c.state) {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("activate ignored", "state", state)
		return Outcome{State: state, Ignored: true}
	}
	if err := c.transitionLocked(fsm.EventActivate); err != nil {
		state := c.state
		c.mu.Unlock()
		return Outcome{State: state, Ignored: true, Err: err}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	c.logger.Info("requesting microphone access")
	return c.commit(ctx, c.acquire(ctx))
}

// acquire performs the permission request and synchronous graph build.
func (c *Controller) acquire(ctx context.Context) acquisition {
	stream, err := c.host.RequestCapture(ctx)
	if err != nil {
		return acquisition{err: fmt.Errorf("%w: %w", ErrPermissionDenied, err)}
	}

	var handles graph.Handles
	if err := handles.Build(c.host, stream); err != nil {
		return acquisition{handles: handles, err: fmt.Errorf("%w: %w", ErrConstruction, err)}
	}
	return acquisition{handles: handles}
}

// commit publishes an acquisition result as granted or denied.
func (c *Controller) commit(ctx context.Context, res acquisition) Outcome {
	if res.err != nil {
		c.release(&res.handles)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return Outcome{State: fsm.StateIdle, Err: ErrClosed}
		}
		c.playing = false
		_ = c.transitionLocked(fsm.EventDeny)
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.logger.Error("activation failed", "error", res.err.Error())
		c.publish(snap)
		c.notifier.Notify(context.WithoutCancel(ctx), failedNotification)
		return Outcome{State: snap.State, Err: res.err}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.release(&res.handles)
		return Outcome{State: fsm.StateIdle, Err: ErrClosed}
	}
	c.handles = res.handles
	c.playing = true
	c.applyGainLocked()
	_ = c.transitionLocked(fsm.EventGrant)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("session active", "volume", snap.Volume)
	c.publish(snap)
	c.notifier.Notify(context.WithoutCancel(ctx), activatedNotification)
	return Outcome{State: snap.State}
}

// Deactivate tears down the live graph and returns to idle. It reports
// whether anything happened; outside granted it has no effect.
func (c *Controller) Deactivate(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != fsm.StateGranted {
		c.mu.Unlock()
		return false
	}
	c.release(&c.handles)
	c.playing = false
	_ = c.transitionLocked(fsm.EventDeactivate)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("session deactivated")
	c.publish(snap)
	c.notifier.Notify(ctx, deactivatedNotification)
	return true
}

// Toggle activates from idle or denied and deactivates from granted.
// While an activation is in flight it is ignored.
func (c *Controller) Toggle(ctx context.Context) Outcome {
	if c.Deactivate(ctx) {
		return Outcome{State: c.State()}
	}
	return c.Activate(ctx)
}

// TogglePlayback flips playback intent while granted and re-applies gain.
// It reports whether the intent changed.
func (c *Controller) TogglePlayback() bool {
	c.mu.Lock()
	if c.state != fsm.StateGranted {
		c.mu.Unlock()
		return false
	}
	c.playing = !c.playing
	c.revision++
	c.applyGainLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return true
}

// SetVolume clamps v into [0,1] and stores it in every state. A live graph
// picks it up immediately; otherwise the next activation seeds from it.
func (c *Controller) SetVolume(v float64) (float64, error) {
	clamped, err := gain.Clamp(v)
	if err != nil {
		return c.Snapshot().Volume, err
	}

	c.mu.Lock()
	c.volume = clamped
	c.revision++
	c.applyGainLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return clamped, nil
}

// Close disposes the controller. Held resources are released, the state
// returns to idle, and an in-flight activation is released when it resumes.
// Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.release(&c.handles)
	c.playing = false
	_ = c.transitionLocked(fsm.EventDispose)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// applyGainLocked pushes the effective gain into the live gain stage, if any.
func (c *Controller) applyGainLocked() {
	if c.handles.Gain == nil {
		return
	}
	value := gain.Effective(c.playing, c.volume)
	c.handles.Gain.SetGain(value)
	c.logger.Debug("gain updated", "playing", c.playing, "volume", c.volume, "gain", value)
}

// release runs teardown and records any fault without returning it.
func (c *Controller) release(h *graph.Handles) {
	if !h.Live() {
		return
	}
	if err := h.Release(); err != nil {
		c.logger.Warn("audio teardown fault", "error", fmt.Errorf("%w: %w", ErrTeardown, err).Error())
		return
	}
	c.logger.Debug("audio resources released")
}

// transitionLocked applies one FSM event. c.mu must be held.
func (c *Controller) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	c.revision++
	return nil
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:    c.state,
		Playing:  c.playing,
		Volume:   c.volume,
		Revision: c.revision,
	}
}

// publish fans a snapshot out to observers.
func (c *Controller) publish(snap Snapshot) {
	c.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
