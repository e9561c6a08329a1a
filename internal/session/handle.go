package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rbright/spymic/internal/fsm"
	"github.com/rbright/spymic/internal/ipc"
)

// Handle serves IPC commands for the owner session. Activations run in the
// background; the response reflects the state at the time it was accepted.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.respond(true, "status")
	case ipc.CommandToggle:
		if c.Deactivate(context.WithoutCancel(ctx)) {
			return c.respond(true, "deactivated")
		}
		return c.requestActivate(ctx, ipc.CommandToggle)
	case ipc.CommandActivate:
		return c.requestActivate(ctx, ipc.CommandActivate)
	case ipc.CommandDeactivate:
		if !c.Deactivate(context.WithoutCancel(ctx)) {
			return c.fail(fmt.Sprintf("cannot deactivate from state %s", c.State()))
		}
		return c.respond(true, "deactivated")
	case ipc.CommandPlay:
		if !c.TogglePlayback() {
			return c.fail(fmt.Sprintf("cannot toggle playback from state %s", c.State()))
		}
		if c.Snapshot().Playing {
			return c.respond(true, "playing")
		}
		return c.respond(true, "paused")
	case ipc.CommandVolume:
		v, err := ParseVolume(req.Value)
		if err != nil {
			return c.fail(err.Error())
		}
		if _, err := c.SetVolume(v); err != nil {
			return c.fail(err.Error())
		}
		return c.respond(true, c.Snapshot().VolumeText())
	default:
		return c.fail(fmt.Sprintf("unknown command: %s", req.Command))
	}
}

// requestActivate starts an activation in the background when state permits it.
func (c *Controller) requestActivate(ctx context.Context, source string) ipc.Response {
	state := c.State()
	if state == fsm.StateRequesting {
		return c.respond(true, "activation already requested")
	}
	if !fsm.CanActivate(state) {
		return c.fail(fmt.Sprintf("cannot %s from state %s", source, state))
	}

	go c.Activate(context.WithoutCancel(ctx))
	return c.respond(true, "activation requested")
}

func (c *Controller) respond(ok bool, message string) ipc.Response {
	snap := c.Snapshot()
	return ipc.Response{
		OK:      ok,
		State:   string(snap.State),
		Playing: snap.Playing,
		Volume:  snap.Volume,
		Message: message,
	}
}

func (c *Controller) fail(message string) ipc.Response {
	resp := c.respond(false, "")
	resp.Error = message
	return resp
}

// ParseVolume accepts a fraction ("0.4") or a percentage ("40%").
func ParseVolume(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("volume requires a value")
	}

	percent := strings.HasSuffix(raw, "%")
	raw = strings.TrimSuffix(raw, "%")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q", raw)
	}
	if percent {
		v /= 100
	}
	return v, nil
}
