// Package ipc carries single-line JSON commands between spymic invocations
// and the session owner over a unix socket.
package ipc

import (
	"errors"
	"fmt"
	"strings"
)

// Commands understood by the session owner.
const (
	CommandStatus     = "status"
	CommandToggle     = "toggle"
	CommandActivate   = "activate"
	CommandDeactivate = "deactivate"
	CommandPlay       = "play"
	CommandVolume     = "volume"
)

// ErrInvalidRequest marks a request the owner refuses before dispatch.
var ErrInvalidRequest = errors.New("invalid request")

type Request struct {
	Command string `json:"command"`
	Value   string `json:"value,omitempty"`
}

// Validate checks the command name and that only volume carries a value.
func (r Request) Validate() error {
	switch r.Command {
	case CommandVolume:
		if strings.TrimSpace(r.Value) == "" {
			return fmt.Errorf("%w: %s requires a value", ErrInvalidRequest, r.Command)
		}
		return nil
	case CommandStatus, CommandToggle, CommandActivate, CommandDeactivate, CommandPlay:
		if r.Value != "" {
			return fmt.Errorf("%w: %s takes no value", ErrInvalidRequest, r.Command)
		}
		return nil
	case "":
		return fmt.Errorf("%w: missing command", ErrInvalidRequest)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidRequest, r.Command)
	}
}

type Response struct {
	OK      bool    `json:"ok"`
	State   string  `json:"state,omitempty"`
	Playing bool    `json:"playing"`
	Volume  float64 `json:"volume"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
}
