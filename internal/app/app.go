package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/spymic/internal/audio"
	"github.com/rbright/spymic/internal/cli"
	"github.com/rbright/spymic/internal/config"
	"github.com/rbright/spymic/internal/doctor"
	"github.com/rbright/spymic/internal/fsm"
	"github.com/rbright/spymic/internal/ipc"
	"github.com/rbright/spymic/internal/logging"
	"github.com/rbright/spymic/internal/monitor"
	"github.com/rbright/spymic/internal/session"
	"github.com/rbright/spymic/internal/version"
)

const binaryName = "spymic"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr, Stdin: stdin}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	if err := logRuntime.SetLevel(cfgLoaded.Config.Log.Level); err != nil {
		logger.Warn("ignoring log level", "error", err.Error())
	}

	overrideWarnings, err := applyOverrides(&cfgLoaded, parsed.Overrides)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}
	for _, w := range append(cfgLoaded.Warnings, overrideWarnings...) {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"backend", cfgLoaded.Config.Audio.Backend,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx, cfgLoaded.Config, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx, cfgLoaded.Config, logger)
	case cli.CommandWatch:
		return r.commandWatch(ctx)
	case cli.CommandGuide:
		return r.commandGuide()
	case cli.CommandDeactivate:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandDeactivate})
	case cli.CommandPlay:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandPlay})
	case cli.CommandVolume:
		return r.commandVolume(ctx, parsed.Value)
	case cli.CommandToggle:
		return r.commandActivate(ctx, cfgLoaded.Config, logger, ipc.CommandToggle)
	case cli.CommandActivate:
		return r.commandActivate(ctx, cfgLoaded.Config, logger, ipc.CommandActivate)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// applyOverrides layers command-line audio flags over the loaded config and
// returns only warnings the file itself did not already produce.
func applyOverrides(loaded *config.Loaded, overrides cli.Overrides) ([]config.Warning, error) {
	if overrides == (cli.Overrides{}) {
		return nil, nil
	}

	warnings, err := config.ApplyAudioOverrides(&loaded.Config, config.AudioConfig{
		Backend: overrides.Backend,
		Input:   overrides.Input,
		Output:  overrides.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("apply audio overrides: %w", err)
	}

	var fresh []config.Warning
	for _, w := range warnings {
		if !slices.Contains(loaded.Warnings, w) {
			fresh = append(fresh, w)
		}
	}
	return fresh, nil
}

func (r Runner) commandDevices(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	devices, err := audio.ListDevices(ctx, audio.ConfigOptions(cfg.Audio, logger))
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s %-6s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.Kind,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	statePath, _ := session.StatePath()
	idle := session.Snapshot{State: fsm.StateIdle, Volume: storedVolume(cfg, statePath, logger)}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		r.printSnapshot(idle)
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		r.printSnapshot(snapshotFromResponse(resp))
		return 0
	}

	r.printSnapshot(idle)
	return 0
}

// commandVolume sets the owner's volume, or stores it for the next owner when
// none is running.
func (r Runner) commandVolume(ctx context.Context, raw string) int {
	v, err := session.ParseVolume(raw)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}

	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandVolume, Value: raw})
		if handled {
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			if resp.Message != "" {
				fmt.Fprintln(r.Stdout, resp.Message)
			}
			return 0
		}
	}

	statePath, err := session.StatePath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	stored, err := session.SaveVolume(statePath, v)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, session.Snapshot{Volume: stored}.VolumeText())
	return 0
}

func (r Runner) printSnapshot(snap session.Snapshot) {
	fmt.Fprintln(r.Stdout, snap.StatusText())
	fmt.Fprintln(r.Stdout, snap.VolumeText())
}

func snapshotFromResponse(resp ipc.Response) session.Snapshot {
	state := fsm.State(resp.State)
	if state == "" {
		state = fsm.StateIdle
	}
	return session.Snapshot{State: state, Playing: resp.Playing, Volume: resp.Volume}
}

func (r Runner) commandWatch(ctx context.Context) int {
	healthPath, err := ipc.HealthSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	services := append([]string{""}, monitor.Services...)
	err = monitor.Watch(ctx, healthPath, services, func(event monitor.Event) error {
		line, err := json.Marshal(event)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(r.Stdout, string(line))
		return err
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active %s session\n", binaryName)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
