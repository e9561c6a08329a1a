package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/rbright/spymic/internal/audio"
	"github.com/rbright/spymic/internal/config"
	"github.com/rbright/spymic/internal/graph"
	"github.com/rbright/spymic/internal/indicator"
	"github.com/rbright/spymic/internal/ipc"
	"github.com/rbright/spymic/internal/monitor"
	"github.com/rbright/spymic/internal/session"
)

// commandActivate forwards to a running owner, or becomes the owner.
func (r Runner) commandActivate(ctx context.Context, cfg config.Config, logger *slog.Logger, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if code, handled := r.forwardActivate(ctx, socketPath, command); handled {
		return code
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			if code, handled := r.forwardActivate(ctx, socketPath, command); handled {
				return code
			}
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	return r.runOwner(ctx, cfg, logger, listener)
}

func (r Runner) forwardActivate(ctx context.Context, socketPath string, command string) (int, bool) {
	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: command})
	if !handled {
		return 0, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, true
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0, true
}

// runOwner opens the configured audio host and serves the session on it.
func (r Runner) runOwner(ctx context.Context, cfg config.Config, logger *slog.Logger, listener net.Listener) int {
	host, err := audio.NewHost(audio.ConfigOptions(cfg.Audio, logger))
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return r.serveOwner(ctx, cfg, logger, listener, host)
}

// serveOwner holds the session until ctx ends. Deactivation and denial keep
// the owner alive so later commands reuse its controller and volume.
func (r Runner) serveOwner(ctx context.Context, cfg config.Config, logger *slog.Logger, listener net.Listener, host graph.Host) int {
	notifier := indicator.New(cfg.Indicator, logger)
	defer notifier.Wait()

	statePath, err := session.StatePath()
	if err != nil {
		logger.Warn("volume will not persist", "error", err.Error())
		statePath = ""
	}

	controller := session.NewController(logger, host, notifier)
	defer controller.Close()
	if _, err := controller.SetVolume(storedVolume(cfg, statePath, logger)); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if statePath != "" {
		defer controller.PersistVolume(statePath)()
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	if cfg.Monitor.Enable {
		stopMonitor, err := startMonitor(serverCtx, controller, logger)
		if err != nil {
			logger.Warn("health monitor disabled", "error", err.Error())
		} else {
			defer stopMonitor()
		}
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	started := time.Now()
	if outcome := controller.Activate(ctx); !outcome.Granted() && !outcome.Ignored && ctx.Err() == nil {
		err := outcome.Err
		if err == nil {
			err = fmt.Errorf("activation ended in state %s", outcome.State)
		}
		logger.Warn("initial activation failed", "error", err.Error())
		fmt.Fprintf(r.Stderr, "warning: %v (run `%s activate` to retry)\n", err, binaryName)
	}
	r.printSnapshot(controller.Snapshot())

	var serverErr error
	select {
	case <-ctx.Done():
		serverCancel()
		serverErr = <-serverErrCh
	case serverErr = <-serverErrCh:
	}

	controller.Close()
	final := controller.Snapshot()
	logOwnerExit(logger, final, started, serverErr)
	fmt.Fprintln(r.Stdout, final.StatusText())

	if serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	return 0
}

// storedVolume returns the persisted volume, falling back to the configured
// initial volume when statePath is empty or holds none.
func storedVolume(cfg config.Config, statePath string, logger *slog.Logger) float64 {
	if statePath == "" {
		return cfg.Session.InitialVolume
	}
	v, ok, err := session.LoadVolume(statePath)
	if err != nil {
		if logger != nil {
			logger.Warn("ignoring stored volume", "error", err.Error())
		}
		return cfg.Session.InitialVolume
	}
	if !ok {
		return cfg.Session.InitialVolume
	}
	return v
}

func startMonitor(ctx context.Context, controller *session.Controller, logger *slog.Logger) (func(), error) {
	healthPath, err := ipc.HealthSocketPath()
	if err != nil {
		return nil, err
	}
	listener, err := monitor.Listen(healthPath)
	if err != nil {
		return nil, err
	}

	server := monitor.NewServer(logger)
	unobserve := controller.Observe(server.Update)
	server.Update(controller.Snapshot())

	done := make(chan error, 1)
	monitorCtx, cancel := context.WithCancel(ctx)
	go func() {
		done <- server.Serve(monitorCtx, listener)
	}()

	return func() {
		unobserve()
		cancel()
		if err := <-done; err != nil {
			logger.Warn("health monitor stopped", "error", err.Error())
		}
		_ = os.Remove(healthPath)
	}, nil
}

func logOwnerExit(logger *slog.Logger, snap session.Snapshot, started time.Time, err error) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", snap.State,
		"playing", snap.Playing,
		"volume", snap.Volume,
		"revision", snap.Revision,
		"duration_ms", time.Since(started).Milliseconds(),
	}

	if err != nil {
		logger.Error("session failed", append(fields, "error", err.Error())...)
		return
	}
	logger.Info("session ended", fields...)
}
