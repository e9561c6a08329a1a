// Package doctor runs runtime readiness diagnostics for config, tools, and audio.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/rbright/spymic/internal/audio"
	"github.com/rbright/spymic/internal/config"
	"github.com/rbright/spymic/internal/hypr"
	"github.com/shirou/gopsutil/process"
)

// audioServers are process names that provide a Pulse-compatible server.
var audioServers = []string{"pipewire-pulse", "pulseaudio"}

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{checkConfig(cfg)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir is set", "XDG_RUNTIME_DIR is empty; session socket cannot be created"))

	indicatorCfg := cfg.Config.Indicator
	if indicatorCfg.Enable {
		switch indicatorCfg.Backend {
		case "desktop":
			checks = append(checks, checkBinary("busctl", "desktop notifications use busctl"))
		default:
			checks = append(checks, checkHyprland(ctx))
		}
	}
	if indicatorCfg.SoundEnable && hasCueFiles(indicatorCfg) {
		checks = append(checks, checkCommand(indicatorCfg.SoundPlayer.Argv, "indicator.sound_player_cmd"))
	}

	if cfg.Config.Audio.Backend == audio.BackendPulse {
		checks = append(checks, checkAudioServer(ctx, runningProcessNames))
		checks = append(checks, checkPulse())
	}
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("using defaults (%q not found)", cfg.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", cfg.Path)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkHyprland(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	tag, err := hypr.Version(ctx)
	if err != nil {
		return Check{Name: "hyprland", Pass: false, Message: err.Error()}
	}
	return Check{Name: "hyprland", Pass: true, Message: fmt.Sprintf("hyprctl reports %s", tag)}
}

func hasCueFiles(cfg config.IndicatorConfig) bool {
	return cfg.SoundStartFile != "" || cfg.SoundStopFile != "" || cfg.SoundErrorFile != ""
}

// checkAudioServer looks for a running Pulse-compatible server process.
func checkAudioServer(ctx context.Context, list func(context.Context) ([]string, error)) Check {
	names, err := list(ctx)
	if err != nil {
		return Check{Name: "audio.server", Pass: false, Message: fmt.Sprintf("list processes: %v", err)}
	}
	for _, server := range audioServers {
		if slices.Contains(names, server) {
			return Check{Name: "audio.server", Pass: true, Message: fmt.Sprintf("%s is running", server)}
		}
	}
	return Check{
		Name:    "audio.server",
		Pass:    false,
		Message: fmt.Sprintf("none of %s is running", strings.Join(audioServers, ", ")),
	}
}

func runningProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			// Processes can exit between listing and inspection.
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func checkPulse() Check {
	if err := audio.ProbePulse(); err != nil {
		return Check{Name: "audio.pulse", Pass: false, Message: err.Error()}
	}
	return Check{Name: "audio.pulse", Pass: true, Message: "pulse server answers"}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, audio.ConfigOptions(cfg.Audio, nil))
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
