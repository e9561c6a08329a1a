package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
)

type Command string

const (
	CommandToggle     Command = "toggle"
	CommandActivate   Command = "activate"
	CommandDeactivate Command = "deactivate"
	CommandPlay       Command = "play"
	CommandVolume     Command = "volume"
	CommandStatus     Command = "status"
	CommandWatch      Command = "watch"
	CommandGuide      Command = "guide"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

// Overrides replace audio config values for one invocation.
type Overrides struct {
	Backend string
	Input   string
	Output  string
}

type Parsed struct {
	Command    Command
	ConfigPath string
	// Value is the positional argument of commands that take one.
	Value     string
	Overrides Overrides
	ShowHelp  bool
}

func Parse(args []string) (Parsed, error) {
	if len(args) == 0 {
		return Parsed{Command: CommandHelp, ShowHelp: true}, nil
	}
	for _, arg := range args {
		switch arg {
		case "-h", "--help", string(CommandHelp):
			return Parsed{Command: CommandHelp, ShowHelp: true}, nil
		case "--version":
			return Parsed{Command: CommandVersion}, nil
		}
	}

	var parsed Parsed
	app := newApplication(&parsed)
	selected, err := app.Parse(negativeVolumeAsArg(args))
	if err != nil {
		return Parsed{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if selected == "" {
		return Parsed{}, errors.New("invalid arguments: no command given")
	}
	parsed.Command = Command(selected)
	return parsed, nil
}

// negativeVolumeAsArg moves a negative volume value behind "--" so it reaches
// the clamp instead of being read as a short flag.
func negativeVolumeAsArg(args []string) []string {
	for i, arg := range args {
		if arg == "--" {
			return args
		}
		if arg != string(CommandVolume) || (i > 0 && slices.Contains(valueFlags, args[i-1])) {
			continue
		}
		if i+1 >= len(args) || !isNegativeNumber(args[i+1]) {
			return args
		}
		out := make([]string, 0, len(args)+1)
		out = append(out, args[:i+1]...)
		out = append(out, args[i+2:]...)
		return append(out, "--", args[i+1])
	}
	return args
}

// valueFlags are the global flags that consume the next argument.
var valueFlags = []string{"--config", "--backend", "--input", "--output"}

func isNegativeNumber(arg string) bool {
	if !strings.HasPrefix(arg, "-") {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSuffix(arg, "%"), 64)
	return err == nil
}

func newApplication(parsed *Parsed) *kingpin.Application {
	app := kingpin.New("spymic", "Monitor the microphone through the current output device.").
		Terminate(nil).
		UsageWriter(io.Discard).
		ErrorWriter(io.Discard)

	app.Flag("config", "Config file path.").PlaceHolder("PATH").StringVar(&parsed.ConfigPath)
	app.Flag("backend", "Audio backend override.").PlaceHolder("NAME").StringVar(&parsed.Overrides.Backend)
	app.Flag("input", "Capture device override.").PlaceHolder("DEVICE").StringVar(&parsed.Overrides.Input)
	app.Flag("output", "Output device override.").PlaceHolder("DEVICE").StringVar(&parsed.Overrides.Output)

	for _, cmd := range []Command{
		CommandToggle,
		CommandActivate,
		CommandDeactivate,
		CommandPlay,
		CommandStatus,
		CommandWatch,
		CommandGuide,
		CommandDevices,
		CommandDoctor,
		CommandVersion,
	} {
		app.Command(string(cmd), "")
	}
	app.Command(string(CommandVolume), "").
		Arg("value", "Volume in [0,1] or a percentage.").
		Required().
		StringVar(&parsed.Value)

	return app
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [flags] <command> [arg]

Commands:
  toggle      Activate (starting a session owner if none is running) or deactivate
  activate    Activate without ever deactivating
  deactivate  Deactivate the running session
  play        Pause or resume listening
  volume V    Set volume in [0,1] (also accepts 0-100%%); out-of-range values clamp
  status      Print state, playback and volume
  watch       Stream session health changes as JSON lines
  guide       Walk through the first-run instructions
  devices     List capture and output devices
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH       Config file path (default: $XDG_CONFIG_HOME/spymic/config.jsonc)
  --backend NAME      Audio backend: pulse, portaudio, miniaudio
  --input DEVICE      Capture device id or description
  --output DEVICE     Output device id or description
  -h, --help          Show help
  --version           Show version
`, binaryName)
}
