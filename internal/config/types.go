// Package config resolves, parses, validates, and defaults spymic configuration.
package config

// Config is the fully materialized runtime configuration used by spymic.
type Config struct {
	Audio     AudioConfig
	Session   SessionConfig
	Indicator IndicatorConfig
	Monitor   MonitorConfig
	Log       LogConfig
}

// AudioConfig selects the audio backend, devices, and stream format.
type AudioConfig struct {
	Backend    string
	Input      string
	Output     string
	Fallback   string
	SampleRate int
	Channels   int
	LatencyMS  int
}

// SessionConfig seeds session state at owner start.
type SessionConfig struct {
	InitialVolume float64
}

// IndicatorConfig controls visual notifications and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	SoundStartFile string
	SoundStopFile  string
	SoundErrorFile string
	SoundPlayer    CommandConfig
	TimeoutMS      int
	ErrorTimeoutMS int
}

// MonitorConfig controls the gRPC health endpoint of the session owner.
type MonitorConfig struct {
	Enable bool
}

// LogConfig controls the runtime log level.
type LogConfig struct {
	Level string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
