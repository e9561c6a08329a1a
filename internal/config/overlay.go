package config

import (
	"fmt"
	"strings"
)

// fileConfig mirrors Config with optional fields so a file only overrides
// what it names.
type fileConfig struct {
	Audio     *fileAudio     `json:"audio" yaml:"audio"`
	Session   *fileSession   `json:"session" yaml:"session"`
	Indicator *fileIndicator `json:"indicator" yaml:"indicator"`
	Monitor   *fileMonitor   `json:"monitor" yaml:"monitor"`
	Log       *fileLog       `json:"log" yaml:"log"`
}

type fileAudio struct {
	Backend    *string `json:"backend" yaml:"backend"`
	Input      *string `json:"input" yaml:"input"`
	Output     *string `json:"output" yaml:"output"`
	Fallback   *string `json:"fallback" yaml:"fallback"`
	SampleRate *int    `json:"sample_rate" yaml:"sample_rate"`
	Channels   *int    `json:"channels" yaml:"channels"`
	LatencyMS  *int    `json:"latency_ms" yaml:"latency_ms"`
}

type fileSession struct {
	InitialVolume *float64 `json:"initial_volume" yaml:"initial_volume"`
}

type fileIndicator struct {
	Enable         *bool   `json:"enable" yaml:"enable"`
	Backend        *string `json:"backend" yaml:"backend"`
	DesktopAppName *string `json:"desktop_app_name" yaml:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable" yaml:"sound_enable"`
	SoundStartFile *string `json:"sound_start_file" yaml:"sound_start_file"`
	SoundStopFile  *string `json:"sound_stop_file" yaml:"sound_stop_file"`
	SoundErrorFile *string `json:"sound_error_file" yaml:"sound_error_file"`
	SoundPlayerCmd *string `json:"sound_player_cmd" yaml:"sound_player_cmd"`
	TimeoutMS      *int    `json:"timeout_ms" yaml:"timeout_ms"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms" yaml:"error_timeout_ms"`
}

type fileMonitor struct {
	Enable *bool `json:"enable" yaml:"enable"`
}

type fileLog struct {
	Level *string `json:"level" yaml:"level"`
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (payload fileConfig) applyTo(cfg *Config) error {
	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Backend, a.Backend)
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Output, a.Output)
		setString(&cfg.Audio.Fallback, a.Fallback)
		setValue(&cfg.Audio.SampleRate, a.SampleRate)
		setValue(&cfg.Audio.Channels, a.Channels)
		setValue(&cfg.Audio.LatencyMS, a.LatencyMS)
	}

	if s := payload.Session; s != nil {
		setValue(&cfg.Session.InitialVolume, s.InitialVolume)
	}

	if ind := payload.Indicator; ind != nil {
		setValue(&cfg.Indicator.Enable, ind.Enable)
		setString(&cfg.Indicator.Backend, ind.Backend)
		setString(&cfg.Indicator.DesktopAppName, ind.DesktopAppName)
		setValue(&cfg.Indicator.SoundEnable, ind.SoundEnable)
		setString(&cfg.Indicator.SoundStartFile, ind.SoundStartFile)
		setString(&cfg.Indicator.SoundStopFile, ind.SoundStopFile)
		setString(&cfg.Indicator.SoundErrorFile, ind.SoundErrorFile)
		setValue(&cfg.Indicator.TimeoutMS, ind.TimeoutMS)
		setValue(&cfg.Indicator.ErrorTimeoutMS, ind.ErrorTimeoutMS)

		if ind.SoundPlayerCmd != nil {
			raw := *ind.SoundPlayerCmd
			argv, err := parseArgv(raw)
			if err != nil {
				return fmt.Errorf("invalid indicator.sound_player_cmd: %w", err)
			}
			cfg.Indicator.SoundPlayer = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if m := payload.Monitor; m != nil {
		setValue(&cfg.Monitor.Enable, m.Enable)
	}

	if l := payload.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	}

	return nil
}
