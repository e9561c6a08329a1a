package config

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

var (
	audioBackends     = []string{"pulse", "portaudio", "miniaudio"}
	indicatorBackends = []string{"hypr", "desktop"}
	logLevels         = []string{"debug", "info", "warn", "error"}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	backend := strings.ToLower(strings.TrimSpace(cfg.Audio.Backend))
	if !slices.Contains(audioBackends, backend) {
		return nil, fmt.Errorf("audio.backend must be one of: %s", strings.Join(audioBackends, ", "))
	}
	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		return nil, fmt.Errorf("audio.sample_rate must be between 8000 and 192000")
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		return nil, fmt.Errorf("audio.channels must be 1 or 2")
	}
	if cfg.Audio.LatencyMS <= 0 {
		return nil, fmt.Errorf("audio.latency_ms must be > 0")
	}
	if cfg.Audio.LatencyMS < 10 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.latency_ms=%d is likely to underrun", cfg.Audio.LatencyMS)})
	}
	if backend != "pulse" && !isDefaultTerm(cfg.Audio.Fallback) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.fallback is ignored by the %s backend", backend)})
	}

	v := cfg.Session.InitialVolume
	if math.IsNaN(v) || v < 0 || v > 1 {
		return nil, fmt.Errorf("session.initial_volume must be within [0, 1]")
	}

	indicator := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if indicator == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if !slices.Contains(indicatorBackends, indicator) {
		return nil, fmt.Errorf("indicator.backend must be one of: %s", strings.Join(indicatorBackends, ", "))
	}
	if indicator == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.TimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.timeout_ms must be >= 0")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if cfg.Indicator.SoundPlayer.Raw != "" && len(cfg.Indicator.SoundPlayer.Argv) == 0 {
		return nil, fmt.Errorf("indicator.sound_player_cmd is configured but empty")
	}
	if !cfg.Indicator.SoundEnable && hasCueFiles(cfg.Indicator) {
		warnings = append(warnings, Warning{Message: "indicator.sound_*_file values are ignored while indicator.sound_enable=false"})
	}

	if !slices.Contains(logLevels, strings.ToLower(strings.TrimSpace(cfg.Log.Level))) {
		return nil, fmt.Errorf("log.level must be one of: %s", strings.Join(logLevels, ", "))
	}

	return warnings, nil
}

func hasCueFiles(cfg IndicatorConfig) bool {
	return cfg.SoundStartFile != "" || cfg.SoundStopFile != "" || cfg.SoundErrorFile != ""
}

func isDefaultTerm(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	return term == "" || term == "default"
}
