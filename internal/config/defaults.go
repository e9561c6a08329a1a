package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	player := "pw-play --media-role Notification"

	return Config{
		Audio: AudioConfig{
			Backend:    "pulse",
			Input:      "default",
			Output:     "default",
			Fallback:   "default",
			SampleRate: 48000,
			Channels:   1,
			LatencyMS:  40,
		},
		Session: SessionConfig{InitialVolume: 0.5},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "spymic",
			SoundEnable:    true,
			SoundPlayer:    CommandConfig{Raw: player, Argv: mustParseArgv(player)},
			TimeoutMS:      3000,
			ErrorTimeoutMS: 1600,
		},
		Monitor: MonitorConfig{Enable: true},
		Log:     LogConfig{Level: "info"},
	}
}
