package config

import (
	"fmt"

	"dario.cat/mergo"
)

// ApplyAudioOverrides layers non-empty command-line audio values over cfg and
// revalidates the result.
func ApplyAudioOverrides(cfg *Config, overrides AudioConfig) ([]Warning, error) {
	merged := cfg.Audio
	if err := mergo.Merge(&merged, overrides, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge audio overrides: %w", err)
	}

	candidate := *cfg
	candidate.Audio = merged
	warnings, err := Validate(candidate)
	if err != nil {
		return nil, err
	}
	*cfg = candidate
	return warnings, nil
}
