package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind separates capture devices from playback devices.
type Kind string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// Device describes one input or output endpoint surfaced by a backend.
type Device struct {
	ID          string
	Description string
	Kind        Kind
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Usable reports whether the device can carry audio right now.
func (d Device) Usable() bool {
	return d.Available && !d.Muted
}

// Selection is the resolved device plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns every device the configured backend can see.
func ListDevices(ctx context.Context, opts Options) ([]Device, error) {
	drv, err := newDriver(opts.withDefaults())
	if err != nil {
		return nil, err
	}
	return drv.devices(ctx)
}

// SelectDevice resolves audio.input/audio.fallback preferences against live
// input devices.
func SelectDevice(ctx context.Context, opts Options) (Selection, error) {
	devices, err := ListDevices(ctx, opts)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(filterKind(devices, KindInput), opts.Input, opts.Fallback)
}

func filterKind(devices []Device, kind Kind) []Device {
	out := make([]Device, 0, len(devices))
	for _, dev := range devices {
		if dev.Kind == kind {
			out = append(out, dev)
		}
	}
	return out
}

// selectDeviceFromList applies selection policy to a pre-fetched device list.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	var (
		defaultDevice *Device
		byInput       *Device
		byFallback    *Device
	)

	input = normalizeTerm(input)
	fallback = normalizeTerm(fallback)

	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if byInput == nil && input != "" && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && fallback != "" && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}

	chooseDefault := func() (*Device, error) {
		if defaultDevice == nil {
			return nil, errors.New("default audio input is unavailable")
		}
		return defaultDevice, nil
	}

	primary := byInput
	if input == "" {
		d, err := chooseDefault()
		if err != nil {
			return Selection{}, err
		}
		primary = d
	} else if primary == nil {
		return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
	}

	if primary.Usable() {
		return Selection{Device: *primary}, nil
	}

	primaryReason := "unavailable"
	if primary.Muted {
		primaryReason = "muted"
	}

	var fallbackDevice *Device
	if fallback != "" {
		if byFallback == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, primaryReason, fallback)
		}
		fallbackDevice = byFallback
	} else {
		d, err := chooseDefault()
		if err != nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: %w", primary.ID, primaryReason, err)
		}
		fallbackDevice = d
	}

	if !fallbackDevice.Available {
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", fallbackDevice.ID)
	}
	if fallbackDevice.Muted {
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", fallbackDevice.ID)
	}

	return Selection{
		Device:   *fallbackDevice,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, primaryReason, fallbackDevice.ID),
		Fallback: primary.ID != fallbackDevice.ID,
	}, nil
}

// findDevice returns the first device of kind matching term, or the default
// one when term is empty or "default".
func findDevice(devices []Device, kind Kind, term string) (Device, error) {
	term = normalizeTerm(term)
	for _, dev := range devices {
		if dev.Kind != kind {
			continue
		}
		if term == "" && dev.Default {
			return dev, nil
		}
		if term != "" && deviceMatches(dev, term) {
			return dev, nil
		}
	}
	if term == "" {
		return Device{}, fmt.Errorf("no default audio %s", kind)
	}
	return Device{}, fmt.Errorf("audio %s %q did not match any device", kind, term)
}

func normalizeTerm(term string) string {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "default" {
		return ""
	}
	return term
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}
