package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// portaudioDriver uses the host API PortAudio picks for the platform.
type portaudioDriver struct {
	opts Options
}

func (d *portaudioDriver) devices(_ context.Context) ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}

	var defaultIn, defaultOut string
	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil {
		defaultIn = dev.Name
	}
	if dev, err := portaudio.DefaultOutputDevice(); err == nil && dev != nil {
		defaultOut = dev.Name
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		if info.MaxInputChannels > 0 {
			devices = append(devices, portaudioDevice(info, KindInput, info.Name == defaultIn))
		}
		if info.MaxOutputChannels > 0 {
			devices = append(devices, portaudioDevice(info, KindOutput, info.Name == defaultOut))
		}
	}
	return devices, nil
}

func portaudioDevice(info *portaudio.DeviceInfo, kind Kind, isDefault bool) Device {
	description := info.Name
	if info.HostApi != nil {
		description = fmt.Sprintf("%s (%s)", info.Name, info.HostApi.Name)
	}
	return Device{
		ID:          info.Name,
		Description: description,
		Kind:        kind,
		State:       "available",
		Available:   true,
		Default:     isDefault,
	}
}

func (d *portaudioDriver) openCapture(_ context.Context, deliver func([]int16)) (io.Closer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	info, err := portaudioDeviceFor(KindInput, d.opts.Input)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = d.opts.Channels
	params.SampleRate = float64(d.opts.SampleRate)
	params.FramesPerBuffer = d.opts.framesPerBuffer()

	stream, err := portaudio.OpenStream(params, func(in []int16) {
		deliver(in)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open portaudio capture %q: %w", info.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start portaudio capture: %w", err)
	}

	d.opts.Logger.Info("portaudio capture started", "device", info.Name)
	return portaudioCloser(stream), nil
}

func (d *portaudioDriver) openPlayback(fill func([]int16)) (io.Closer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	info, err := portaudioDeviceFor(KindOutput, d.opts.Output)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	params := portaudio.LowLatencyParameters(nil, info)
	params.Output.Channels = d.opts.Channels
	params.SampleRate = float64(d.opts.SampleRate)
	params.FramesPerBuffer = d.opts.framesPerBuffer()

	stream, err := portaudio.OpenStream(params, func(out []int16) {
		fill(out)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open portaudio playback %q: %w", info.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start portaudio playback: %w", err)
	}
	return portaudioCloser(stream), nil
}

// portaudioDeviceFor resolves a configured device name, or the default one.
func portaudioDeviceFor(kind Kind, term string) (*portaudio.DeviceInfo, error) {
	term = normalizeTerm(term)
	if term == "" {
		if kind == KindInput {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	for _, info := range infos {
		if info == nil {
			continue
		}
		if kind == KindInput && info.MaxInputChannels == 0 {
			continue
		}
		if kind == KindOutput && info.MaxOutputChannels == 0 {
			continue
		}
		if deviceMatches(Device{ID: info.Name, Description: info.Name}, term) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("audio %s %q did not match any device", kind, term)
}

func portaudioCloser(stream *portaudio.Stream) io.Closer {
	return closerFunc(func() error {
		return errors.Join(stream.Stop(), stream.Close(), portaudio.Terminate())
	})
}
