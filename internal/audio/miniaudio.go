package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gen2brain/malgo"
)

// miniaudioDriver uses miniaudio through malgo.
type miniaudioDriver struct {
	opts Options
}

func (d *miniaudioDriver) initContext() (*malgo.AllocatedContext, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		d.opts.Logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("initialize miniaudio context: %w", err)
	}
	return mctx, nil
}

func freeContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}

func (d *miniaudioDriver) devices(_ context.Context) ([]Device, error) {
	mctx, err := d.initContext()
	if err != nil {
		return nil, err
	}
	defer freeContext(mctx)

	var devices []Device
	for _, kind := range []Kind{KindInput, KindOutput} {
		infos, err := mctx.Devices(miniaudioType(kind))
		if err != nil {
			return nil, fmt.Errorf("list miniaudio %s devices: %w", kind, err)
		}
		for _, info := range infos {
			devices = append(devices, Device{
				ID:          info.Name(),
				Description: info.Name(),
				Kind:        kind,
				State:       "available",
				Available:   true,
				Default:     info.IsDefault != 0,
			})
		}
	}
	return devices, nil
}

func (d *miniaudioDriver) openCapture(_ context.Context, deliver func([]int16)) (io.Closer, error) {
	mctx, err := d.initContext()
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(d.opts.Channels)
	cfg.SampleRate = uint32(d.opts.SampleRate)
	cfg.PeriodSizeInFrames = uint32(d.opts.framesPerBuffer())
	if err := d.pinDevice(mctx, KindInput, d.opts.Input, &cfg.Capture); err != nil {
		freeContext(mctx)
		return nil, err
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			deliver(bytesToInt16(in))
		},
	})
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("initialize miniaudio capture: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(mctx)
		return nil, fmt.Errorf("start miniaudio capture: %w", err)
	}

	d.opts.Logger.Info("miniaudio capture started")
	return miniaudioCloser(mctx, device), nil
}

func (d *miniaudioDriver) openPlayback(fill func([]int16)) (io.Closer, error) {
	mctx, err := d.initContext()
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(d.opts.Channels)
	cfg.SampleRate = uint32(d.opts.SampleRate)
	cfg.PeriodSizeInFrames = uint32(d.opts.framesPerBuffer())
	if err := d.pinDevice(mctx, KindOutput, d.opts.Output, &cfg.Playback); err != nil {
		freeContext(mctx)
		return nil, err
	}

	var scratch []int16
	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			if cap(scratch) < len(out)/2 {
				scratch = make([]int16, len(out)/2)
			}
			samples := scratch[:len(out)/2]
			fill(samples)
			int16ToBytes(samples, out)
		},
	})
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("initialize miniaudio playback: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(mctx)
		return nil, fmt.Errorf("start miniaudio playback: %w", err)
	}
	return miniaudioCloser(mctx, device), nil
}

// pinDevice points sub at a named device; the default device needs no pin.
func (d *miniaudioDriver) pinDevice(mctx *malgo.AllocatedContext, kind Kind, term string, sub *malgo.SubConfig) error {
	term = normalizeTerm(term)
	if term == "" {
		return nil
	}

	infos, err := mctx.Devices(miniaudioType(kind))
	if err != nil {
		return fmt.Errorf("list miniaudio %s devices: %w", kind, err)
	}
	for i := range infos {
		if deviceMatches(Device{ID: infos[i].Name(), Description: infos[i].Name()}, term) {
			sub.DeviceID = infos[i].ID.Pointer()
			return nil
		}
	}
	return fmt.Errorf("audio %s %q did not match any device", kind, term)
}

func miniaudioType(kind Kind) malgo.DeviceType {
	if kind == KindOutput {
		return malgo.Playback
	}
	return malgo.Capture
}

func miniaudioCloser(mctx *malgo.AllocatedContext, device *malgo.Device) io.Closer {
	return closerFunc(func() error {
		err := device.Stop()
		device.Uninit()
		freeContext(mctx)
		return err
	})
}

// bytesToInt16 decodes little-endian s16 PCM.
func bytesToInt16(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return pcm
}

// int16ToBytes encodes samples as little-endian s16 PCM into out.
func int16ToBytes(samples []int16, out []byte) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
}
