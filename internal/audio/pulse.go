package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// pulseDriver talks to PulseAudio or pipewire-pulse.
type pulseDriver struct {
	opts Options
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("spymic"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

func (d *pulseDriver) devices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return listPulseDevices(client)
}

func listPulseDevices(client *pulse.Client) ([]Device, error) {
	var defaultSourceID, defaultSinkID string
	if source, err := client.DefaultSource(); err == nil {
		defaultSourceID = source.ID()
	}
	if sink, err := client.DefaultSink(); err == nil {
		defaultSinkID = sink.ID()
	}

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	var sinkInfos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinkInfos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos)+len(sinkInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			Kind:        KindInput,
			State:       pulseStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultSourceID,
		})
	}
	for _, sink := range sinkInfos {
		if sink == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          sink.SinkName,
			Description: sink.Device,
			Kind:        KindOutput,
			State:       pulseStateString(sink.State),
			Available:   sinkAvailable(sink),
			Muted:       sink.Mute,
			Default:     sink.SinkName == defaultSinkID,
		})
	}
	return devices, nil
}

func (d *pulseDriver) openCapture(_ context.Context, deliver func([]int16)) (io.Closer, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	devices, err := listPulseDevices(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	selection, err := selectDeviceFromList(filterKind(devices, KindInput), d.opts.Input, d.opts.Fallback)
	if err != nil {
		client.Close()
		return nil, err
	}
	if selection.Warning != "" {
		d.opts.Logger.Warn("audio input fallback", "warning", selection.Warning)
	}

	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selection.Device.ID, err)
	}

	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		deliver(buf)
		return len(buf), nil
	})
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulseRecordChannels(d.opts.Channels),
		pulse.RecordSampleRate(d.opts.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(d.opts.framesPerBuffer()*d.opts.Channels*2)),
		pulse.RecordMediaName("spymic monitor"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	stream.Start()

	d.opts.Logger.Info("pulse capture started", "source", selection.Device.ID)
	return closerFunc(func() error {
		stream.Stop()
		stream.Close()
		client.Close()
		return nil
	}), nil
}

func (d *pulseDriver) openPlayback(fill func([]int16)) (io.Closer, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	sink, err := resolvePulseSink(client, d.opts.Output)
	if err != nil {
		client.Close()
		return nil, err
	}

	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		fill(buf)
		return len(buf), nil
	})
	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackSink(sink),
		pulsePlaybackChannels(d.opts.Channels),
		pulse.PlaybackSampleRate(d.opts.SampleRate),
		pulse.PlaybackLatency(d.opts.Latency.Seconds()),
		pulse.PlaybackMediaName("spymic monitor"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse playback stream: %w", err)
	}
	stream.Start()

	return closerFunc(func() error {
		stream.Stop()
		stream.Close()
		client.Close()
		return nil
	}), nil
}

func resolvePulseSink(client *pulse.Client, output string) (*pulse.Sink, error) {
	term := normalizeTerm(output)
	if term == "" {
		sink, err := client.DefaultSink()
		if err != nil {
			return nil, fmt.Errorf("read default sink: %w", err)
		}
		return sink, nil
	}

	devices, err := listPulseDevices(client)
	if err != nil {
		return nil, err
	}
	dev, err := findDevice(devices, KindOutput, term)
	if err != nil {
		return nil, err
	}
	sink, err := client.SinkByID(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve sink %q: %w", dev.ID, err)
	}
	return sink, nil
}

func pulseRecordChannels(channels int) pulse.RecordOption {
	if channels >= 2 {
		return pulse.RecordStereo
	}
	return pulse.RecordMono
}

func pulsePlaybackChannels(channels int) pulse.PlaybackOption {
	if channels >= 2 {
		return pulse.PlaybackStereo
	}
	return pulse.PlaybackMono
}

// pulseStateString maps Pulse source/sink state constants to readable values.
func pulseStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	ports := make([]portState, 0, len(source.Ports))
	for _, port := range source.Ports {
		ports = append(ports, portState{name: port.Name, available: port.Available})
	}
	return activePortAvailable(source.ActivePortName, ports)
}

func sinkAvailable(sink *pulseproto.GetSinkInfoReply) bool {
	if sink == nil {
		return false
	}
	ports := make([]portState, 0, len(sink.Ports))
	for _, port := range sink.Ports {
		ports = append(ports, portState{name: port.Name, available: port.Available})
	}
	return activePortAvailable(sink.ActivePortName, ports)
}

type portState struct {
	name      string
	available uint32
}

func activePortAvailable(active string, ports []portState) bool {
	for _, port := range ports {
		if port.name != active {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.available == 0 || port.available == 2
	}
	return true
}

var errPulseUnavailable = errors.New("pulse server unavailable")

// ProbePulse reports whether a Pulse server answers.
func ProbePulse() error {
	client, err := newPulseClient()
	if err != nil {
		return fmt.Errorf("%w: %w", errPulseUnavailable, err)
	}
	client.Close()
	return nil
}
