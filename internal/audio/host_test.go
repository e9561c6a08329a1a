package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/spymic/internal/config"
	"github.com/rbright/spymic/internal/graph"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	mu         sync.Mutex
	deliver    func([]int16)
	fill       func([]int16)
	captureErr error
	playErr    error

	captureCloses  atomic.Int32
	playbackCloses atomic.Int32
}

func (d *fakeDriver) devices(context.Context) ([]Device, error) {
	return []Device{{ID: "mic", Kind: KindInput, Available: true, Default: true}}, nil
}

func (d *fakeDriver) openCapture(_ context.Context, deliver func([]int16)) (io.Closer, error) {
	if d.captureErr != nil {
		return nil, d.captureErr
	}
	d.mu.Lock()
	d.deliver = deliver
	d.mu.Unlock()
	return closerFunc(func() error {
		d.captureCloses.Add(1)
		return nil
	}), nil
}

func (d *fakeDriver) openPlayback(fill func([]int16)) (io.Closer, error) {
	if d.playErr != nil {
		return nil, d.playErr
	}
	d.mu.Lock()
	d.fill = fill
	d.mu.Unlock()
	return closerFunc(func() error {
		d.playbackCloses.Add(1)
		return nil
	}), nil
}

func (d *fakeDriver) capture(samples ...int16) {
	d.mu.Lock()
	deliver := d.deliver
	d.mu.Unlock()
	deliver(samples)
}

func (d *fakeDriver) play(n int) []int16 {
	d.mu.Lock()
	fill := d.fill
	d.mu.Unlock()
	out := make([]int16, n)
	for i := range out {
		out[i] = 99
	}
	fill(out)
	return out
}

func newFakeHost(drv *fakeDriver) *Host {
	return &Host{opts: Options{}.withDefaults(), driver: drv}
}

func buildGraph(t *testing.T, host *Host) graph.Handles {
	t.Helper()
	stream, err := host.RequestCapture(context.Background())
	require.NoError(t, err)

	var handles graph.Handles
	require.NoError(t, handles.Build(host, stream))
	return handles
}

func TestHostGraphAppliesGainEndToEnd(t *testing.T) {
	drv := &fakeDriver{}
	host := newFakeHost(drv)
	handles := buildGraph(t, host)

	handles.Gain.SetGain(0.5)
	drv.capture(1000, -2000, 300)
	require.Equal(t, []int16{500, -1000, 150, 0}, drv.play(4))

	handles.Gain.SetGain(0)
	drv.capture(1000, 1000)
	require.Equal(t, []int16{0, 0}, drv.play(2))

	require.NoError(t, handles.Release())
	require.Equal(t, int32(1), drv.captureCloses.Load())
	require.Equal(t, int32(1), drv.playbackCloses.Load())
}

func TestHostGraphSourceCopiesCapturedBuffer(t *testing.T) {
	drv := &fakeDriver{}
	host := newFakeHost(drv)
	handles := buildGraph(t, host)
	handles.Gain.SetGain(0.5)

	captured := []int16{400, 800}
	drv.capture(captured...)
	require.Equal(t, []int16{400, 800}, captured)
	require.Equal(t, []int16{200, 400}, drv.play(2))
}

func TestHostReleaseStopsDelivery(t *testing.T) {
	drv := &fakeDriver{}
	host := newFakeHost(drv)
	handles := buildGraph(t, host)

	require.NoError(t, handles.Release())
	require.False(t, handles.Live())
	require.NoError(t, handles.Release())

	require.Equal(t, int32(1), drv.captureCloses.Load())
	require.Equal(t, int32(1), drv.playbackCloses.Load())
}

func TestHostRequestCaptureErrors(t *testing.T) {
	denied := errors.New("device busy")
	host := newFakeHost(&fakeDriver{captureErr: denied})

	_, err := host.RequestCapture(context.Background())
	require.ErrorIs(t, err, denied)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newFakeHost(&fakeDriver{}).RequestCapture(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHostNewContextPlaybackError(t *testing.T) {
	host := newFakeHost(&fakeDriver{playErr: errors.New("no sink")})
	_, err := host.NewContext()
	require.Error(t, err)
	require.Contains(t, err.Error(), "open playback")
}

func TestProcessingContextClose(t *testing.T) {
	drv := &fakeDriver{}
	host := newFakeHost(drv)

	pctx, err := host.NewContext()
	require.NoError(t, err)
	require.False(t, pctx.Closed())

	require.NoError(t, pctx.Close())
	require.NoError(t, pctx.Close())
	require.True(t, pctx.Closed())
	require.Equal(t, int32(1), drv.playbackCloses.Load())

	_, err = pctx.NewGain()
	require.Error(t, err)
	_, err = pctx.NewSource(newStream())
	require.Error(t, err)
}

func TestDestinationHasNoOutputs(t *testing.T) {
	pctx, err := newFakeHost(&fakeDriver{}).NewContext()
	require.NoError(t, err)

	dest := pctx.Destination()
	require.Error(t, dest.Connect(dest))
	require.NoError(t, dest.Disconnect())
}

func TestNewHostBackends(t *testing.T) {
	for _, backend := range []string{"", BackendPulse, BackendPortAudio, BackendMiniaudio} {
		host, err := NewHost(Options{Backend: backend})
		require.NoError(t, err)
		if backend == "" {
			require.Equal(t, BackendPulse, host.Backend())
		} else {
			require.Equal(t, backend, host.Backend())
		}
	}

	_, err := NewHost(Options{Backend: "jack"})
	require.Error(t, err)
}

func TestOptionsFrameMath(t *testing.T) {
	opts := Options{SampleRate: 48000, Channels: 2, Latency: 40 * time.Millisecond}
	require.Equal(t, 960, opts.framesPerBuffer())
	require.Equal(t, 960*2*4, opts.bufferSamples())

	tiny := Options{SampleRate: 8000, Channels: 1, Latency: time.Millisecond}
	require.Equal(t, 64, tiny.framesPerBuffer())
}

func TestPCMByteConversion(t *testing.T) {
	samples := []int16{1, -1, 32767, -32768}
	raw := make([]byte, len(samples)*2)
	int16ToBytes(samples, raw)
	require.Equal(t, []byte{1, 0, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}, raw)
	require.Equal(t, samples, bytesToInt16(raw))
	require.Len(t, bytesToInt16([]byte{1, 2, 3}), 1)
}

func TestConfigOptions(t *testing.T) {
	cfg := config.Default().Audio
	cfg.Backend = BackendMiniaudio
	cfg.Input = "usb"
	cfg.LatencyMS = 25

	opts := ConfigOptions(cfg, nil)
	require.Equal(t, BackendMiniaudio, opts.Backend)
	require.Equal(t, "usb", opts.Input)
	require.Equal(t, 25*time.Millisecond, opts.Latency)
	require.Equal(t, 48000, opts.SampleRate)
	require.Nil(t, opts.Logger)
	require.NotNil(t, opts.withDefaults().Logger)
}
