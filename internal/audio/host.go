// Package audio implements the live monitoring graph on top of a native
// audio backend: capture devices feed a gain stage that plays to an output.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/spymic/internal/config"
	"github.com/rbright/spymic/internal/gain"
	"github.com/rbright/spymic/internal/graph"
)

const (
	BackendPulse     = "pulse"
	BackendPortAudio = "portaudio"
	BackendMiniaudio = "miniaudio"

	defaultSampleRate = 48000
	defaultChannels   = 1
	defaultLatency    = 40 * time.Millisecond
)

// Options selects the backend, devices, and stream format.
type Options struct {
	Backend    string
	Input      string
	Output     string
	Fallback   string
	SampleRate int
	Channels   int
	Latency    time.Duration
	Logger     *slog.Logger
}

// ConfigOptions maps the audio config section onto Options.
func ConfigOptions(cfg config.AudioConfig, logger *slog.Logger) Options {
	return Options{
		Backend:    cfg.Backend,
		Input:      cfg.Input,
		Output:     cfg.Output,
		Fallback:   cfg.Fallback,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Latency:    time.Duration(cfg.LatencyMS) * time.Millisecond,
		Logger:     logger,
	}
}

func (o Options) withDefaults() Options {
	if o.Backend == "" {
		o.Backend = BackendPulse
	}
	if o.SampleRate <= 0 {
		o.SampleRate = defaultSampleRate
	}
	if o.Channels <= 0 {
		o.Channels = defaultChannels
	}
	if o.Latency <= 0 {
		o.Latency = defaultLatency
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// framesPerBuffer is half the configured latency, in frames.
func (o Options) framesPerBuffer() int {
	frames := int(int64(o.SampleRate) * int64(o.Latency) / int64(time.Second) / 2)
	if frames < 64 {
		return 64
	}
	return frames
}

// bufferSamples bounds the queued samples between capture and playback.
func (o Options) bufferSamples() int {
	return o.framesPerBuffer() * o.Channels * 4
}

// driver opens native capture and playback streams. Callbacks run on the
// backend's audio thread and must not retain the slices they are handed.
type driver interface {
	devices(ctx context.Context) ([]Device, error)
	openCapture(ctx context.Context, deliver func([]int16)) (io.Closer, error)
	openPlayback(fill func([]int16)) (io.Closer, error)
}

func newDriver(opts Options) (driver, error) {
	switch opts.Backend {
	case BackendPulse:
		return &pulseDriver{opts: opts}, nil
	case BackendPortAudio:
		return &portaudioDriver{opts: opts}, nil
	case BackendMiniaudio:
		return &miniaudioDriver{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unsupported audio backend %q", opts.Backend)
	}
}

// Host is a graph.Host backed by one native driver.
type Host struct {
	opts   Options
	driver driver
}

// NewHost resolves the configured backend.
func NewHost(opts Options) (*Host, error) {
	opts = opts.withDefaults()
	drv, err := newDriver(opts)
	if err != nil {
		return nil, err
	}
	return &Host{opts: opts, driver: drv}, nil
}

// Backend returns the resolved backend name.
func (h *Host) Backend() string {
	return h.opts.Backend
}

// RequestCapture opens the input device. Failure to open is reported as the
// permission refusal.
func (h *Host) RequestCapture(ctx context.Context) (graph.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newStream()
	closer, err := h.driver.openCapture(ctx, s.publish)
	if err != nil {
		return nil, err
	}
	s.track = &track{closer: closer}

	// The request may have been cancelled while the device was opening.
	if err := ctx.Err(); err != nil {
		_ = s.track.Stop()
		return nil, err
	}

	h.opts.Logger.Debug("capture stream opened", "backend", h.opts.Backend)
	return s, nil
}

// NewContext opens the output device and returns a processing context whose
// destination plays whatever reaches it.
func (h *Host) NewContext() (graph.Context, error) {
	sink := newSinkNode(h.opts.bufferSamples())
	closer, err := h.driver.openPlayback(sink.fill)
	if err != nil {
		return nil, fmt.Errorf("open playback: %w", err)
	}
	return &processingContext{sink: sink, playback: closer}, nil
}

// stream fans captured PCM out to connected source nodes.
type stream struct {
	mu          sync.Mutex
	subscribers map[int]func([]int16)
	next        int
	track       *track
}

func newStream() *stream {
	return &stream{subscribers: make(map[int]func([]int16))}
}

func (s *stream) Tracks() []graph.Track {
	if s.track == nil {
		return nil
	}
	return []graph.Track{s.track}
}

func (s *stream) subscribe(fn func([]int16)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *stream) publish(samples []int16) {
	s.mu.Lock()
	fns := make([]func([]int16), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(samples)
	}
}

// track closes the native capture stream exactly once.
type track struct {
	once   sync.Once
	closer io.Closer
	err    error
}

func (t *track) Stop() error {
	t.once.Do(func() {
		if t.closer != nil {
			t.err = t.closer.Close()
		}
	})
	return t.err
}

// processingContext owns the output device.
type processingContext struct {
	sink *sinkNode

	mu       sync.Mutex
	closed   bool
	playback io.Closer
}

func (c *processingContext) NewSource(s graph.Stream) (graph.Node, error) {
	st, ok := s.(*stream)
	if !ok {
		return nil, fmt.Errorf("unsupported stream %T", s)
	}
	if c.Closed() {
		return nil, errors.New("processing context is closed")
	}
	return &sourceNode{stream: st}, nil
}

func (c *processingContext) NewGain() (graph.GainNode, error) {
	if c.Closed() {
		return nil, errors.New("processing context is closed")
	}
	return &gainNode{}, nil
}

func (c *processingContext) Destination() graph.Node {
	return c.sink
}

func (c *processingContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.sink.reset()
	if c.playback == nil {
		return nil
	}
	return c.playback.Close()
}

func (c *processingContext) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// receiver is any node that accepts PCM pushed from upstream.
type receiver interface {
	receive(samples []int16)
}

func asReceiver(n graph.Node) (receiver, error) {
	r, ok := n.(receiver)
	if !ok {
		return nil, fmt.Errorf("node %T accepts no input", n)
	}
	return r, nil
}

// sourceNode copies captured PCM into the graph.
type sourceNode struct {
	stream *stream

	mu     sync.Mutex
	cancel func()
}

func (n *sourceNode) Connect(next graph.Node) error {
	target, err := asReceiver(next)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
	}
	n.cancel = n.stream.subscribe(func(samples []int16) {
		buf := make([]int16, len(samples))
		copy(buf, samples)
		target.receive(buf)
	})
	return nil
}

func (n *sourceNode) Disconnect() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	return nil
}

// gainNode scales samples in place before forwarding them.
type gainNode struct {
	stage gain.Stage

	mu   sync.Mutex
	next receiver
}

func (n *gainNode) SetGain(value float64) {
	n.stage.Set(value)
}

func (n *gainNode) receive(samples []int16) {
	n.stage.Apply(samples)

	n.mu.Lock()
	next := n.next
	n.mu.Unlock()
	if next != nil {
		next.receive(samples)
	}
}

func (n *gainNode) Connect(next graph.Node) error {
	target, err := asReceiver(next)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.next = target
	n.mu.Unlock()
	return nil
}

func (n *gainNode) Disconnect() error {
	n.mu.Lock()
	n.next = nil
	n.mu.Unlock()
	return nil
}

// sinkNode queues PCM for the output device; underruns play silence.
type sinkNode struct {
	buf *ring
}

func newSinkNode(capacity int) *sinkNode {
	return &sinkNode{buf: newRing(capacity)}
}

func (n *sinkNode) receive(samples []int16) {
	n.buf.write(samples)
}

func (n *sinkNode) fill(out []int16) {
	read := n.buf.read(out)
	clear(out[read:])
}

func (n *sinkNode) reset() {
	n.buf.reset()
}

func (n *sinkNode) Connect(graph.Node) error {
	return errors.New("destination has no outputs")
}

func (n *sinkNode) Disconnect() error {
	return nil
}

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}
