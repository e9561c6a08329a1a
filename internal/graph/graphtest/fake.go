// Package graphtest provides an in-memory graph.Host for tests.
package graphtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rbright/spymic/internal/graph"
)

// ErrDenied is returned by RequestCapture when Host.Deny is set.
var ErrDenied = errors.New("permission denied by user")

// Host records every primitive call and can be told to fail at any step.
type Host struct {
	Deny           bool
	FailContext    bool
	FailSource     bool
	FailGain       bool
	FailConnect    bool
	FailStop       bool
	FailClose      bool
	FailDisconnect bool

	// Gate, when set, blocks RequestCapture until it is closed.
	Gate chan struct{}
	// Entered receives one value each time RequestCapture starts waiting.
	Entered chan struct{}

	Requests atomic.Int32

	mu       sync.Mutex
	streams  []*Stream
	contexts []*Context
}

// RequestCapture implements graph.Host.
func (h *Host) RequestCapture(ctx context.Context) (graph.Stream, error) {
	h.Requests.Add(1)
	if h.Entered != nil {
		h.Entered <- struct{}{}
	}
	if h.Gate != nil {
		select {
		case <-h.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.Deny {
		return nil, ErrDenied
	}

	s := &Stream{tracks: []*Track{{host: h}, {host: h}}}
	h.mu.Lock()
	h.streams = append(h.streams, s)
	h.mu.Unlock()
	return s, nil
}

// NewContext implements graph.Host.
func (h *Host) NewContext() (graph.Context, error) {
	if h.FailContext {
		return nil, errors.New("context unavailable")
	}
	c := &Context{host: h, destination: &Node{host: h, name: "destination"}}
	h.mu.Lock()
	h.contexts = append(h.contexts, c)
	h.mu.Unlock()
	return c, nil
}

// Streams returns every stream handed out so far.
func (h *Host) Streams() []*Stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Stream(nil), h.streams...)
}

// Contexts returns every context created so far.
func (h *Host) Contexts() []*Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Context(nil), h.contexts...)
}

// Stream is a fake capture stream with two tracks.
type Stream struct {
	tracks []*Track
}

// Tracks implements graph.Stream.
func (s *Stream) Tracks() []graph.Track {
	out := make([]graph.Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

// Stopped reports whether every track has been stopped.
func (s *Stream) Stopped() bool {
	for _, t := range s.tracks {
		if t.stops.Load() == 0 {
			return false
		}
	}
	return true
}

// Track is a fake capture track.
type Track struct {
	host  *Host
	stops atomic.Int32
}

// Stop implements graph.Track.
func (t *Track) Stop() error {
	t.stops.Add(1)
	if t.host.FailStop {
		return errors.New("track stop failed")
	}
	return nil
}

// Context is a fake processing context.
type Context struct {
	host        *Host
	destination *Node

	mu      sync.Mutex
	closed  bool
	closes  int
	sources []*Node
	gains   []*GainNode
}

// NewSource implements graph.Context.
func (c *Context) NewSource(graph.Stream) (graph.Node, error) {
	if c.host.FailSource {
		return nil, errors.New("source unavailable")
	}
	n := &Node{host: c.host, name: "source"}
	c.mu.Lock()
	c.sources = append(c.sources, n)
	c.mu.Unlock()
	return n, nil
}

// NewGain implements graph.Context.
func (c *Context) NewGain() (graph.GainNode, error) {
	if c.host.FailGain {
		return nil, errors.New("gain unavailable")
	}
	n := &GainNode{Node: Node{host: c.host, name: "gain"}}
	c.mu.Lock()
	c.gains = append(c.gains, n)
	c.mu.Unlock()
	return n, nil
}

// Destination implements graph.Context.
func (c *Context) Destination() graph.Node {
	return c.destination
}

// Close implements graph.Context.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.host.FailClose {
		return errors.New("context close failed")
	}
	c.closed = true
	return nil
}

// Closed implements graph.Context.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Closes returns how many times Close was called.
func (c *Context) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Sources returns the source nodes created in this context.
func (c *Context) Sources() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Node(nil), c.sources...)
}

// Gains returns the gain nodes created in this context.
func (c *Context) Gains() []*GainNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*GainNode(nil), c.gains...)
}

// Node is a fake graph node.
type Node struct {
	host *Host
	name string

	mu          sync.Mutex
	next        graph.Node
	disconnects int
}

// Connect implements graph.Node.
func (n *Node) Connect(next graph.Node) error {
	if n.host.FailConnect {
		return errors.New("connect failed")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next = next
	return nil
}

// Disconnect implements graph.Node.
func (n *Node) Disconnect() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnects++
	n.next = nil
	if n.host.FailDisconnect {
		return errors.New(n.name + " disconnect failed")
	}
	return nil
}

// Next returns the node this one is connected to.
func (n *Node) Next() graph.Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next
}

// Disconnects returns how many times Disconnect was called.
func (n *Node) Disconnects() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disconnects
}

// GainNode is a fake gain node recording every applied value.
type GainNode struct {
	Node

	gmu    sync.Mutex
	values []float64
}

// SetGain implements graph.GainNode.
func (g *GainNode) SetGain(v float64) {
	g.gmu.Lock()
	defer g.gmu.Unlock()
	g.values = append(g.values, v)
}

// Gain returns the last applied value, or -1 when none was applied.
func (g *GainNode) Gain() float64 {
	g.gmu.Lock()
	defer g.gmu.Unlock()
	if len(g.values) == 0 {
		return -1
	}
	return g.values[len(g.values)-1]
}

// Applied returns every applied value in order.
func (g *GainNode) Applied() []float64 {
	g.gmu.Lock()
	defer g.gmu.Unlock()
	return append([]float64(nil), g.values...)
}
