// Package mailbox implements the bounded MPSC channels nodes exchange
// frames over: Outgoing fans a node's output to one or more downstream
// input ports, Incoming receives a node's input, merged from one or more
// upstream Outgoings the way Go channels natively support multiple
// senders.
package mailbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/tevino/abool"
	"go.uber.org/atomic"
)

// DefaultCapacity is the default bounded capacity of a mailbox edge.
const DefaultCapacity = 128

// Message is one frame travelling over an edge, tagged with the input port
// the receiving node should treat it as arriving on.
type Message[T any] struct {
	Port    int
	Payload T
	Finish  bool // upstream-finish signal; Payload is the zero value
}

type edgeSender[T any] struct {
	ch      chan Message[T]
	outPort int
	inPort  int
	closed  *abool.AtomicBool
}

// Outgoing is a node's fan-out: zero or more downstream edges, each
// associated with one of this node's output ports and the input port of
// the node on the other end.
type Outgoing[T any] struct {
	mu    sync.RWMutex
	edges []*edgeSender[T]
}

// NewOutgoing returns an Outgoing with no edges. Edges are added with Add
// or Merge by the topology builder.
func NewOutgoing[T any]() *Outgoing[T] { return &Outgoing[T]{} }

// Add registers ch as the edge for this node's outPort, tagging messages
// sent on it with inPort so a fan-in receiver knows which logical input
// the frame arrived on.
func (o *Outgoing[T]) Add(ch chan Message[T], outPort, inPort int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.edges = append(o.edges, &edgeSender[T]{ch: ch, outPort: outPort, inPort: inPort, closed: abool.New()})
}

// Merge appends other's edges into o, the way the topology builder folds a
// node's per-downstream Outgoing fragments into one combined Outgoing.
func (o *Outgoing[T]) Merge(other *Outgoing[T]) {
	other.mu.RLock()
	edges := append([]*edgeSender[T](nil), other.edges...)
	other.mu.RUnlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.edges = append(o.edges, edges...)
}

// Ports returns the output port numbers this Outgoing can send on.
func (o *Outgoing[T]) Ports() []int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ports := make([]int, len(o.edges))
	for i, e := range o.edges {
		ports[i] = e.outPort
	}
	return ports
}

// PortsLen returns the number of edges (downstream connections).
func (o *Outgoing[T]) PortsLen() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.edges)
}

func (o *Outgoing[T]) find(outPort int) (*edgeSender[T], bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, e := range o.edges {
		if e.outPort == outPort {
			return e, true
		}
	}
	return nil, false
}

// IsClosedAt reports whether the edge at outPort has been marked closed.
func (o *Outgoing[T]) IsClosedAt(outPort int) bool {
	e, ok := o.find(outPort)
	if !ok {
		return true
	}
	return e.closed.IsSet()
}

// SendTo sends payload on outPort, blocking until the edge has room or ctx
// is done. UnknownPort is returned if no edge is registered for outPort.
func (o *Outgoing[T]) SendTo(ctx context.Context, outPort int, payload T) error {
	e, ok := o.find(outPort)
	if !ok {
		return fmt.Errorf("mailbox: unknown output port %d", outPort)
	}
	if e.closed.IsSet() {
		return fmt.Errorf("mailbox: send on closed port %d", outPort)
	}
	select {
	case e.ch <- Message[T]{Port: e.inPort, Payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send sends payload on output port 0.
func (o *Outgoing[T]) Send(ctx context.Context, payload T) error {
	return o.SendTo(ctx, 0, payload)
}

// SendOkTo is SendTo ignoring the error, returning whether it succeeded.
func (o *Outgoing[T]) SendOkTo(ctx context.Context, outPort int, payload T) bool {
	return o.SendTo(ctx, outPort, payload) == nil
}

// SendOk is SendOkTo on output port 0.
func (o *Outgoing[T]) SendOk(ctx context.Context, payload T) bool {
	return o.SendOkTo(ctx, 0, payload)
}

// SendOkAll broadcasts payload to every port, best-effort, ignoring
// per-port send errors. Upstream-finish markers are sent with FinishAll.
func (o *Outgoing[T]) SendOkAll(ctx context.Context, payload T) {
	for _, p := range o.Ports() {
		o.SendOkTo(ctx, p, payload)
	}
}

// FinishAll broadcasts an upstream-finish marker to every port and marks
// each edge closed.
func (o *Outgoing[T]) FinishAll(ctx context.Context) {
	o.mu.RLock()
	edges := append([]*edgeSender[T](nil), o.edges...)
	o.mu.RUnlock()
	for _, e := range edges {
		select {
		case e.ch <- Message[T]{Port: e.inPort, Finish: true}:
		case <-ctx.Done():
		}
		e.closed.Set()
	}
}

// Incoming receives the messages sent to a node's input, from one or more
// upstream Outgoings sharing the same underlying channel the way Go
// channels natively support multiple senders (true MPSC fan-in).
type Incoming[T any] struct {
	ch            chan Message[T]
	upstreamCount int
	finished      *atomic.Int64
}

// NewIncoming creates the shared channel for a node's input and the
// Incoming wrapper over it. upstreamCount is the number of distinct
// upstream nodes expected to send on ch, used to know when every upstream
// has signalled finish.
func NewIncoming[T any](buffer, upstreamCount int) (chan Message[T], *Incoming[T]) {
	if buffer <= 0 {
		buffer = DefaultCapacity
	}
	ch := make(chan Message[T], buffer)
	return ch, &Incoming[T]{ch: ch, upstreamCount: upstreamCount, finished: atomic.NewInt64(0)}
}

// Next blocks for the next message, returning ok=false if ctx is done.
// Finish markers are counted internally and also surfaced to the caller so
// the node executor can react per upstream (e.g. log), but AllUpstreamFinished
// is the authoritative "every upstream is done" signal.
func (in *Incoming[T]) Next(ctx context.Context) (Message[T], bool) {
	select {
	case m := <-in.ch:
		if m.Finish {
			in.finished.Inc()
		}
		return m, true
	case <-ctx.Done():
		return Message[T]{}, false
	}
}

// AllUpstreamFinished reports whether every expected upstream has sent its
// finish marker.
func (in *Incoming[T]) AllUpstreamFinished() bool {
	return in.upstreamCount == 0 || in.finished.Load() >= int64(in.upstreamCount)
}

// UpstreamCount returns the number of distinct upstreams feeding this
// Incoming.
func (in *Incoming[T]) UpstreamCount() int { return in.upstreamCount }
