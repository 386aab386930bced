// Package topology compiles a validated graph.Graph into the set of
// mailbox channels a task executor spawns node loops against: one
// Incoming per node's input, one Outgoing per node's output (folded from
// every downstream edge that reads it), the starter channels used to seed
// source nodes, and a shared Awaiter the executor blocks on until every
// sink has signalled finish.
package topology

import (
	"github.com/dagflow/flowcore/pkg/flow/frame"
	"github.com/dagflow/flowcore/pkg/flow/graph"
	"github.com/dagflow/flowcore/pkg/flow/mailbox"
)

// Topology is the compiled channel plan for one graph run.
type Topology struct {
	Incomings map[graph.Uri]*mailbox.Incoming[frame.Frame]
	Outgoings map[graph.Uri]*mailbox.Outgoing[frame.Frame]
	// Starters holds the channel a task executor sends the seed frame and
	// finish marker into, for every node with no input wire.
	Starters map[graph.Uri]chan mailbox.Message[frame.Frame]
	// Awaiter receives a finish marker from every sink node; the task
	// executor blocks until it has seen one per sink.
	Awaiter *mailbox.Incoming[frame.Frame]
}

// Build derives the channel topology for g. g must already have passed
// Validate. bufferSize <= 0 uses mailbox.DefaultCapacity.
func Build(g *graph.Graph, bufferSize int) *Topology {
	if bufferSize <= 0 {
		bufferSize = mailbox.DefaultCapacity
	}

	t := &Topology{
		Incomings: make(map[graph.Uri]*mailbox.Incoming[frame.Frame], len(g.Nodes)),
		Outgoings: make(map[graph.Uri]*mailbox.Outgoing[frame.Frame], len(g.Nodes)),
		Starters:  make(map[graph.Uri]chan mailbox.Message[frame.Frame]),
	}

	// Every node gets an empty Outgoing up front so downstream edges can
	// be folded into it regardless of visitation order.
	for _, n := range g.Nodes {
		t.Outgoings[n.Uri] = mailbox.NewOutgoing[frame.Frame]()
	}

	sinkCount := 0
	for _, n := range g.Nodes {
		if isSink(n.PortType) {
			sinkCount++
		}
	}
	awaiterCh, awaiter := mailbox.NewIncoming[frame.Frame](bufferSize, sinkCount)
	t.Awaiter = awaiter

	for _, n := range g.Nodes {
		switch n.In.Kind {
		case "none":
			ch, incoming := mailbox.NewIncoming[frame.Frame](bufferSize, 1)
			t.Incomings[n.Uri] = incoming
			t.Starters[n.Uri] = ch
		default: // "single" or "fanin"
			upstreamCount := len(n.In.From)
			ch, incoming := mailbox.NewIncoming[frame.Frame](bufferSize, upstreamCount)
			t.Incomings[n.Uri] = incoming
			// inPort is this upstream's position within n's own fan-in list
			// (spec.md §4.4: "the idx is the input-port index the receiver
			// will see"), not anything declared by the sender.
			for inPort, from := range n.In.From {
				fromNode, ok := g.Node(from)
				if !ok {
					continue
				}
				outPort := outPortFor(fromNode, n.Uri)
				t.Outgoings[from].Add(ch, outPort, inPort)
			}
		}

		if isSink(n.PortType) {
			t.Outgoings[n.Uri].Add(awaiterCh, 0, 0)
		}
	}

	return t
}

func isSink(p graph.PortType) bool {
	return p == graph.PortSink || p == graph.PortFanInSink
}

// outPortFor returns the output port number on from that targets to,
// derived from to's position among from's fanout/single targets.
func outPortFor(from graph.Node, to graph.Uri) int {
	for i, t := range from.Out.To {
		if t == to {
			return i
		}
	}
	return 0
}
