// Package graph implements the immutable DAG of typed service nodes that a
// task is built from: wiring is expressed per node as an input wire
// (none/single/fan-in) and an output wire (none/single/fan-out), validated
// for port-type consistency and acyclicity before a task may run it.
package graph

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/dagflow/flowcore/pkg/flow/value"
)

// Uri identifies a node within a single graph, e.g. "/read" or "/split/a".
type Uri string

// ServiceType names the (namespace, name) pair a node's handler is
// resolved from in the registry.
type ServiceType struct {
	Namespace string
	Name      string
}

func (t ServiceType) String() string { return t.Namespace + "::" + t.Name }

// PortType constrains how a node may be wired.
type PortType int

const (
	// PortFlow is an ordinary node: exactly one input, exactly one output.
	PortFlow PortType = iota
	// PortSource has no input wire; it only emits.
	PortSource
	// PortSink has no output wire; it only consumes.
	PortSink
	// PortFanOutSource has no input wire and a Fanout output wire.
	PortFanOutSource
	// PortFanInSink has a Fanin input wire and no output wire.
	PortFanInSink
)

func (p PortType) String() string {
	switch p {
	case PortFlow:
		return "flow"
	case PortSource:
		return "source"
	case PortSink:
		return "sink"
	case PortFanOutSource:
		return "fan-out-source"
	case PortFanInSink:
		return "fan-in-sink"
	default:
		return "unknown"
	}
}

// InputWire describes how a node receives frames.
type InputWire struct {
	// Kind is one of "none", "single", "fanin".
	Kind string
	From []Uri // single: len 1; fanin: len >= 1
}

func NoInput() InputWire { return InputWire{Kind: "none"} }

func SingleInput(from Uri) InputWire { return InputWire{Kind: "single", From: []Uri{from}} }
func FaninInput(from ...Uri) InputWire {
	cp := append([]Uri(nil), from...)
	return InputWire{Kind: "fanin", From: cp}
}

// OutputWire describes how a node sends frames onward. The input port a
// fanned-in receiver sees is not declared here — it is derived at topology
// build time from the receiver's own input-wire position (see
// internal/topology), since the same upstream's output port can feed
// different input ports on different downstream fan-in nodes.
type OutputWire struct {
	// Kind is one of "none", "single", "fanout".
	Kind string
	To   []Uri // single: len 1; fanout: len >= 1
}

func NoOutput() OutputWire { return OutputWire{Kind: "none"} }

func SingleOutput(to Uri) OutputWire { return OutputWire{Kind: "single", To: []Uri{to}} }
func FanoutOutput(to ...Uri) OutputWire {
	cp := append([]Uri(nil), to...)
	return OutputWire{Kind: "fanout", To: cp}
}

// Node is one service instance within a graph.
type Node struct {
	Uri      Uri
	Type     ServiceType
	Config   value.Value
	PortType PortType
	In       InputWire
	Out      OutputWire
}

// Graph is an immutable DAG of Nodes. Construct with New, then Validate
// before handing it to a task executor.
type Graph struct {
	Name  string
	Nodes []Node

	byURI map[Uri]Node
	order []Uri // topological order, populated by Validate
}

// New builds a Graph from its name and node list. It does not validate.
func New(name string, nodes []Node) *Graph {
	byURI := make(map[Uri]Node, len(nodes))
	for _, n := range nodes {
		byURI[n.Uri] = n
	}
	return &Graph{Name: name, Nodes: nodes, byURI: byURI}
}

// Node looks up a node by its Uri.
func (g *Graph) Node(u Uri) (Node, bool) {
	n, ok := g.byURI[u]
	return n, ok
}

// Order returns the graph's nodes in reverse-topological (sink-to-source)
// order, as computed by the most recent successful Validate. Callers that
// need forward order should reverse it.
func (g *Graph) Order() []Uri {
	cp := make([]Uri, len(g.order))
	copy(cp, g.order)
	return cp
}

// Validate checks port-type/wiring consistency and acyclicity, collecting
// every violation found rather than stopping at the first.
func (g *Graph) Validate() error {
	var errs error

	for _, n := range g.Nodes {
		errs = multierr.Append(errs, validatePortType(n))
		for _, from := range n.In.From {
			if _, ok := g.byURI[from]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("node %q: input wire references unknown node %q", n.Uri, from))
			}
		}
		for _, to := range n.Out.To {
			if _, ok := g.byURI[to]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("node %q: output wire references unknown node %q", n.Uri, to))
			}
		}
	}
	if errs != nil {
		return errs
	}

	order, err := g.topoSort()
	if err != nil {
		return err
	}
	g.order = order
	return nil
}

func validatePortType(n Node) error {
	switch n.PortType {
	case PortSource:
		if n.In.Kind != "none" {
			return fmt.Errorf("node %q: source port must have no input wire", n.Uri)
		}
		if n.Out.Kind != "single" {
			return fmt.Errorf("node %q: source port must have a single output wire", n.Uri)
		}
	case PortSink:
		if n.Out.Kind != "none" {
			return fmt.Errorf("node %q: sink port must have no output wire", n.Uri)
		}
		if n.In.Kind != "single" {
			return fmt.Errorf("node %q: sink port must have a single input wire", n.Uri)
		}
	case PortFanOutSource:
		if n.In.Kind != "none" {
			return fmt.Errorf("node %q: fan-out-source port must have no input wire", n.Uri)
		}
		if n.Out.Kind != "fanout" {
			return fmt.Errorf("node %q: fan-out-source port must have a fanout output wire", n.Uri)
		}
	case PortFanInSink:
		if n.In.Kind != "fanin" {
			return fmt.Errorf("node %q: fan-in-sink port must have a fanin input wire", n.Uri)
		}
		if n.Out.Kind != "none" {
			return fmt.Errorf("node %q: fan-in-sink port must have no output wire", n.Uri)
		}
	case PortFlow:
		if n.In.Kind != "single" {
			return fmt.Errorf("node %q: flow port must have a single input wire", n.Uri)
		}
		if n.Out.Kind != "single" {
			return fmt.Errorf("node %q: flow port must have a single output wire", n.Uri)
		}
	default:
		return fmt.Errorf("node %q: unknown port type", n.Uri)
	}
	return nil
}

// topoSort returns Nodes in reverse-topological (sinks first) order using
// Kahn's algorithm over out-edges, matching the deterministic sorted-queue
// discipline used elsewhere in this codebase for load ordering.
func (g *Graph) topoSort() ([]Uri, error) {
	outDegree := make(map[Uri]int, len(g.Nodes))
	consumers := make(map[Uri][]Uri, len(g.Nodes))

	for _, n := range g.Nodes {
		outDegree[n.Uri] = len(n.Out.To)
		for _, to := range n.Out.To {
			consumers[to] = append(consumers[to], n.Uri)
		}
	}

	queue := make([]Uri, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if outDegree[n.Uri] == 0 {
			queue = append(queue, n.Uri)
		}
	}
	sortUris(queue)

	result := make([]Uri, 0, len(g.Nodes))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		result = append(result, cur)

		preds := consumers[cur]
		sortUris(preds)
		for _, p := range preds {
			outDegree[p]--
			if outDegree[p] == 0 {
				queue = append(queue, p)
			}
		}
		sortUris(queue)
	}

	if len(result) != len(g.Nodes) {
		return nil, fmt.Errorf("graph %q: cycle detected among nodes", g.Name)
	}
	return result, nil
}

func sortUris(us []Uri) {
	sort.Slice(us, func(i, j int) bool { return us[i] < us[j] })
}
