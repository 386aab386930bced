package graph

import (
	"fmt"

	"github.com/dagflow/flowcore/pkg/flow/value"
)

// PortTypeResolver answers the declared PortType for a ServiceType, as
// registered against a Factory (pkg/flow/registry.App.PortTypeOf). Graph
// has no dependency on the registry package itself (that would cycle), so
// ParseGraph takes the lookup as a callback.
type PortTypeResolver func(ServiceType) (PortType, bool)

// ParseGraph builds a Graph from a Value shaped as:
//
//	{ name: string, services: [ { type: {namespace,name}, uri: string,
//	  config: value, wires: string | [string] | none } ... ] }
//
// matching spec.md §4.2's construction contract. Input wires are not
// declared directly: a node's input-wire is derived by inverting every
// other node's "wires" list and counting how many wire entries name this
// node as a target (0 -> none, 1 -> single, >1 -> fanin, in the order the
// upstreams appear in the services list). An upstream that lists the same
// target twice is counted twice. The returned Graph is not
// yet validated; callers must still call Validate.
func ParseGraph(v value.Value, portTypeOf PortTypeResolver) (*Graph, error) {
	nameVal, ok := v.Path("name")
	if !ok {
		return nil, fmt.Errorf("graph: missing \"name\"")
	}
	graphName, err := nameVal.AsString()
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}

	servicesVal, ok := v.Path("services")
	if !ok {
		return nil, fmt.Errorf("graph: missing \"services\"")
	}
	services, err := servicesVal.AsSeq()
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}

	type parsed struct {
		uri      Uri
		typ      ServiceType
		cfg      value.Value
		portType PortType
		wires    []Uri
	}

	order := make([]parsed, 0, len(services))
	seen := make(map[Uri]bool, len(services))

	for i, sv := range services {
		uriVal, ok := sv.Path("uri")
		if !ok {
			return nil, fmt.Errorf("graph: services[%d]: missing \"uri\"", i)
		}
		uriStr, err := uriVal.AsString()
		if err != nil {
			return nil, fmt.Errorf("graph: services[%d]: %w", i, err)
		}
		uri := Uri(uriStr)
		if seen[uri] {
			return nil, fmt.Errorf("graph: duplicate uri %q", uri)
		}
		seen[uri] = true

		typeVal, ok := sv.Path("type")
		if !ok {
			return nil, fmt.Errorf("graph: services[%d] (%s): missing \"type\"", i, uri)
		}
		nsVal, ok := typeVal.Path("namespace")
		if !ok {
			return nil, fmt.Errorf("graph: services[%d] (%s): type.namespace missing", i, uri)
		}
		ns, err := nsVal.AsString()
		if err != nil {
			return nil, fmt.Errorf("graph: services[%d] (%s): %w", i, uri, err)
		}
		nameTVal, ok := typeVal.Path("name")
		if !ok {
			return nil, fmt.Errorf("graph: services[%d] (%s): type.name missing", i, uri)
		}
		tname, err := nameTVal.AsString()
		if err != nil {
			return nil, fmt.Errorf("graph: services[%d] (%s): %w", i, uri, err)
		}
		st := ServiceType{Namespace: ns, Name: tname}

		portType, ok := portTypeOf(st)
		if !ok {
			return nil, fmt.Errorf("graph: services[%d] (%s): unresolved service type %s", i, uri, st)
		}

		cfg, ok := sv.Path("config")
		if !ok {
			cfg = value.Unit()
		}

		wires, err := parseWires(sv)
		if err != nil {
			return nil, fmt.Errorf("graph: services[%d] (%s): %w", i, uri, err)
		}

		order = append(order, parsed{uri: uri, typ: st, cfg: cfg, portType: portType, wires: wires})
	}

	incoming := make(map[Uri][]Uri, len(order))
	for _, p := range order {
		for _, to := range p.wires {
			incoming[to] = append(incoming[to], p.uri)
		}
	}

	nodes := make([]Node, 0, len(order))
	for _, p := range order {
		var out OutputWire
		switch len(p.wires) {
		case 0:
			out = NoOutput()
		case 1:
			out = SingleOutput(p.wires[0])
		default:
			out = FanoutOutput(p.wires...)
		}

		var in InputWire
		switch froms := incoming[p.uri]; len(froms) {
		case 0:
			in = NoInput()
		case 1:
			in = SingleInput(froms[0])
		default:
			in = FaninInput(froms...)
		}

		nodes = append(nodes, Node{
			Uri:      p.uri,
			Type:     p.typ,
			Config:   p.cfg,
			PortType: p.portType,
			In:       in,
			Out:      out,
		})
	}

	return New(graphName, nodes), nil
}

// parseWires normalizes the "wires" field of a raw service entry: absent or
// an optional-none yields no targets, a single string yields one target,
// and a sequence yields each element coerced to a Uri.
func parseWires(sv value.Value) ([]Uri, error) {
	wiresVal, ok := sv.Path("wires")
	if !ok {
		return nil, nil
	}
	if inner, present, err := wiresVal.AsOptional(); err == nil {
		if !present {
			return nil, nil
		}
		wiresVal = inner
	}
	switch wiresVal.Kind() {
	case value.KindString:
		s, err := wiresVal.AsString()
		if err != nil {
			return nil, err
		}
		return []Uri{Uri(s)}, nil
	case value.KindSeq:
		items, err := wiresVal.AsSeq()
		if err != nil {
			return nil, err
		}
		out := make([]Uri, 0, len(items))
		for _, it := range items {
			s, err := it.AsString()
			if err != nil {
				return nil, fmt.Errorf("wires: %w", err)
			}
			out = append(out, Uri(s))
		}
		return out, nil
	case value.KindUnit:
		return nil, nil
	default:
		return nil, fmt.Errorf("wires: expected string, sequence, or null, got %s", wiresVal.Kind())
	}
}
