// Package demoservices registers a minimal source/sink service pair used
// by cmd/flowdemo to exercise the supervisor end to end, and by package
// tests as a stand-in for real service implementations (which are
// out-of-scope individual service implementations per the core's own
// boundary).
package demoservices

import (
	"context"
	"fmt"

	"github.com/dagflow/flowcore/pkg/flow/frame"
	"github.com/dagflow/flowcore/pkg/flow/graph"
	"github.com/dagflow/flowcore/pkg/flow/mailbox"
	"github.com/dagflow/flowcore/pkg/flow/registry"
	"github.com/dagflow/flowcore/pkg/flow/value"
)

// GenType names the source service that emits a configurable count of
// integer frames.
var GenType = graph.ServiceType{Namespace: "demo", Name: "gen"}

// CountType names the sink service that sums every integer frame it
// receives.
var CountType = graph.ServiceType{Namespace: "demo", Name: "count"}

// RegisterAll registers GenType and CountType on app.
func RegisterAll(app *registry.App) error {
	if err := app.Register(GenType, genFactory{}); err != nil {
		return err
	}
	if err := app.Register(CountType, countFactory{}); err != nil {
		return err
	}
	return nil
}

// CountGraph builds a two-node graph: a gen source emitting n frames wired
// straight into a count sink.
func CountGraph(name string, n int) *graph.Graph {
	cfg := value.NewMap()
	cfg.Set("n", value.I64(int64(n)))

	nodes := []graph.Node{
		{
			Uri:      "/gen",
			Type:     GenType,
			Config:   value.MapValue(cfg),
			PortType: graph.PortSource,
			In:       graph.NoInput(),
			Out:      graph.SingleOutput("/count"),
		},
		{
			Uri:      "/count",
			Type:     CountType,
			Config:   value.Unit(),
			PortType: graph.PortSink,
			In:       graph.SingleInput("/gen"),
			Out:      graph.NoOutput(),
		},
	}
	return graph.New(name, nodes)
}

type genConfig struct {
	N int `mapstructure:"n"`
}

type genFactory struct{}

func (genFactory) NewService() (registry.Handler, error) { return genHandler{}, nil }

func (genFactory) NewContext(cfg value.Value) (*registry.ServiceContext, error) {
	var c genConfig
	if err := registry.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	return &registry.ServiceContext{State: registry.ContinuationReady, Value: &c}, nil
}

func (genFactory) PortType() graph.PortType { return graph.PortSource }

func (genFactory) Schema() registry.ServiceSchema {
	return registry.ServiceSchema{
		Type:     GenType,
		PortType: graph.PortSource,
		ConfigSchemaJSON: `{"type":"object","properties":{"n":{"type":"integer","minimum":0}},"required":["n"]}`,
	}
}

type genHandler struct{}

func (genHandler) Started(ctx context.Context, sc *registry.ServiceContext, out *mailbox.Outgoing[frame.Frame]) error {
	c := sc.Value.(*genConfig)
	for i := 0; i < c.N; i++ {
		if err := out.Send(ctx, frame.New(value.I64(int64(i)))); err != nil {
			return err
		}
	}
	return nil
}

func (genHandler) Handle(ctx context.Context, sc *registry.ServiceContext, in frame.Frame, out *mailbox.Outgoing[frame.Frame]) (registry.ContinuationState, error) {
	return registry.ContinuationReady, nil
}

type countState struct {
	N   int
	Sum int64
}

type countFactory struct{}

func (countFactory) NewService() (registry.Handler, error) { return countHandler{}, nil }

func (countFactory) NewContext(cfg value.Value) (*registry.ServiceContext, error) {
	return &registry.ServiceContext{State: registry.ContinuationReady, Value: &countState{}}, nil
}

func (countFactory) PortType() graph.PortType { return graph.PortSink }

func (countFactory) Schema() registry.ServiceSchema {
	return registry.ServiceSchema{
		Type:             CountType,
		PortType:         graph.PortSink,
		ConfigSchemaJSON: `{"type":"object"}`,
	}
}

type countHandler struct{}

func (countHandler) Handle(ctx context.Context, sc *registry.ServiceContext, in frame.Frame, out *mailbox.Outgoing[frame.Frame]) (registry.ContinuationState, error) {
	st := sc.Value.(*countState)
	if in.IsNone() {
		return registry.ContinuationReady, nil
	}
	v, err := in.Value().AsI64()
	if err != nil {
		return registry.ContinuationReady, err
	}
	st.N++
	st.Sum += v
	return registry.ContinuationReady, nil
}

func (countHandler) Completed(ctx context.Context, sc *registry.ServiceContext) error {
	st := sc.Value.(*countState)
	fmt.Printf("count: received %d frames, sum=%d\n", st.N, st.Sum)
	return nil
}
