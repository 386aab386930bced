package exectask

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagflow/flowcore/internal/execnode"
	"github.com/dagflow/flowcore/internal/topology"
	"github.com/dagflow/flowcore/pkg/flow/frame"
	"github.com/dagflow/flowcore/pkg/flow/graph"
	"github.com/dagflow/flowcore/pkg/flow/mailbox"
	"github.com/dagflow/flowcore/pkg/flow/registry"
	"github.com/dagflow/flowcore/pkg/flow/value"
)

type testLog struct{}

func (testLog) Errorf(string, ...any) {}
func (testLog) Warnf(string, ...any)  {}
func (testLog) Debugf(string, ...any) {}

// srcHandler emits a fixed list of integer frames on Started (scenario
// S1's source); its Handle always returns Ready, so the node finishes when
// the task executor's finish marker arrives on its starter channel.
type srcHandler struct{ values []int64 }

func (h srcHandler) Started(ctx context.Context, sc *registry.ServiceContext, out *mailbox.Outgoing[frame.Frame]) error {
	for _, v := range h.values {
		if err := out.Send(ctx, frame.New(value.I64(v))); err != nil {
			return err
		}
	}
	return nil
}

func (h srcHandler) Handle(ctx context.Context, sc *registry.ServiceContext, in frame.Frame, out *mailbox.Outgoing[frame.Frame]) (registry.ContinuationState, error) {
	return registry.ContinuationReady, nil
}

func (h srcHandler) Completed(ctx context.Context, sc *registry.ServiceContext) error {
	*sc.Value.(*bool) = true
	return nil
}

// doubleHandler doubles the integer payload of every frame it sees.
type doubleHandler struct{}

func (doubleHandler) Handle(ctx context.Context, sc *registry.ServiceContext, in frame.Frame, out *mailbox.Outgoing[frame.Frame]) (registry.ContinuationState, error) {
	v, err := in.Value().AsI64()
	if err != nil {
		return registry.ContinuationReady, err
	}
	if err := out.Send(ctx, frame.New(value.I64(v*2))); err != nil {
		return registry.ContinuationReady, err
	}
	return registry.ContinuationReady, nil
}

func (doubleHandler) Completed(ctx context.Context, sc *registry.ServiceContext) error {
	*sc.Value.(*bool) = true
	return nil
}

// collectHandler appends every integer payload it sees to a shared,
// mutex-guarded collector.
type collectHandler struct {
	mu        *sync.Mutex
	collected *[]int64
}

func (h collectHandler) Handle(ctx context.Context, sc *registry.ServiceContext, in frame.Frame, out *mailbox.Outgoing[frame.Frame]) (registry.ContinuationState, error) {
	if in.IsNone() {
		return registry.ContinuationReady, nil
	}
	v, err := in.Value().AsI64()
	if err != nil {
		return registry.ContinuationReady, err
	}
	h.mu.Lock()
	*h.collected = append(*h.collected, v)
	h.mu.Unlock()
	return registry.ContinuationReady, nil
}

func (h collectHandler) Completed(ctx context.Context, sc *registry.ServiceContext) error {
	*sc.Value.(*bool) = true
	return nil
}

func linearGraph() *graph.Graph {
	nodes := []graph.Node{
		{Uri: "/src", Type: graph.ServiceType{Namespace: "demo", Name: "gen"}, PortType: graph.PortSource,
			In: graph.NoInput(), Out: graph.SingleOutput("/mid")},
		{Uri: "/mid", Type: graph.ServiceType{Namespace: "demo", Name: "double"}, PortType: graph.PortFlow,
			In: graph.SingleInput("/src"), Out: graph.SingleOutput("/sink")},
		{Uri: "/sink", Type: graph.ServiceType{Namespace: "demo", Name: "collect"}, PortType: graph.PortSink,
			In: graph.SingleInput("/mid"), Out: graph.NoOutput()},
	}
	return graph.New("linear", nodes)
}

// TestS1LinearPipeline implements scenario S1 from spec.md §8: a three-node
// linear pipeline where the sink's collector ends up [2,4,6] and every
// node's Completed hook has fired.
func TestS1LinearPipeline(t *testing.T) {
	g := linearGraph()
	require.NoError(t, g.Validate())

	topo := topology.Build(g, 0)

	var collected []int64
	var mu sync.Mutex
	srcDone, midDone, sinkDone := false, false, false

	nodes := map[graph.Uri]*execnode.Node{
		"/src": {
			Uri: "/src", PortType: graph.PortSource, Handler: srcHandler{values: []int64{1, 2, 3}},
			Context: &registry.ServiceContext{Value: &srcDone},
			In:      topo.Incomings["/src"], Out: topo.Outgoings["/src"], Log: testLog{},
		},
		"/mid": {
			Uri: "/mid", PortType: graph.PortFlow, Handler: doubleHandler{},
			Context: &registry.ServiceContext{Value: &midDone},
			In:      topo.Incomings["/mid"], Out: topo.Outgoings["/mid"], Log: testLog{},
		},
		"/sink": {
			Uri: "/sink", PortType: graph.PortSink, Handler: collectHandler{mu: &mu, collected: &collected},
			Context: &registry.ServiceContext{Value: &sinkDone},
			In:      topo.Incomings["/sink"], Out: topo.Outgoings["/sink"], Log: testLog{},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results := Run(ctx, g.Order(), nodes, topo.Starters, topo.Awaiter)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, execnode.StateDone, r.State)
	}

	assert.Equal(t, []int64{2, 4, 6}, collected)
	assert.True(t, srcDone)
	assert.True(t, midDone)
	assert.True(t, sinkDone)
}
