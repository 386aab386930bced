package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagflow/flowcore/pkg/flow/frame"
	"github.com/dagflow/flowcore/pkg/flow/graph"
)

func fanoutFaninGraph(t *testing.T) *graph.Graph {
	t.Helper()
	nodes := []graph.Node{
		{Uri: "/src", Type: graph.ServiceType{Namespace: "demo", Name: "gen"}, PortType: graph.PortFanOutSource,
			In: graph.NoInput(), Out: graph.FanoutOutput("/a", "/b")},
		{Uri: "/a", Type: graph.ServiceType{Namespace: "demo", Name: "pass"}, PortType: graph.PortFlow,
			In: graph.SingleInput("/src"), Out: graph.SingleOutput("/acc")},
		{Uri: "/b", Type: graph.ServiceType{Namespace: "demo", Name: "pass"}, PortType: graph.PortFlow,
			In: graph.SingleInput("/src"), Out: graph.SingleOutput("/acc")},
		{Uri: "/acc", Type: graph.ServiceType{Namespace: "demo", Name: "acc"}, PortType: graph.PortFanInSink,
			In: graph.FaninInput("/a", "/b"), Out: graph.NoOutput()},
	}
	g := graph.New("fanout-fanin", nodes)
	require.NoError(t, g.Validate())
	return g
}

// Property 1 (spec §8.1): every non-source Uri has exactly one Incoming;
// every non-sink Uri has exactly one Outgoing; total upstream_count across
// non-source nodes, plus one per source's starter channel, equals total
// output-wire width plus the awaiter's own upstream_count.
func TestTopologyConservation(t *testing.T) {
	g := fanoutFaninGraph(t)
	topo := Build(g, 0)

	for _, n := range g.Nodes {
		if n.In.Kind == "none" {
			_, hasStarter := topo.Starters[n.Uri]
			assert.True(t, hasStarter, "source node %s should have a starter channel", n.Uri)
		} else {
			_, ok := topo.Incomings[n.Uri]
			assert.True(t, ok, "non-source node %s must have exactly one Incoming", n.Uri)
		}
		if _, ok := topo.Outgoings[n.Uri]; !ok {
			t.Fatalf("every node (even sinks) gets an Outgoing placeholder: %s missing", n.Uri)
		}
	}

	totalUpstream := 0
	for u, in := range topo.Incomings {
		if _, isSource := topo.Starters[u]; isSource {
			continue // counted once below via its starter
		}
		totalUpstream += in.UpstreamCount()
	}
	for _, ch := range topo.Starters {
		_ = ch
		totalUpstream++ // the task executor itself counts as this source's one upstream
	}

	totalFanout := 0
	for _, n := range g.Nodes {
		totalFanout += len(n.Out.To)
	}
	totalFanout += topo.Awaiter.UpstreamCount()

	assert.Equal(t, totalFanout, totalUpstream)
}

func TestAccUpstreamCountIsFaninWidth(t *testing.T) {
	g := fanoutFaninGraph(t)
	topo := Build(g, 4)

	accIn := topo.Incomings["/acc"]
	assert.Equal(t, 2, accIn.UpstreamCount())
}

// Property 3 (spec §8.1): every frame delivered to a fan-in receiver is
// tagged with the input-port the sender merged under — the position of
// that upstream within the receiver's own Fanin list, not anything derived
// from the sender's own output-port numbering.
func TestFaninPortTaggingMatchesReceiverPosition(t *testing.T) {
	ctx := context.Background()
	g := fanoutFaninGraph(t)
	topo := Build(g, 4)

	require.NoError(t, topo.Outgoings["/a"].Send(ctx, frame.None()))
	require.NoError(t, topo.Outgoings["/b"].Send(ctx, frame.None()))

	accIn := topo.Incomings["/acc"]
	seen := map[int]bool{}
	for i := 0; i < 2; i++ {
		msg, ok := accIn.Next(ctx)
		require.True(t, ok)
		seen[msg.Port] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, seen)
}
