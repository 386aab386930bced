// Package exectask is the task executor: it spawns every node's loop in
// reverse graph order (sinks first, so every downstream receiver exists
// before any upstream sender goes live), injects the seed frame and
// finish marker into each source node's starter channel, and blocks until
// every sink has signalled finish on the shared awaiter — the same
// discipline as the original engine's Flow::run (toy-core/src/flow.rs)
// generalized from a single linear pipeline to an arbitrary DAG.
package exectask

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/dagflow/flowcore/internal/execnode"
	"github.com/dagflow/flowcore/pkg/flow/frame"
	"github.com/dagflow/flowcore/pkg/flow/graph"
	"github.com/dagflow/flowcore/pkg/flow/mailbox"
)

// NodeResult is one node's outcome once its loop returns.
type NodeResult struct {
	Uri   graph.Uri
	State execnode.State
	Err   error
}

// Run spawns every node in nodes (keyed by Uri, already resolved and
// wired) in the given reverse-topological order, seeds every starter
// channel, and blocks until the awaiter reports every sink finished or ctx
// is cancelled. It returns once every node loop has returned.
func Run(
	ctx context.Context,
	order []graph.Uri,
	nodes map[graph.Uri]*execnode.Node,
	starters map[graph.Uri]chan mailbox.Message[frame.Frame],
	awaiter *mailbox.Incoming[frame.Frame],
) []NodeResult {
	var mu sync.Mutex
	results := make([]NodeResult, 0, len(order))

	var wg conc.WaitGroup
	for _, u := range order {
		u := u
		n, ok := nodes[u]
		if !ok {
			continue
		}
		wg.Go(func() {
			state, err := execnode.Run(ctx, n)
			mu.Lock()
			results = append(results, NodeResult{Uri: u, State: state, Err: err})
			mu.Unlock()
		})
	}

	for _, ch := range starters {
		select {
		case ch <- mailbox.Message[frame.Frame]{Payload: frame.None()}:
		case <-ctx.Done():
		}
		select {
		case ch <- mailbox.Message[frame.Frame]{Finish: true}:
		case <-ctx.Done():
		}
	}

	for !awaiter.AllUpstreamFinished() {
		if _, ok := awaiter.Next(ctx); !ok {
			break
		}
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return append([]NodeResult(nil), results...)
}
