// Package execnode runs one graph node as a cooperative state machine:
// Ready while frames keep arriving, UpstreamFinishing once some (but not
// all) upstreams have signalled finish, AllFinished once every upstream
// has, Terminating while running Completed cleanup, Done once the node's
// loop has returned. This generalizes the teacher's task-level state
// machine (internal/task/task.go's TaskState) down to node granularity,
// and the original engine's process0 receive-handle-send loop
// (toy-core/src/flow.rs).
package execnode

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"

	"github.com/dagflow/flowcore/internal/flowerr"
	"github.com/dagflow/flowcore/pkg/flow/frame"
	"github.com/dagflow/flowcore/pkg/flow/graph"
	"github.com/dagflow/flowcore/pkg/flow/mailbox"
	"github.com/dagflow/flowcore/pkg/flow/registry"
)

// State is the node's own lifecycle state, distinct from the handler's
// ContinuationState.
type State int

const (
	StateReady State = iota
	StateUpstreamFinishing
	StateAllFinished
	StateTerminating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateUpstreamFinishing:
		return "UpstreamFinishing"
	case StateAllFinished:
		return "AllFinished"
	case StateTerminating:
		return "Terminating"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Logger is the minimal logging surface execnode needs, satisfied by a
// *logrus.Entry.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Node bundles everything Run needs to execute one graph node.
type Node struct {
	Uri      graph.Uri
	Type     graph.ServiceType
	PortType graph.PortType
	Handler  registry.Handler
	Context  *registry.ServiceContext
	In       *mailbox.Incoming[frame.Frame]
	Out      *mailbox.Outgoing[frame.Frame]
	Log      Logger
}

// Run executes n's loop until it reaches StateDone, returning the last
// error encountered (if any — a HandlerFailed error retires only this
// node, it is returned to the caller for reporting but is not meant to
// cancel siblings).
func Run(ctx context.Context, n *Node) (state State, err error) {
	state = StateReady

	if starter, ok := n.Handler.(registry.Starter); ok {
		if perr := safely(func() error { return starter.Started(ctx, n.Context, n.Out) }); perr != nil {
			n.Log.Errorf("node %s: Started failed: %v", n.Uri, perr)
			return StateDone, flowerr.New(flowerr.KindHandlerFailed, string(n.Uri), perr)
		}
	}

	for {
		var msg mailbox.Message[frame.Frame]
		if n.Context.State == registry.ContinuationNext {
			// Self-pump: re-invoke the handler immediately with a default
			// frame instead of waiting on the mailbox, so a source can drive
			// itself across several Handle calls without reentrant callers.
			msg = mailbox.Message[frame.Frame]{Payload: frame.None()}
		} else {
			m, ok := n.In.Next(ctx)
			if !ok {
				state = StateTerminating
				if c, ok := n.Handler.(registry.Completer); ok {
					if perr := safely(func() error { return c.Completed(ctx, n.Context) }); perr != nil {
						n.Log.Warnf("node %s: Completed failed: %v", n.Uri, perr)
					}
				}
				return StateDone, ctx.Err()
			}
			msg = m
		}

		if msg.Finish {
			state = StateUpstreamFinishing
			if uf, ok := n.Handler.(registry.UpstreamFinisher); ok {
				if perr := safely(func() error { return uf.UpstreamFinish(ctx, n.Context, msg.Port, n.Out) }); perr != nil {
					n.Log.Warnf("node %s: UpstreamFinish failed: %v", n.Uri, perr)
				}
			}
			if !n.In.AllUpstreamFinished() {
				continue
			}

			state = StateAllFinished
			if ufa, ok := n.Handler.(registry.UpstreamFinishAller); ok {
				if perr := safely(func() error { return ufa.UpstreamFinishAll(ctx, n.Context, n.Out) }); perr != nil {
					n.Log.Warnf("node %s: UpstreamFinishAll failed: %v", n.Uri, perr)
				}
			}

			n.Out.FinishAll(ctx)

			state = StateTerminating
			if c, ok := n.Handler.(registry.Completer); ok {
				if perr := safely(func() error { return c.Completed(ctx, n.Context) }); perr != nil {
					n.Log.Warnf("node %s: Completed failed: %v", n.Uri, perr)
				}
			}
			return StateDone, nil
		}

		var next registry.ContinuationState
		herr := safely(func() error {
			s, e := n.Handler.Handle(ctx, n.Context, msg.Payload, n.Out)
			next = s
			return e
		})
		if herr != nil {
			n.Log.Errorf("node %s: Handle failed: %v", n.Uri, herr)
			return StateDone, flowerr.New(flowerr.KindHandlerFailed, string(n.Uri), herr)
		}
		n.Context.State = next

		if next == registry.ContinuationComplete {
			n.Out.FinishAll(ctx)
			state = StateTerminating
			if c, ok := n.Handler.(registry.Completer); ok {
				if perr := safely(func() error { return c.Completed(ctx, n.Context) }); perr != nil {
					n.Log.Warnf("node %s: Completed failed: %v", n.Uri, perr)
				}
			}
			return StateDone, nil
		}
	}
}

// safely runs fn with panic recovery, converting a panic into an error so
// one misbehaving handler cannot take down the whole process — the
// sourcegraph/conc panic-catching idiom used per-call rather than across
// a whole goroutine group.
func safely(fn func() error) (err error) {
	var c panics.Catcher
	c.Try(func() {
		err = fn()
	})
	if r := c.Recovered(); r != nil {
		return fmt.Errorf("panic: %v", r.Value)
	}
	return err
}
