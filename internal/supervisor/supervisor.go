// Package supervisor implements the top-level actor a caller submits
// graphs to: a bounded Request mailbox (RunTask/Tasks/Stop/Services/
// Shutdown) serviced by a single goroutine, a RunningTask registry behind
// a mutex, and UUID-v4 task-id assignment — grounded directly on the
// original engine's Supervisor<T,O,P> (toy-core/src/supervisor.rs), with
// RunTask's assembly pipeline grounded on the teacher's 7-phase
// TaskManager.Create (internal/task/manager.go): Validate, Resolve,
// Construct, Init, Wire, Assemble, Start become Graph.Validate, registry
// resolution per node, handler construction, context decode, topology
// wiring, node-map assembly, and exectask.Run respectively.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/multierr"

	"github.com/dagflow/flowcore/internal/engineconfig"
	"github.com/dagflow/flowcore/internal/execnode"
	"github.com/dagflow/flowcore/internal/exectask"
	"github.com/dagflow/flowcore/internal/flowerr"
	"github.com/dagflow/flowcore/internal/obslog"
	"github.com/dagflow/flowcore/internal/topology"
	"github.com/dagflow/flowcore/pkg/flow/graph"
	"github.com/dagflow/flowcore/pkg/flow/registry"
)

// TaskId identifies one RunTask invocation, assigned as a UUID-v4.
type TaskId string

// TaskInfo is the public summary of a running task returned by Tasks.
type TaskInfo struct {
	ID        TaskId
	GraphName string
	StartedAt time.Time
}

// RunTaskOutcome pairs a TaskId with the per-node results of its run. No
// Supervisor method builds or returns one.
type RunTaskOutcome struct {
	ID      TaskId
	Results []exectask.NodeResult
}

type runTaskReq struct {
	graph *graph.Graph
	reply chan<- runTaskReply
}

type runTaskReply struct {
	id  TaskId
	err error
}

type tasksReq struct {
	reply chan<- []TaskInfo
}

type stopReq struct {
	id    TaskId
	reply chan<- error
}

type servicesReq struct {
	reply chan<- []registry.ServiceSchema
}

type shutdownReq struct {
	reply chan<- error
}

// Request is the Supervisor's mailbox message; exactly one field is set.
type Request struct {
	RunTask  *runTaskReq
	Tasks    *tasksReq
	Stop     *stopReq
	Services *servicesReq
	Shutdown *shutdownReq
}

type runningTask struct {
	id        TaskId
	graphName string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	results   []exectask.NodeResult
}

// Supervisor services Request messages from a single goroutine (Run).
// Every public method (RunTask, Tasks, Stop, Services, Shutdown) goes
// through that mailbox; mu guards the task map because each task's own
// goroutine removes its entry when the task finishes.
type Supervisor struct {
	app *registry.App
	cfg engineconfig.EngineConfig
	log *logrus.Logger

	reqCh chan Request

	mu    sync.Mutex
	tasks map[TaskId]*runningTask
}

// New builds a Supervisor resolving services through app.
func New(app *registry.App, cfg engineconfig.EngineConfig, log *logrus.Logger) *Supervisor {
	depth := cfg.SupervisorMailboxDepth
	if depth <= 0 {
		depth = 32
	}
	return &Supervisor{
		app:   app,
		cfg:   cfg,
		log:   log,
		reqCh: make(chan Request, depth),
		tasks: make(map[TaskId]*runningTask),
	}
}

// Run services the Supervisor's mailbox until ctx is cancelled or a
// Shutdown request is handled.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case req := <-s.reqCh:
			switch {
			case req.RunTask != nil:
				s.handleRunTask(ctx, req.RunTask)
			case req.Tasks != nil:
				s.handleTasks(req.Tasks)
			case req.Stop != nil:
				s.handleStop(req.Stop)
			case req.Services != nil:
				s.handleServices(req.Services)
			case req.Shutdown != nil:
				s.handleShutdown(req.Shutdown)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunTask submits g for assembly and execution, returning its assigned
// TaskId once g passes validation. Only GraphInvalid rejects the call
// outright; per-node failures during spawn (ConfigDecodeFailed,
// FactoryInitFailed) are logged and skip that node, not the task.
func (s *Supervisor) RunTask(ctx context.Context, g *graph.Graph) (TaskId, error) {
	reply := make(chan runTaskReply, 1)
	if err := s.send(ctx, Request{RunTask: &runTaskReq{graph: g, reply: reply}}); err != nil {
		return "", err
	}
	select {
	case r := <-reply:
		return r.id, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Tasks returns a snapshot of every currently-running task.
func (s *Supervisor) Tasks(ctx context.Context) ([]TaskInfo, error) {
	reply := make(chan []TaskInfo, 1)
	if err := s.send(ctx, Request{Tasks: &tasksReq{reply: reply}}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop requests cancellation of the task with the given id.
func (s *Supervisor) Stop(ctx context.Context, id TaskId) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, Request{Stop: &stopReq{id: id, reply: reply}}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Services returns the schema of every registered service type.
func (s *Supervisor) Services(ctx context.Context) ([]registry.ServiceSchema, error) {
	reply := make(chan []registry.ServiceSchema, 1)
	if err := s.send(ctx, Request{Services: &servicesReq{reply: reply}}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops every running task (best-effort, bounded by
// cfg.ShutdownDrainTimeout) and stops the Supervisor's own Run loop.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, Request{Shutdown: &shutdownReq{reply: reply}}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) send(ctx context.Context, req Request) error {
	select {
	case s.reqCh <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) handleRunTask(ctx context.Context, req *runTaskReq) {
	id, err := s.assembleAndSpawn(ctx, req.graph)
	req.reply <- runTaskReply{id: id, err: err}
}

// assembleAndSpawn validates g, then spawns the task's assembly (resolve,
// construct, init, wire) and execution in its own goroutine, returning
// immediately with the assigned TaskId. Validate is the only pre-task
// gate: a node whose service fails to resolve, whose Config fails to
// decode, or whose Handler fails to construct is logged and skipped, but
// every other node in the graph still starts (KindConfigDecodeFailed,
// KindFactoryInitFailed).
func (s *Supervisor) assembleAndSpawn(ctx context.Context, g *graph.Graph) (TaskId, error) {
	// Phase 1: Validate — the only check that rejects RunTask outright.
	if err := g.Validate(); err != nil {
		return "", flowerr.New(flowerr.KindGraphInvalid, g.Name, err)
	}

	// Phase 2: Wire — compile the channel topology up front; it depends
	// only on the graph's declared wiring, not on any node's service
	// resolving or its Config decoding successfully.
	topo := topology.Build(g, s.cfg.DefaultMailboxCapacity)

	id := TaskId(uuid.NewV4().String())

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	rt := &runningTask{id: id, graphName: g.Name, startedAt: time.Now(), cancel: cancel, done: done}

	s.mu.Lock()
	s.tasks[id] = rt
	s.mu.Unlock()

	order := g.Order()

	// Phase 3: Start — Resolve/Construct/Init run per node inside the
	// spawned goroutine, so a single node's failure never blocks the
	// task's creation or the other nodes' start.
	go func() {
		defer close(done)

		nodes := make(map[graph.Uri]*execnode.Node, len(g.Nodes))
		for _, n := range g.Nodes {
			nodeLog := obslog.ForNode(s.log, string(id), string(n.Uri))

			factory, ok := s.app.Resolve(n.Type)
			if !ok {
				err := flowerr.New(flowerr.KindFactoryInitFailed, string(n.Uri),
					fmt.Errorf("unresolved service type %s", n.Type))
				nodeLog.Errorf("spawn: %v", err)
				continue
			}
			sc, err := factory.NewContext(n.Config)
			if err != nil {
				nodeLog.Errorf("spawn: %v", flowerr.New(flowerr.KindConfigDecodeFailed, string(n.Uri), err))
				continue
			}
			handler, err := factory.NewService()
			if err != nil {
				nodeLog.Errorf("spawn: %v", flowerr.New(flowerr.KindFactoryInitFailed, string(n.Uri), err))
				continue
			}
			nodes[n.Uri] = &execnode.Node{
				Uri:      n.Uri,
				Type:     n.Type,
				PortType: n.PortType,
				Handler:  handler,
				Context:  sc,
				In:       topo.Incomings[n.Uri],
				Out:      topo.Outgoings[n.Uri],
				Log:      nodeLog,
			}
		}

		results := exectask.Run(taskCtx, order, nodes, topo.Starters, topo.Awaiter)
		s.mu.Lock()
		rt.results = results
		delete(s.tasks, id)
		s.mu.Unlock()
	}()

	return id, nil
}

func (s *Supervisor) handleTasks(req *tasksReq) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, TaskInfo{ID: t.id, GraphName: t.graphName, StartedAt: t.startedAt})
	}
	req.reply <- out
}

func (s *Supervisor) handleStop(req *stopReq) {
	s.mu.Lock()
	t, ok := s.tasks[req.id]
	s.mu.Unlock()
	if !ok {
		req.reply <- fmt.Errorf("supervisor: unknown task %s", req.id)
		return
	}
	t.cancel()
	req.reply <- nil
}

func (s *Supervisor) handleServices(req *servicesReq) {
	req.reply <- s.app.Schemas()
}

func (s *Supervisor) handleShutdown(req *shutdownReq) {
	s.mu.Lock()
	tasks := make([]*runningTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}

	timeout := s.cfg.ShutdownDrainTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.After(timeout)

	var errs error
	for _, t := range tasks {
		select {
		case <-t.done:
		case <-deadline:
			errs = multierr.Append(errs, fmt.Errorf("supervisor: task %s did not stop within %s", t.id, timeout))
		}
	}
	req.reply <- errs
}
