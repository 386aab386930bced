// Package registry implements the service contract handlers conform to
// and the type-erased registry/App facade a supervisor resolves graph
// nodes against, generalizing the teacher's per-kind global factory maps
// (pkg/plugin/registry.go) into one ServiceType-keyed registry, and the
// original engine's boxed-service downcasting (service_box.rs) into
// plain `any` context storage with type assertions.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dagflow/flowcore/pkg/flow/frame"
	"github.com/dagflow/flowcore/pkg/flow/graph"
	"github.com/dagflow/flowcore/pkg/flow/mailbox"
	"github.com/dagflow/flowcore/pkg/flow/value"
)

// ContinuationState is the tri-state a handler returns after each step,
// telling the node executor whether to wait for the next frame (Ready),
// re-invoke Handle immediately with a None frame (Next), or retire the
// node (Complete).
type ContinuationState int

const (
	ContinuationReady ContinuationState = iota
	ContinuationNext
	ContinuationComplete
)

// ServiceContext is a node's type-erased continuation: Value holds
// whatever state the handler's factory constructed, downcast by the
// handler itself via a type assertion (the Go analogue of the original
// engine's downcast_mut on a boxed context).
type ServiceContext struct {
	State ContinuationState
	Value any
}

// Handler is the mandatory capability every registered service
// implements: react to one input frame, optionally emitting output frames
// on out, and return the context's next continuation state.
type Handler interface {
	Handle(ctx context.Context, sc *ServiceContext, in frame.Frame, out *mailbox.Outgoing[frame.Frame]) (ContinuationState, error)
}

// Starter is an optional capability: run once before the first Handle
// call, e.g. to emit an initial frame from a source node.
type Starter interface {
	Started(ctx context.Context, sc *ServiceContext, out *mailbox.Outgoing[frame.Frame]) error
}

// UpstreamFinisher is an optional capability: react when one upstream
// (identified by its input port) has signalled finish.
type UpstreamFinisher interface {
	UpstreamFinish(ctx context.Context, sc *ServiceContext, port int, out *mailbox.Outgoing[frame.Frame]) error
}

// UpstreamFinishAller is an optional capability: react when every upstream
// has signalled finish, immediately before the node propagates its own
// finish downstream.
type UpstreamFinishAller interface {
	UpstreamFinishAll(ctx context.Context, sc *ServiceContext, out *mailbox.Outgoing[frame.Frame]) error
}

// Completer is an optional capability: run once after the node has fully
// finished, for cleanup that doesn't emit frames.
type Completer interface {
	Completed(ctx context.Context, sc *ServiceContext) error
}

// Factory constructs Handler instances and their initial ServiceContext
// for a ServiceType, and describes the JSON-Schema shape of the Config a
// node of this type expects. NewService may fail (§4.5's InitError), in
// which case the caller logs and skips the node rather than aborting the
// whole task.
type Factory interface {
	NewService() (Handler, error)
	NewContext(cfg value.Value) (*ServiceContext, error)
	PortType() graph.PortType
	Schema() ServiceSchema
}

// ServiceSchema describes a registered service type's Config shape.
type ServiceSchema struct {
	Type             graph.ServiceType
	PortType         graph.PortType
	ConfigSchemaJSON string
}

// Compile parses and compiles ConfigSchemaJSON, for callers that want to
// validate a Config document before decoding it.
func (s ServiceSchema) Compile() (*jsonschema.Schema, error) {
	if s.ConfigSchemaJSON == "" {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	name := s.Type.String() + ".json"
	if err := c.AddResource(name, strings.NewReader(s.ConfigSchemaJSON)); err != nil {
		return nil, fmt.Errorf("registry: schema for %s: %w", s.Type, err)
	}
	return c.Compile(name)
}

// DecodeConfig converts a Value into dst via mapstructure, the concrete
// "Value -> typed Config" decode operation named by the service contract.
func DecodeConfig(v value.Value, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(v.Native())
}

// Registry is a type-erased, concurrency-safe map of ServiceType to
// Factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[graph.ServiceType]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[graph.ServiceType]Factory)}
}

// Register adds f under t. Re-registering the same ServiceType is
// rejected, matching the teacher's duplicate-registration guard.
func (r *Registry) Register(t graph.ServiceType, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[t]; exists {
		return fmt.Errorf("registry: service type %s already registered", t)
	}
	r.factories[t] = f
	return nil
}

// Get resolves t to its Factory.
func (r *Registry) Get(t graph.ServiceType) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[t]
	return f, ok
}

// List returns every registered ServiceType in a stable, sorted order.
func (r *Registry) List() []graph.ServiceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]graph.ServiceType, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Schemas returns the ServiceSchema of every registered type, sorted the
// same way as List.
func (r *Registry) Schemas() []ServiceSchema {
	types := r.List()
	out := make([]ServiceSchema, 0, len(types))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range types {
		out = append(out, r.factories[t].Schema())
	}
	return out
}

// App is the ergonomic facade a supervisor resolves services through,
// generalizing the original engine's App delegator over a boxed service
// registry.
type App struct {
	reg *Registry
}

// NewApp wraps reg.
func NewApp(reg *Registry) *App { return &App{reg: reg} }

// Register adds f under t, delegating to the underlying Registry.
func (a *App) Register(t graph.ServiceType, f Factory) error { return a.reg.Register(t, f) }

// Resolve looks up the Factory for t.
func (a *App) Resolve(t graph.ServiceType) (Factory, bool) { return a.reg.Get(t) }

// Schemas returns every registered service's schema.
func (a *App) Schemas() []ServiceSchema { return a.reg.Schemas() }

// Types lists every registered ServiceType.
func (a *App) Types() []graph.ServiceType { return a.reg.List() }

// PortTypeOf answers t's declared PortType, satisfying graph.PortTypeResolver
// for ParseGraph — a node's wiring in a parsed graph must match the port
// type its service type declares (spec.md §3's PortType contract), and the
// graph package itself has no registry dependency to look this up directly.
func (a *App) PortTypeOf(t graph.ServiceType) (graph.PortType, bool) {
	f, ok := a.reg.Get(t)
	if !ok {
		return 0, false
	}
	return f.PortType(), true
}
