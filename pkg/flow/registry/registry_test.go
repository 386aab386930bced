package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagflow/flowcore/pkg/flow/frame"
	"github.com/dagflow/flowcore/pkg/flow/graph"
	"github.com/dagflow/flowcore/pkg/flow/mailbox"
	"github.com/dagflow/flowcore/pkg/flow/value"
)

type noopHandler struct{}

func (noopHandler) Handle(ctx context.Context, sc *ServiceContext, in frame.Frame, out *mailbox.Outgoing[frame.Frame]) (ContinuationState, error) {
	return ContinuationReady, nil
}

type noopFactory struct{ t graph.ServiceType }

func (f noopFactory) NewService() (Handler, error) { return noopHandler{}, nil }
func (f noopFactory) NewContext(cfg value.Value) (*ServiceContext, error) {
	return &ServiceContext{State: ContinuationReady}, nil
}
func (f noopFactory) PortType() graph.PortType { return graph.PortFlow }
func (f noopFactory) Schema() ServiceSchema {
	return ServiceSchema{Type: f.t, PortType: graph.PortFlow, ConfigSchemaJSON: `{"type":"object"}`}
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	st := graph.ServiceType{Namespace: "demo", Name: "noop"}
	require.NoError(t, r.Register(st, noopFactory{t: st}))

	f, ok := r.Get(st)
	require.True(t, ok)
	assert.NotNil(t, f)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	st := graph.ServiceType{Namespace: "demo", Name: "noop"}
	require.NoError(t, r.Register(st, noopFactory{t: st}))
	err := r.Register(st, noopFactory{t: st})
	assert.Error(t, err)
}

func TestListAndSchemasAreSorted(t *testing.T) {
	r := NewRegistry()
	b := graph.ServiceType{Namespace: "demo", Name: "b"}
	a := graph.ServiceType{Namespace: "demo", Name: "a"}
	require.NoError(t, r.Register(b, noopFactory{t: b}))
	require.NoError(t, r.Register(a, noopFactory{t: a}))

	types := r.List()
	require.Len(t, types, 2)
	assert.Equal(t, a, types[0])
	assert.Equal(t, b, types[1])

	schemas := r.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, a, schemas[0].Type)
}

func TestAppDelegatesToRegistry(t *testing.T) {
	app := NewApp(NewRegistry())
	st := graph.ServiceType{Namespace: "demo", Name: "noop"}
	require.NoError(t, app.Register(st, noopFactory{t: st}))

	_, ok := app.Resolve(st)
	assert.True(t, ok)
	assert.Len(t, app.Types(), 1)
}

func TestDecodeConfig(t *testing.T) {
	m := value.NewMap()
	m.Set("n", value.I64(5))
	var dst struct {
		N int `mapstructure:"n"`
	}
	require.NoError(t, DecodeConfig(value.MapValue(m), &dst))
	assert.Equal(t, 5, dst.N)
}

func TestAppPortTypeOfResolvesRegisteredType(t *testing.T) {
	app := NewApp(NewRegistry())
	st := graph.ServiceType{Namespace: "demo", Name: "noop"}
	require.NoError(t, app.Register(st, noopFactory{t: st}))

	pt, ok := app.PortTypeOf(st)
	require.True(t, ok)
	assert.Equal(t, graph.PortFlow, pt)

	_, ok = app.PortTypeOf(graph.ServiceType{Namespace: "demo", Name: "missing"})
	assert.False(t, ok)
}

func TestServiceSchemaCompile(t *testing.T) {
	s := ServiceSchema{
		Type:             graph.ServiceType{Namespace: "demo", Name: "x"},
		ConfigSchemaJSON: `{"type":"object","required":["n"],"properties":{"n":{"type":"integer"}}}`,
	}
	schema, err := s.Compile()
	require.NoError(t, err)
	require.NotNil(t, schema)
}
