package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveSinglePort(t *testing.T) {
	ch, in := NewIncoming[int](4, 1)
	out := NewOutgoing[int]()
	out.Add(ch, 0, 0)

	ctx := context.Background()
	require.NoError(t, out.Send(ctx, 7))

	msg, ok := in.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, 7, msg.Payload)
	assert.Equal(t, 0, msg.Port)
}

func TestFanoutTagsDownstreamInputPort(t *testing.T) {
	chA, inA := NewIncoming[int](4, 1)
	chB, inB := NewIncoming[int](4, 1)

	out := NewOutgoing[int]()
	out.Add(chA, 0, 0)
	out.Add(chB, 1, 1) // B expects this frame tagged as its input port 1

	ctx := context.Background()
	require.NoError(t, out.SendTo(ctx, 0, 100))
	require.NoError(t, out.SendTo(ctx, 1, 200))

	msgA, ok := inA.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, 0, msgA.Port)
	assert.Equal(t, 100, msgA.Payload)

	msgB, ok := inB.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, msgB.Port)
	assert.Equal(t, 200, msgB.Payload)
}

func TestFaninTwoUpstreamsFinishExactlyOnce(t *testing.T) {
	ch, in := NewIncoming[int](4, 2)

	outA := NewOutgoing[int]()
	outA.Add(ch, 0, 0)
	outB := NewOutgoing[int]()
	outB.Add(ch, 0, 0)

	ctx := context.Background()
	require.NoError(t, outA.Send(ctx, 1))
	require.NoError(t, outB.Send(ctx, 2))

	var wg sync.WaitGroup
	var mu sync.Mutex
	received := 0
	finishedAt := -1

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2; i++ {
			if _, ok := in.Next(ctx); ok {
				mu.Lock()
				received++
				mu.Unlock()
			}
		}
		outA.FinishAll(ctx)
		outB.FinishAll(ctx)
		for j := 0; j < 2; j++ {
			m, ok := in.Next(ctx)
			if ok && m.Finish {
				mu.Lock()
				if in.AllUpstreamFinished() && finishedAt == -1 {
					finishedAt = j
				}
				mu.Unlock()
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, 2, received)
	assert.True(t, in.AllUpstreamFinished())
	assert.Equal(t, 1, finishedAt, "AllUpstreamFinished should flip true only after the second finish marker")
}

func TestSendBlocksWhenFull(t *testing.T) {
	ch, _ := NewIncoming[int](1, 1)
	out := NewOutgoing[int]()
	out.Add(ch, 0, 0)

	ctx := context.Background()
	require.NoError(t, out.Send(ctx, 1)) // fills the single buffer slot

	done := make(chan struct{})
	go func() {
		_ = out.Send(ctx, 2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second send should have blocked on a full buffer")
	case <-time.After(50 * time.Millisecond):
	}

	<-ch // drain so the goroutine can complete and not leak
	<-done
}

func TestSendToUnknownPortFails(t *testing.T) {
	out := NewOutgoing[int]()
	err := out.SendTo(context.Background(), 9, 1)
	assert.Error(t, err)
}
