package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go-bookstore-pos/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	fail     bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func TestHub_PublishReachesClients(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	good := &fakeConn{}
	broken := &fakeConn{fail: true}
	h.Register <- good
	h.Register <- broken

	require.NoError(t, h.Publish(ctx, events.New(events.TypeStockUpdate, events.SaleRecorded, map[string]int{"total": 1})))

	assert.Eventually(t, func() bool { return good.received() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	var decoded events.Event
	good.mu.Lock()
	require.NoError(t, json.Unmarshal(good.messages[0], &decoded))
	good.mu.Unlock()
	assert.Equal(t, events.SaleRecorded, decoded.Action)
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	h := NewHub(zap.NewNop())
	// no Run loop, so the queue only fills
	for i := 0; i < cap(h.Broadcast); i++ {
		require.NoError(t, h.Publish(context.Background(), events.New(events.TypeStockUpdate, events.StockIn, nil)))
	}
	assert.ErrorIs(t, h.Publish(context.Background(), events.New(events.TypeStockUpdate, events.StockIn, nil)), ErrHubBusy)
}

func TestHub_StopClosesClients(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := &fakeConn{}
	h.Register <- c
	cancel()
	<-done

	assert.True(t, c.closed)
	assert.Equal(t, 0, h.Clients())
}

// readingConn blocks in ReadMessage until it is closed, like a quiet client
type readingConn struct {
	fakeConn
	gone chan struct{}
	once sync.Once
}

func newReadingConn() *readingConn {
	return &readingConn{gone: make(chan struct{})}
}

func (r *readingConn) ReadMessage() (int, []byte, error) {
	<-r.gone
	return 0, nil, errors.New("use of closed connection")
}

func (r *readingConn) Close() error {
	r.once.Do(func() { close(r.gone) })
	return r.fakeConn.Close()
}

func TestHub_ServeReturnsAfterStop(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := newReadingConn()
	served := make(chan struct{})
	go func() {
		h.serve(c)
		close(served)
	}()
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("serve still blocked after the hub stopped")
	}
	assert.True(t, c.closed)
}

func TestHub_ServeAfterStopClosesConn(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	c := newReadingConn()
	served := make(chan struct{})
	go func() {
		h.serve(c)
		close(served)
	}()
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("serve blocked on a stopped hub")
	}
	assert.True(t, c.closed)
	assert.Equal(t, 0, h.Clients())
}
