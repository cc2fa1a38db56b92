package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-scene/internal/geom"
)

type fakeConn struct {
	mu      sync.Mutex
	msgs    map[string][][]byte
	closed  bool
	flushed int
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("nats: connection closed")
	}
	if c.msgs == nil {
		c.msgs = make(map[string][][]byte)
	}
	c.msgs[subj] = append(c.msgs[subj], data)
	return nil
}

func (c *fakeConn) FlushWithContext(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushed++
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func TestPublishersImplementInterface(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Publisher = Multi(nil)
}

func TestNoopPublisher(t *testing.T) {
	pub := &NoopPublisher{}
	assert.NoError(t, pub.Publish(context.Background(), TopicNodeMoved, NodeMoved{}))
	assert.NoError(t, pub.Close())
}

func TestNATSPublisherPublish(t *testing.T) {
	conn := &fakeConn{}
	pub := &NATSPublisher{conn: conn}

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Publish(context.Background(), TopicNodeMoved, NodeMoved{
		SnapshotID: "snap-1", NodeID: "api", Position: geom.V(1, 2, 3), At: at,
	}))
	require.NoError(t, pub.Flush(context.Background()))

	require.Len(t, conn.msgs[TopicNodeMoved], 1)
	var got NodeMoved
	require.NoError(t, json.Unmarshal(conn.msgs[TopicNodeMoved][0], &got))
	assert.Equal(t, "api", got.NodeID)
	assert.Equal(t, geom.V(1, 2, 3), got.Position)
	assert.True(t, at.Equal(got.At))
	assert.Equal(t, 1, conn.flushed)
}

func TestNATSPublisherAfterClose(t *testing.T) {
	conn := &fakeConn{}
	pub := &NATSPublisher{conn: conn}
	require.NoError(t, pub.Close())

	err := pub.Publish(context.Background(), TopicLayoutApplied, LayoutApplied{})
	assert.Error(t, err)
}

func TestNATSPublisherCancelledContext(t *testing.T) {
	conn := &fakeConn{}
	pub := &NATSPublisher{conn: conn}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pub.Publish(ctx, TopicNodeSelected, SelectionChanged{}), context.Canceled)
	assert.Empty(t, conn.msgs)
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1")
	assert.Error(t, err)
}

type failing struct{ closed bool }

func (f *failing) Publish(context.Context, string, any) error { return errors.New("down") }
func (f *failing) Close() error                               { f.closed = true; return nil }

func TestMultiFansOut(t *testing.T) {
	conn := &fakeConn{}
	bad := &failing{}
	m := Multi{&NATSPublisher{conn: conn}, bad, &NoopPublisher{}}

	err := m.Publish(context.Background(), TopicSnapshotAdded, SnapshotAdded{})
	assert.EqualError(t, err, "down")
	assert.Len(t, conn.msgs[TopicSnapshotAdded], 1, "one failing publisher does not block the others")

	require.NoError(t, m.Close())
	assert.True(t, bad.closed)
	assert.True(t, conn.closed)
}
