package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	err      error
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestHubDeliversToOnlineRecipients(t *testing.T) {
	hub := NewWSHub()
	alice := &fakeConn{}
	hub.Register("alice", alice)

	err := hub.Notify(context.Background(), Notification{
		Recipients: []Recipient{{UserID: "alice"}, {UserID: "bob"}},
		Title:      "Holiday",
		Body:       "carol uploaded a photo",
		Payload:    map[string]string{"group_id": "g1"},
	})
	require.NoError(t, err)

	require.Len(t, alice.messages, 1)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(alice.messages[0], &msg))
	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, "Holiday", msg.Title)
	assert.Equal(t, "g1", msg.Data["group_id"])
}

func TestHubReplacesAndDropsBrokenConnections(t *testing.T) {
	hub := NewWSHub()
	first := &fakeConn{}
	second := &fakeConn{err: errors.New("broken pipe")}

	hub.Register("alice", first)
	hub.Register("alice", second)
	assert.True(t, first.closed)

	err := hub.SendToUser("alice", WSMessage{Type: "ping"})
	require.Error(t, err)
	assert.False(t, hub.IsOnline("alice"))

	// stale unregister from the replaced connection is a no-op
	third := &fakeConn{}
	hub.Register("alice", third)
	hub.Unregister("alice", first)
	assert.True(t, hub.IsOnline("alice"))
}

type fakePusher struct {
	mu     sync.Mutex
	tokens []string
	status int
}

func (p *fakePusher) PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, n.DeviceToken)
	if _, ok := n.Payload.(*payload.Payload); !ok {
		return nil, errors.New("unexpected payload type")
	}
	return &apns2.Response{StatusCode: p.status, Reason: "BadDeviceToken"}, nil
}

func TestAPNsSkipsRecipientsWithoutToken(t *testing.T) {
	p := &fakePusher{status: apns2.StatusSent}
	sink := &APNs{client: p, topic: "com.example.media"}

	err := sink.Notify(context.Background(), Notification{
		Recipients: []Recipient{{UserID: "a", PushToken: "tok-a"}, {UserID: "b"}},
		Title:      "t",
		Body:       "b",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a"}, p.tokens)
}

func TestAPNsReportsRejectedPushes(t *testing.T) {
	sink := &APNs{client: &fakePusher{status: 400}, topic: "com.example.media"}

	err := sink.Notify(context.Background(), Notification{
		Recipients: []Recipient{{UserID: "a", PushToken: "tok-a"}},
	})
	assert.ErrorContains(t, err, "BadDeviceToken")
}

type failingSink struct{ err error }

func (f failingSink) Notify(ctx context.Context, n Notification) error { return f.err }

func TestFanoutJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	err := Fanout{Discard{}, failingSink{err: boom}}.Notify(context.Background(), Notification{})
	assert.ErrorIs(t, err, boom)
}
