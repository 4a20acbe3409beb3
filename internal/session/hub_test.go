package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devroom-sh/devroom/internal/models"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zerolog.Nop())
	go h.Run()
	t.Cleanup(h.Shutdown)
	return h
}

func testConn(projectID, userID string) *Conn {
	return &Conn{
		identity:  models.Identity{ID: userID},
		projectID: projectID,
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
	}
}

func recvFrame(t *testing.T, c *Conn) Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Envelope{}
	}
}

func assertNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame: %s", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := newTestHub(t)

	sender := testConn("p1", "u1")
	peer1 := testConn("p1", "u2")
	peer2 := testConn("p1", "u3")
	for _, c := range []*Conn{sender, peer1, peer2} {
		h.Join(c)
	}

	h.Broadcast("p1", EventChatMessage, ChatPayload{Message: "hi"}, sender)

	for _, c := range []*Conn{peer1, peer2} {
		env := recvFrame(t, c)
		assert.Equal(t, EventChatMessage, env.Event)
		var payload ChatPayload
		require.NoError(t, json.Unmarshal(env.Data, &payload))
		assert.Equal(t, "hi", payload.Message)
	}
	assertNoFrame(t, sender)
}

func TestBroadcastWithoutExcludeReachesAll(t *testing.T) {
	h := newTestHub(t)

	a := testConn("p1", "u1")
	b := testConn("p1", "u2")
	h.Join(a)
	h.Join(b)

	h.Broadcast("p1", EventChatMessage, ChatPayload{Message: "ai says"}, nil)

	recvFrame(t, a)
	recvFrame(t, b)
}

func TestBroadcastIsRoomScoped(t *testing.T) {
	h := newTestHub(t)

	inRoom := testConn("p1", "u1")
	otherRoom := testConn("p2", "u2")
	h.Join(inRoom)
	h.Join(otherRoom)

	h.Broadcast("p1", EventChatMessage, ChatPayload{Message: "hi"}, nil)

	recvFrame(t, inRoom)
	assertNoFrame(t, otherRoom)
}

func TestLeaveSignalsCloseOnce(t *testing.T) {
	h := newTestHub(t)

	c := testConn("p1", "u1")
	h.Join(c)
	h.Leave(c)

	// A duplicate leave must not panic the dispatch loop.
	h.Leave(c)

	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not signalled closed after leave")
	}

	// Loop still serves other traffic.
	other := testConn("p1", "u2")
	h.Join(other)
	h.Broadcast("p1", EventChatMessage, ChatPayload{Message: "still alive"}, nil)
	recvFrame(t, other)
}

func TestRunnerSinkWritesAfterLeave(t *testing.T) {
	h := newTestHub(t)

	c := testConn("p1", "u1")
	h.Join(c)
	h.Leave(c)

	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not signalled closed after leave")
	}

	// A run goroutine can outlive the room membership: its sink
	// callbacks must be a silent no-op, never a panic.
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Output("npm start output after disconnect")
		c.StateChanged(0)
		c.PreviewCleared()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink callbacks blocked after leave")
	}
	assert.False(t, c.sendEvent(EventTerminalOutput, TerminalPayload{Data: "late"}))
}

func TestSlowConnectionIsDropped(t *testing.T) {
	h := newTestHub(t)

	slow := &Conn{
		identity:  models.Identity{ID: "slow"},
		projectID: "p1",
		send:      make(chan []byte), // unbuffered and never read
		closed:    make(chan struct{}),
	}
	healthy := testConn("p1", "u2")
	h.Join(slow)
	h.Join(healthy)

	h.Broadcast("p1", EventChatMessage, ChatPayload{Message: "1"}, nil)
	recvFrame(t, healthy)

	// The slow peer is signalled closed by the hub.
	select {
	case <-slow.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("slow connection was not dropped")
	}

	// Healthy peer keeps receiving.
	h.Broadcast("p1", EventChatMessage, ChatPayload{Message: "2"}, nil)
	recvFrame(t, healthy)
}

func TestBroadcastOrderIsPreserved(t *testing.T) {
	h := newTestHub(t)

	c := testConn("p1", "u1")
	h.Join(c)

	for i := 0; i < 10; i++ {
		h.Broadcast("p1", EventChatMessage, ChatPayload{Message: string(rune('a' + i))}, nil)
	}

	for i := 0; i < 10; i++ {
		env := recvFrame(t, c)
		var payload ChatPayload
		require.NoError(t, json.Unmarshal(env.Data, &payload))
		assert.Equal(t, string(rune('a'+i)), payload.Message)
	}
}
