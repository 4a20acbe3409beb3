package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devroom-sh/devroom/internal/models"
)

type fakeGenerator struct {
	answer string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	return f.answer, f.err
}

type fakeTreeStore struct {
	mu      sync.Mutex
	applied models.FileTree
	build   *models.Command
	start   *models.Command
	err     error
}

func (f *fakeTreeStore) ReplaceFileTree(_ context.Context, projectID uuid.UUID, tree models.FileTree, build, start *models.Command) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.applied = tree
	f.build = build
	f.start = start
	return &models.Project{ID: projectID, FileTree: tree}, nil
}

func (f *fakeTreeStore) appliedTree() models.FileTree {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied
}

func newTestService(t *testing.T, gen *fakeGenerator, ts *fakeTreeStore) (*Service, *Hub) {
	t.Helper()
	hub := newTestHub(t)
	svc := NewService(Options{
		Logger:       zerolog.Nop(),
		Hub:          hub,
		Generator:    gen,
		Synchronizer: NewSynchronizer(ts),
	})
	return svc, hub
}

const testProjectID = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"

func chatFrom(t *testing.T, env Envelope) ChatPayload {
	t.Helper()
	require.Equal(t, EventChatMessage, env.Event)
	var payload ChatPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload
}

func TestRelayChatReachesPeersNotSender(t *testing.T) {
	svc, hub := newTestService(t, &fakeGenerator{}, &fakeTreeStore{})

	sender := testConn(testProjectID, "u1")
	sender.identity.Email = "u1@example.com"
	peer := testConn(testProjectID, "u2")
	hub.Join(sender)
	hub.Join(peer)

	svc.relayChat(sender, "hello room")

	payload := chatFrom(t, recvFrame(t, peer))
	assert.Equal(t, "hello room", payload.Message)
	require.NotNil(t, payload.Sender)
	assert.Equal(t, "u1", payload.Sender.ID)
	assert.Equal(t, "u1@example.com", payload.Sender.Email)
	assert.Equal(t, testProjectID, payload.ProjectID)

	assertNoFrame(t, sender)
}

func TestRelayChatDropsEmptyMessages(t *testing.T) {
	svc, hub := newTestService(t, &fakeGenerator{}, &fakeTreeStore{})

	sender := testConn(testProjectID, "u1")
	peer := testConn(testProjectID, "u2")
	hub.Join(sender)
	hub.Join(peer)

	svc.relayChat(sender, "   \n\t ")
	assertNoFrame(t, peer)
}

func TestDispatchPromptTextAnswerReachesEveryone(t *testing.T) {
	gen := &fakeGenerator{answer: `{"type":"text","text":"the answer"}`}
	svc, hub := newTestService(t, gen, &fakeTreeStore{})

	asker := testConn(testProjectID, "u1")
	peer := testConn(testProjectID, "u2")
	hub.Join(asker)
	hub.Join(peer)

	svc.dispatchPrompt(asker, "explain things")

	// The asker receives the AI turn too.
	for _, c := range []*Conn{asker, peer} {
		payload := chatFrom(t, recvFrame(t, c))
		assert.Equal(t, "the answer", payload.Message)
		require.NotNil(t, payload.Sender)
		assert.Equal(t, models.AISender, *payload.Sender)
	}
}

func TestDispatchPromptProjectAppliesTreeBeforeBroadcast(t *testing.T) {
	ts := &fakeTreeStore{}
	gen := &fakeGenerator{answer: `{
		"text": "Scaffolded your app",
		"fileTree": {"index.js": {"file": {"contents": "console.log(1)"}}},
		"startCommand": {"mainItem": "node", "commands": ["index.js"]}
	}`}
	svc, hub := newTestService(t, gen, ts)

	asker := testConn(testProjectID, "u1")
	hub.Join(asker)

	svc.dispatchPrompt(asker, "build me an app")

	payload := chatFrom(t, recvFrame(t, asker))
	assert.Equal(t, "Scaffolded your app", payload.Message)

	// By the time the chat event is observable the tree is already
	// persisted.
	tree := ts.appliedTree()
	require.NotNil(t, tree)
	assert.Equal(t, "console.log(1)", tree["index.js"].File.Contents)
	require.NotNil(t, ts.start)
	assert.Equal(t, "node", ts.start.MainItem)
}

func TestDispatchPromptGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream unavailable")}
	svc, hub := newTestService(t, gen, &fakeTreeStore{})

	asker := testConn(testProjectID, "u1")
	hub.Join(asker)

	svc.dispatchPrompt(asker, "hello?")

	payload := chatFrom(t, recvFrame(t, asker))
	require.NotNil(t, payload.Sender)
	assert.Equal(t, models.AISender, *payload.Sender)

	var body errorPayload
	require.NoError(t, json.Unmarshal([]byte(payload.Message), &body))
	assert.Equal(t, "text", body.Type)
	assert.Equal(t, "AI Error: upstream unavailable", body.Content)
}

func TestDispatchPromptApplyFailureSynthesizesError(t *testing.T) {
	ts := &fakeTreeStore{err: errors.New("db down")}
	gen := &fakeGenerator{answer: `{
		"text": "app",
		"fileTree": {"index.js": {"file": {"contents": "x"}}}
	}`}
	svc, hub := newTestService(t, gen, ts)

	asker := testConn(testProjectID, "u1")
	hub.Join(asker)

	svc.dispatchPrompt(asker, "make it")

	payload := chatFrom(t, recvFrame(t, asker))
	var body errorPayload
	require.NoError(t, json.Unmarshal([]byte(payload.Message), &body))
	assert.Equal(t, "AI Error: db down", body.Content)
}

func TestDispatchPromptMalformedAnswerStillDelivered(t *testing.T) {
	gen := &fakeGenerator{answer: "plain prose, not JSON"}
	svc, hub := newTestService(t, gen, &fakeTreeStore{})

	asker := testConn(testProjectID, "u1")
	hub.Join(asker)

	svc.dispatchPrompt(asker, "hi")

	payload := chatFrom(t, recvFrame(t, asker))
	assert.Equal(t, "plain prose, not JSON", payload.Message)
}

func TestDispatchPromptDropsEmptyPrompt(t *testing.T) {
	gen := &fakeGenerator{answer: "should never be called"}
	svc, hub := newTestService(t, gen, &fakeTreeStore{})

	asker := testConn(testProjectID, "u1")
	hub.Join(asker)

	svc.dispatchPrompt(asker, "   ")
	assertNoFrame(t, asker)
}
