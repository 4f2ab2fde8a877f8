package fanout

import (
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu     sync.Mutex
	fail   bool
	closed bool
	got    []string
}

func (c *fakeClient) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.got = append(c.got, string(data))
	return nil
}

func (c *fakeClient) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func initEvent() models.Event {
	return models.InitEvent(nil, nil)
}

func TestHubDropsOnlyFailingClients(t *testing.T) {
	hub := NewHub(logger.Discard(), nil)
	good, bad := &fakeClient{}, &fakeClient{}
	require.NoError(t, hub.Attach(good, initEvent))
	require.NoError(t, hub.Attach(bad, initEvent))
	assert.Equal(t, 2, hub.Len())

	bad.fail = true
	hub.Broadcast(models.TasksUpdateEvent())
	hub.Broadcast(models.TasksUpdateEvent())

	assert.Equal(t, 1, hub.Len())
	assert.True(t, bad.closed)
	require.Len(t, good.got, 3)
	assert.Contains(t, good.got[0], `"type":"init"`)
	assert.JSONEq(t, `{"type":"tasks_update"}`, good.got[1])
}

func TestHubAttachFailureDoesNotRegister(t *testing.T) {
	hub := NewHub(logger.Discard(), nil)
	require.Error(t, hub.Attach(&fakeClient{fail: true}, initEvent))
	assert.Zero(t, hub.Len())
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
	done   chan struct{}
}

func (s *recordingSink) Publish(_ context.Context, e models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if len(s.events) == 2 {
		close(s.done)
	}
	return nil
}

func TestBroadcasterFeedsSinks(t *testing.T) {
	sink := &recordingSink{done: make(chan struct{})}
	b := NewBroadcaster(NewHub(logger.Discard(), nil), logger.Discard(), nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()

	b.Broadcast(models.TasksUpdateEvent())
	b.Broadcast(models.AgentUpdateEvent("qa", models.AgentWorking, ""))

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink did not receive events")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, models.EventTasksUpdate, sink.events[0].Type)
	assert.Equal(t, models.EventAgentUpdate, sink.events[1].Type)
}

func TestWebsocketRoundTrip(t *testing.T) {
	hub := NewHub(logger.Discard(), nil)
	upgrader := websocket.Upgrader{}
	attached := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		require.NoError(t, hub.Attach(conn, func() models.Event {
			return models.InitEvent([]models.AgentState{{AgentDef: models.AgentDef{Key: "manager"}}}, nil)
		}))
		close(attached)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	<-attached

	hub.Broadcast(models.TasksUpdateEvent())

	var first, second models.Event
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &first))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &second))

	assert.Equal(t, models.EventInit, first.Type)
	assert.Len(t, first.Data["agents"], 1)
	assert.Equal(t, models.EventTasksUpdate, second.Type)
}
