package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/cohort"
)

func entityEvent(guid string) Event {
	return Event{
		Kind:         EntityRefreshed,
		CollectionID: "local",
		Time:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Entity: &cohort.EntityDetail{EntitySummary: cohort.EntitySummary{
			InstanceHeader: cohort.InstanceHeader{GUID: guid, Version: 3},
		}},
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Publish(context.Background(), entityEvent("e1")))
	require.NoError(t, r.Publish(context.Background(), Event{
		Kind:         RelationshipRefreshed,
		Relationship: &cohort.Relationship{InstanceHeader: cohort.InstanceHeader{GUID: "r1"}},
	}))

	got := r.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].InstanceGUID())
	assert.Equal(t, "r1", got[1].InstanceGUID())
	assert.Equal(t, RelationshipRefreshed, got[1].Kind)

	r.Reset()
	assert.Empty(t, r.Events())
	assert.Empty(t, Event{}.InstanceGUID())
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	boom := errors.New("boom")
	m := Multi{a, nil, failing{boom}, b}

	err := m.Publish(context.Background(), entityEvent("e1"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1, "later publishers still run after a failure")

	assert.NoError(t, Multi{a}.Publish(context.Background(), entityEvent("e2")))
}

func startHub(t *testing.T, auth Authenticator) (*Hub, string) {
	t.Helper()
	hub := NewHub(context.Background(), zap.NewNop())
	hub.Start()
	srv := httptest.NewServer(hub.Handler(auth))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHub_BroadcastsToSubscribers(t *testing.T) {
	hub, url := startHub(t, nil)

	conns := make([]*websocket.Conn, 2)
	for i := range conns {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		conns[i] = conn
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), entityEvent("e42")))

	for _, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		assert.Equal(t, "EntityRefreshed", frame["eventType"])
		assert.Equal(t, "local", frame["metadataCollectionId"])
		entity, ok := frame["entity"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "e42", entity["guid"])
	}
}

func TestHub_DropsClosedSubscribers(t *testing.T) {
	hub, url := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Authenticator(t *testing.T) {
	auth := func(r *http.Request) (string, error) {
		if r.Header.Get("X-User-Id") == "" {
			return "", errors.New("no caller")
		}
		return r.Header.Get("X-User-Id"), nil
	}
	hub, url := startHub(t, auth)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User-Id": []string{"bob"}})
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishAfterShutdown(t *testing.T) {
	hub := NewHub(context.Background(), nil)
	hub.Shutdown()
	hub.Shutdown()

	err := hub.Publish(context.Background(), entityEvent("late"))
	assert.ErrorIs(t, err, ErrHubClosed)
}
