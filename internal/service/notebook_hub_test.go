package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edunexus_backend/internal/assistant"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestNotebookHub(t *testing.T) {
	f := newFixture(t)
	notebooks := assistant.NewNotebooks(assistant.New(f.repo, assistant.NewRouter(assistant.NewExtractiveProvider())))
	hub := NewNotebookHub(notebooks, f.access)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r, "sid-1", f.alex, r.URL.Query().Get("chapter")); err != nil {
			status := http.StatusInternalServerError
			if util.IsNotFound(err) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
		}
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?chapter=ch-404", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?chapter=ch-1", nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readWS(t, conn)
	assert.Equal(t, MsgTranscript, first.Type)
	assert.JSONEq(t, "[]", string(first.Data))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": MsgAsk,
		"data": map[string]string{"question": "Who is the Scrum Master?"},
	}))

	var got []model.AIMessage
	for len(got) < 2 {
		msg := readWS(t, conn)
		require.Equal(t, MsgMessage, msg.Type)
		var m model.AIMessage
		require.NoError(t, json.Unmarshal(msg.Data, &m))
		got = append(got, m)
	}
	assert.Equal(t, model.RoleUser, got[0].Role)
	assert.Equal(t, model.RoleAssistant, got[1].Role)
	assert.Contains(t, got[1].Sources, "Scrum Framework Deep Dive")
	assert.Len(t, notebooks.Transcript("sid-1", "ch-1"), 2)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "PING"}))
	assert.Equal(t, MsgError, readWS(t, conn).Type)

	assert.Equal(t, 1, hub.Connections("sid-1"))
	hub.CloseSession("sid-1")
	assert.Equal(t, 0, hub.Connections("sid-1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestNotebookHub_AskReachesEveryTabOfTheChapter(t *testing.T) {
	f := newFixture(t)
	notebooks := assistant.NewNotebooks(assistant.New(f.repo, assistant.NewRouter(assistant.NewExtractiveProvider())))
	hub := NewNotebookHub(notebooks, f.access)
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if err := hub.Serve(w, r, q.Get("sid"), f.alex, q.Get("chapter")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	dial := func(sid, chapter string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?sid="+sid+"&chapter="+chapter, nil)
		require.NoError(t, err)
		assert.Equal(t, MsgTranscript, readWS(t, conn).Type)
		return conn
	}
	asker := dial("sid-1", "ch-1")
	defer asker.Close()
	sibling := dial("sid-1", "ch-1")
	defer sibling.Close()
	otherChapter := dial("sid-1", "ch-2")
	defer otherChapter.Close()
	otherSession := dial("sid-2", "ch-1")
	defer otherSession.Close()

	require.NoError(t, asker.WriteJSON(map[string]interface{}{
		"type": MsgAsk,
		"data": map[string]string{"question": "Who is the Scrum Master?"},
	}))

	for _, conn := range []*websocket.Conn{asker, sibling} {
		for _, role := range []model.MessageRole{model.RoleUser, model.RoleAssistant} {
			msg := readWS(t, conn)
			require.Equal(t, MsgMessage, msg.Type)
			var m model.AIMessage
			require.NoError(t, json.Unmarshal(msg.Data, &m))
			assert.Equal(t, role, m.Role)
		}
	}

	for _, conn := range []*websocket.Conn{otherChapter, otherSession} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
	}
	assert.Empty(t, notebooks.Transcript("sid-2", "ch-1"))
}
