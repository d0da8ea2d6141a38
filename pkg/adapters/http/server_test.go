package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tavern() *domain.Graph {
	b := dsl.New()
	b.Start("start").Go("hello")
	b.Add("hello").Text("Welcome.").Speaker("Keeper").Go("ask")
	b.Add("ask").Choice("Stay", "Leave").Pick("Stay", "stay").Pick("Leave", "bye")
	b.Add("stay").Text("Pull up a chair.")
	b.Add("bye").Text("Safe travels.")
	return b.MustBuild()
}

// watchedStore signals one change and then closes.
type watchedStore struct {
	*memory.GraphStore
}

func (watchedStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	close(ch)
	return ch, nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store, err := memory.NewGraphStoreFrom(map[string]*domain.Graph{"tavern": tavern()})
	require.NoError(t, err)
	mgr := session.NewManager(watchedStore{store}, session.WithIDGenerator(func() string { return "s1" }))
	return NewHandler(mgr, WithDefaultGraph("tavern"), WithVersion("test"))
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) domain.Snapshot {
	t.Helper()
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap), w.Body.String())
	return snap
}

func TestHealthAndInfo(t *testing.T) {
	h := newTestHandler(t)

	w := do(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, "GET", "/info", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)
}

func TestCORSPreflight(t *testing.T) {
	w := do(t, newTestHandler(t), "OPTIONS", "/sessions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestHandler(t)

	w := do(t, h, "POST", "/sessions", `{"graph":"tavern"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	snap := decodeSnapshot(t, w)
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, "hello", snap.CurrentNodeID)
	assert.Contains(t, w.Body.String(), "Welcome.")
	assert.Equal(t, domain.StatusAwaitingChoice, snap.Status)
	assert.Equal(t, []string{"Stay", "Leave"}, snap.Choices)

	w = do(t, h, "POST", "/sessions/s1/advance", "")
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Equal(t, domain.StatusAwaitingChoice, snap.Status)
	assert.Equal(t, "hello", snap.CurrentNodeID)

	w = do(t, h, "POST", "/sessions/s1/choices/0", "")
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Equal(t, "stay", snap.CurrentNodeID)
	assert.Equal(t, []string{"hello", "stay"}, snap.History)

	w = do(t, h, "GET", "/sessions", "")
	assert.JSONEq(t, `["s1"]`, w.Body.String())

	w = do(t, h, "DELETE", "/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, "GET", "/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSession_DefaultGraph(t *testing.T) {
	w := do(t, newTestHandler(t), "POST", "/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"graph":"tavern"`)
}

func TestErrorMapping(t *testing.T) {
	h := newTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/sessions", `{"graph":"tavern"}`).Code)
	// Leave the choice for a line that offers none.
	w := do(t, h, "POST", "/sessions/s1/choices/1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeSnapshot(t, w)
	require.Equal(t, "bye", snap.CurrentNodeID)
	require.Empty(t, snap.Choices)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown graph", "POST", "/sessions", `{"graph":"nope"}`, http.StatusNotFound},
		{"bad body", "POST", "/sessions", `{`, http.StatusBadRequest},
		{"unknown session", "POST", "/sessions/zz/advance", "", http.StatusNotFound},
		{"no choices offered", "POST", "/sessions/s1/choices/0", "", http.StatusConflict},
		{"non numeric index", "POST", "/sessions/s1/choices/first", "", http.StatusBadRequest},
		{"negative index", "POST", "/sessions/s1/choices/-1", "", http.StatusBadRequest},
		{"no minigame", "POST", "/sessions/s1/minigame", `{"success":true}`, http.StatusConflict},
		{"minigame without outcome", "POST", "/sessions/s1/minigame", `{}`, http.StatusBadRequest},
		{"minigame outcome not boolean", "POST", "/sessions/s1/minigame", `{"success":"yes"}`, http.StatusBadRequest},
		{"unknown graph render", "GET", "/graph?name=nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestOpenAPI(t *testing.T) {
	doc, err := OpenAPI()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/sessions/{id}/choices/{index}"))

	w := do(t, newTestHandler(t), "GET", "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "operationId: completeMinigame")
}

func TestGraphRoutes(t *testing.T) {
	h := newTestHandler(t)

	w := do(t, h, "GET", "/graphs", "")
	assert.JSONEq(t, `["tavern"]`, w.Body.String())

	w = do(t, h, "GET", "/graph?name=tavern", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hello"`)

	w = do(t, h, "GET", "/graph/mermaid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"), w.Body.String())
	assert.NotContains(t, w.Body.String(), "classDef current")

	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/sessions", "").Code)
	w = do(t, h, "GET", "/graph/mermaid?session_id=s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class hello current;")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t)
	do(t, h, "GET", "/health", "")

	w := do(t, h, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/health"`)
}

func TestSubscribeEvents_Global(t *testing.T) {
	w := do(t, newTestHandler(t), "GET", "/events", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "data: reload")
}

func TestSubscribeEvents_Session(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{"graph":"tavern"}`))
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/events?session_id=s1", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()

	reader := bufio.NewReader(stream.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	resp, err = http.Post(srv.URL+"/sessions/s1/advance", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	assert.Contains(t, line, `"status":"awaiting_choice"`)
}

func TestSubscribeEvents_UnknownSession(t *testing.T) {
	w := do(t, newTestHandler(t), "GET", "/events?session_id=ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
