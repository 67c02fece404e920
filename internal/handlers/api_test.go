// internal/handlers/api_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/playnine/internal/session"
	"github.com/jason-s-yu/playnine/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := logrus.New()
	snapshots, err := store.NewSnapshotStore(t.TempDir(), logger)
	require.NoError(t, err)
	reg := session.NewRegistry(snapshots, logger, session.Options{})
	srv := NewServer(reg, logger, t.TempDir())
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func getJSON(t *testing.T, url string) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestJoinValidatesNames(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/play9/join", map[string]string{"table_name": "NOT VALID"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_name", body["error"])
	assert.NotEmpty(t, body["detail"])

	resp, body = postJSON(t, ts.URL+"/play9/join", map[string]string{
		"table_name": "t1", "player_name": "bad!name",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_name", body["error"])
}

func TestJoinLeaveStateFlow(t *testing.T) {
	ts := newTestServer(t)

	// Spectator entry: table only.
	resp, body := postJSON(t, ts.URL+"/play9/join", map[string]string{"table_name": "t1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "t1", body["table_name"])
	assert.Nil(t, body["player_id"])

	// Seated join.
	resp, body = postJSON(t, ts.URL+"/play9/join", map[string]string{
		"table_name": "t1", "player_name": "Alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	playerID, _ := body["player_id"].(string)
	require.NotEmpty(t, playerID)

	// Re-joining with the same name reuses the seat.
	_, body = postJSON(t, ts.URL+"/play9/join", map[string]string{
		"table_name": "t1", "player_name": "Alice",
	})
	assert.Equal(t, playerID, body["player_id"])

	state := getJSON(t, ts.URL+"/play9/api/table/t1")
	assert.Equal(t, "waiting", state["phase"])
	players, _ := state["players"].([]interface{})
	require.Len(t, players, 1)

	// Leave is idempotent.
	for i := 0; i < 2; i++ {
		resp, _ = postJSON(t, ts.URL+"/play9/leave", map[string]string{
			"table_name": "t1", "player_id": playerID,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	state = getJSON(t, ts.URL+"/play9/api/table/t1")
	assert.Equal(t, "empty", state["phase"])
}

func TestStateForUnknownTable(t *testing.T) {
	ts := newTestServer(t)
	state := getJSON(t, ts.URL+"/play9/api/table/ghost")
	assert.Equal(t, "empty", state["phase"])
	assert.Equal(t, "ghost", state["name"])
}

// wsURL rewrites an httptest base URL for websocket dialing.
func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dialWS(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	return c
}

func readFrame(t *testing.T, ctx context.Context, c *websocket.Conn) map[string]interface{} {
	t.Helper()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// readUntil reads frames until pred matches or the context expires.
func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, pred func(map[string]interface{}) bool) map[string]interface{} {
	t.Helper()
	for {
		frame := readFrame(t, ctx, c)
		if pred(frame) {
			return frame
		}
	}
}

func joinPlayer(t *testing.T, ts *httptest.Server, table, name string) string {
	t.Helper()
	resp, body := postJSON(t, ts.URL+"/play9/join", map[string]string{
		"table_name": table, "player_name": name,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id, _ := body["player_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestWebSocketGameFlow(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceID := joinPlayer(t, ts, "t1", "Alice")
	bobID := joinPlayer(t, ts, "t1", "Bob")

	alice := dialWS(t, ctx, wsURL(ts, "/play9/ws/t1?id="+aliceID))
	defer alice.Close(websocket.StatusNormalClosure, "")
	bob := dialWS(t, ctx, wsURL(ts, "/play9/ws/t1?id="+bobID))
	defer bob.Close(websocket.StatusNormalClosure, "")
	spectator := dialWS(t, ctx, wsURL(ts, "/play9/ws/t1"))
	defer spectator.Close(websocket.StatusNormalClosure, "")

	// Everyone gets a snapshot on connect.
	first := readFrame(t, ctx, alice)
	assert.Equal(t, "waiting", first["phase"])

	// A second connection for the same seat is turned away.
	dup, _, err := websocket.Dial(ctx, wsURL(ts, "/play9/ws/t1?id="+aliceID), nil)
	require.NoError(t, err)
	frame := readFrame(t, ctx, dup)
	assert.Equal(t, "already_connected", frame["error"])
	dup.Close(websocket.StatusNormalClosure, "")

	// Spectators cannot act.
	require.NoError(t, spectator.Write(ctx, websocket.MessageText, []byte(`{"type":"start"}`)))
	frame = readUntil(t, ctx, spectator, func(f map[string]interface{}) bool {
		_, isErr := f["error"]
		return isErr
	})
	assert.Equal(t, "not_a_player", frame["error"])

	// Alice starts the game; every subscriber sees the reveal snapshot.
	require.NoError(t, alice.Write(ctx, websocket.MessageText, []byte(`{"type":"start"}`)))
	for _, c := range []*websocket.Conn{alice, bob, spectator} {
		snap := readUntil(t, ctx, c, func(f map[string]interface{}) bool {
			return f["phase"] == "reveal"
		})
		players, _ := snap["players"].([]interface{})
		require.Len(t, players, 2)
		for _, pl := range players {
			hand := pl.(map[string]interface{})["hand"].([]interface{})
			require.Len(t, hand, 8)
			for _, card := range hand {
				// Nobody sees a face-down value, owners included.
				assert.EqualValues(t, -99, card.(map[string]interface{})["value"])
			}
		}
	}

	// Bob cannot start twice.
	require.NoError(t, bob.Write(ctx, websocket.MessageText, []byte(`{"type":"start"}`)))
	frame = readUntil(t, ctx, bob, func(f map[string]interface{}) bool {
		_, isErr := f["error"]
		return isErr
	})
	assert.Equal(t, "game_already_started", frame["error"])
}

func TestWebSocketRejectsUnknownPlayer(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	joinPlayer(t, ts, "t1", "Alice")
	c, _, err := websocket.Dial(ctx, wsURL(ts, "/play9/ws/t1?id="+
		"11111111-1111-1111-1111-111111111111"), nil)
	require.NoError(t, err)
	frame := readFrame(t, ctx, c)
	assert.Equal(t, "not_a_player", frame["error"])
	c.Close(websocket.StatusNormalClosure, "")
}
