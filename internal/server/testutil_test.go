package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/game"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/game/tetrisnt"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/session"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/storage"
)

// quickGame ends a match within a handful of ticks: one visible row and
// a piece falling every frame.
const quickGame = `{"boardHeight":1,"startingLevel":29}`

// --- Test environment ---

type testEnv struct {
	ts  *httptest.Server
	srv *Server
	mgr *session.Manager
}

// setupTestEnv starts a server whose clock is too slow to tick during a
// test; tests drive ticks by hand.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithInterval(t, time.Hour)
}

func setupTestEnvWithInterval(t *testing.T, interval time.Duration) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// Tick loops can outlive the test, so nothing logs to t.
	log := zap.NewNop()
	reg := game.NewRegistry()
	reg.Register(tetrisnt.Game{Logger: log})
	mgr := session.NewManager(reg, store, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := New(ctx, reg, mgr, Options{TickInterval: interval, Logger: log})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, srv: srv, mgr: mgr}
}

// --- Context helpers ---

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- REST API helpers ---

func createSessionViaAPI(t *testing.T, ts *httptest.Server, gameType, playerID string) string {
	t.Helper()
	return createSessionWithSettings(t, ts, gameType, playerID, "")
}

func createSessionWithSettings(t *testing.T, ts *httptest.Server, gameType, playerID, settings string) string {
	t.Helper()
	body := fmt.Sprintf(`{"gameType":%q,"playerId":%q}`, gameType, playerID)
	if settings != "" {
		body = fmt.Sprintf(`{"gameType":%q,"playerId":%q,"settings":%s}`, gameType, playerID, settings)
	}
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var result createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result.Code
}

func getLeaderboard(t *testing.T, ts *httptest.Server, query string) (int, []leaderboardEntry) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/leaderboard" + query)
	if err != nil {
		t.Fatalf("GET leaderboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	var entries []leaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	return resp.StatusCode, entries
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, code string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/sessions/" + code + "/ws"
}

// wsConnect dials a WebSocket, sends a join message, and returns the connection.
// The caller is responsible for closing the connection.
func wsConnect(t *testing.T, ts *httptest.Server, code, playerID string) *websocket.Conn {
	t.Helper()
	return wsConnectURL(t, wsURL(ts, code), playerID)
}

func wsConnectURL(t *testing.T, url, playerID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	if err := sendWS(ctx, conn, "join", joinPayload{PlayerID: playerID}); err != nil {
		t.Fatalf("send join: %v", err)
	}
	return conn
}

// sendWS marshals and sends a typed WebSocket message. Returns an error on failure.
func sendWS(ctx context.Context, conn *websocket.Conn, msgType string, payload any) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(WSMessage{Type: msgType, Payload: p})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, msg)
}

// readWS reads and unmarshals a single WebSocket message. Returns an error on failure.
func readWS(ctx context.Context, conn *websocket.Conn) (WSMessage, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return WSMessage{}, err
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return WSMessage{}, err
	}
	return msg, nil
}

// readMsgpack reads one binary frame and decodes its envelope.
func readMsgpack(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	if typ != websocket.MessageBinary {
		t.Fatalf("expected a binary frame, got %v", typ)
	}
	var msg map[string]any
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		t.Fatalf("msgpack decode: %v", err)
	}
	return msg
}

// readState reads a WebSocket message and expects it to be a "state" message.
func readState(t *testing.T, ctx context.Context, conn *websocket.Conn) statePayload {
	t.Helper()
	msg, err := readWS(ctx, conn)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if msg.Type != "state" {
		t.Fatalf("expected state message, got %q: %s", msg.Type, string(msg.Payload))
	}
	var sp statePayload
	if err := json.Unmarshal(msg.Payload, &sp); err != nil {
		t.Fatalf("unmarshal state payload: %v", err)
	}
	return sp
}

// readStateUntil reads state messages until done accepts one.
func readStateUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, done func(statePayload) bool) statePayload {
	t.Helper()
	for {
		sp := readState(t, ctx, conn)
		if done(sp) {
			return sp
		}
	}
}

// readError reads a WebSocket message and expects it to be an "error" message.
func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) string {
	t.Helper()
	msg, err := readWS(ctx, conn)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if msg.Type != "error" {
		t.Fatalf("expected error message, got %q: %s", msg.Type, string(msg.Payload))
	}
	var ep errorPayload
	if err := json.Unmarshal(msg.Payload, &ep); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	return ep.Message
}

// --- Game helpers ---

// makeAction builds an actionPayload for a movement such as "left".
func makeAction(t *testing.T, movement string) actionPayload {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"movement": movement})
	if err != nil {
		t.Fatalf("marshal action payload: %v", err)
	}
	return actionPayload{
		Action: game.Action{Type: "move", Payload: payload},
	}
}

// stateMap extracts State from a statePayload as map[string]any, failing the test if
// the type assertion fails.
func stateMap(t *testing.T, sp statePayload) map[string]any {
	t.Helper()
	m, ok := sp.State.(map[string]any)
	if !ok {
		t.Fatalf("expected State to be map[string]any, got %T", sp.State)
	}
	return m
}

// stateTick returns the tick counter of a started match's state.
func stateTick(t *testing.T, sp statePayload) int {
	t.Helper()
	tick, ok := stateMap(t, sp)["tick"].(float64)
	if !ok {
		t.Fatalf("state has no tick: %v", sp.State)
	}
	return int(tick)
}

func containsPlayer(players []string, id string) bool {
	return slices.Contains(players, id)
}
