package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pong-arena/internal/arena"
	"pong-arena/internal/game"
)

// wsSession wraps one dialed connection and collects events by name.
type wsSession struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, serverURL, playerID, playerName string) *wsSession {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") +
		"/ws?playerId=" + playerID + "&playerName=" + playerName
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsSession{t: t, conn: conn}
}

func (s *wsSession) emit(event string, data any) {
	s.t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		s.t.Fatalf("marshal %s: %v", event, err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		s.t.Fatalf("write %s: %v", event, err)
	}
}

// waitFor reads until the named event arrives, failing on timeout.
func (s *wsSession) waitFor(event string) json.RawMessage {
	s.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.conn.SetReadDeadline(deadline)
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.t.Fatalf("waiting for %q: %v", event, err)
		}
		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			s.t.Fatalf("decode while waiting for %q: %v", event, err)
		}
		if env.Event == event {
			return env.Data
		}
	}
}

func newWSTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := arena.NewRegistry()
	matchmaker := arena.NewMatchmaker(arena.MatchmakerConfig{
		Registry:     registry,
		TickInterval: time.Millisecond,
	})
	gateway := NewGateway(GatewayConfig{Matchmaker: matchmaker})
	router := NewRouter(RouterConfig{
		Gateway:        gateway,
		Registry:       registry,
		Matchmaker:     matchmaker,
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func TestGatewayPlaysAMatchOverWebSockets(t *testing.T) {
	ts := newWSTestServer(t)

	alice := dialWS(t, ts.URL, "p1", "alice")
	alice.waitFor("session")
	alice.emit("join-queue", map[string]any{"variant": "standard"})

	var side struct {
		Side game.Side `json:"side"`
	}
	if err := json.Unmarshal(alice.waitFor("assigned-side"), &side); err != nil {
		t.Fatalf("decode side: %v", err)
	}
	if side.Side != game.SideBottom {
		t.Errorf("first joiner side = %q, want bottom", side.Side)
	}
	alice.waitFor("assigned-room")

	bob := dialWS(t, ts.URL, "p2", "bob")
	bob.waitFor("session")
	bob.emit("join-queue", map[string]any{"variant": "standard"})
	bob.waitFor("room-filled")
	alice.waitFor("room-filled")

	alice.emit("start", nil)

	var started struct {
		PlayerNear game.PlayerIdentity `json:"playerNear"`
		PlayerFar  game.PlayerIdentity `json:"playerFar"`
	}
	if err := json.Unmarshal(alice.waitFor("match-started"), &started); err != nil {
		t.Fatalf("decode match-started: %v", err)
	}
	if started.PlayerNear.ID != "p1" || started.PlayerFar.ID != "p2" {
		t.Errorf("alice sees %+v", started)
	}

	// the opening countdown runs down to relaunch
	alice.waitFor("countdown")
	alice.waitFor("countdown-end")
	bob.waitFor("tick-snapshot")

	// bob hangs up mid-match: alice wins by forfeit
	bob.conn.Close()
	var over struct {
		Winner game.PlayerIdentity `json:"winner"`
	}
	if err := json.Unmarshal(alice.waitFor("match-over"), &over); err != nil {
		t.Fatalf("decode match-over: %v", err)
	}
	if over.Winner.ID != "p1" {
		t.Errorf("winner = %+v, want alice", over.Winner)
	}
}

func TestGatewayPaddleInputMovesOwnPaddleOnly(t *testing.T) {
	ts := newWSTestServer(t)

	alice := dialWS(t, ts.URL, "p1", "alice")
	alice.waitFor("session")
	alice.emit("join-queue", map[string]any{"variant": "standard"})
	bob := dialWS(t, ts.URL, "p2", "bob")
	bob.waitFor("session")
	bob.emit("join-queue", map[string]any{"variant": "standard"})
	alice.waitFor("room-filled")

	alice.emit("start", nil)
	alice.waitFor("match-started")

	alice.emit("paddle-move", map[string]any{"direction": "left"})

	// watch alice's near paddle drift left while bob's stays put
	var first, later struct {
		PaddleNear game.Paddle `json:"paddleNear"`
		PaddleFar  game.Paddle `json:"paddleFar"`
	}
	if err := json.Unmarshal(alice.waitFor("tick-snapshot"), &first); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := json.Unmarshal(alice.waitFor("tick-snapshot"), &later); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if later.PaddleNear.X < first.PaddleNear.X {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("paddle never moved left")
		}
	}
	if later.PaddleFar.X != first.PaddleFar.X {
		t.Errorf("opponent paddle moved: %v -> %v", first.PaddleFar.X, later.PaddleFar.X)
	}

	alice.emit("paddle-move-stop", map[string]any{"direction": "left"})
}

func TestSendAfterCloseIsNoOp(t *testing.T) {
	c := &client{send: make(chan []byte, 4)}
	c.close()
	c.close() // idempotent
	c.Send(eventError, errorPayload{Message: "late broadcast"})
	if len(c.send) != 0 {
		t.Errorf("closed client queued %d messages", len(c.send))
	}
}

func TestGatewaySurvivesBothPlayersDisconnecting(t *testing.T) {
	ts := newWSTestServer(t)

	// run several matches where both sides hang up back to back: the match
	// actor keeps broadcasting to a participant until its leave command is
	// processed, so these disconnects race the forfeit broadcast
	for i := 0; i < 5; i++ {
		alice := dialWS(t, ts.URL, "p1", "alice")
		alice.waitFor("session")
		alice.emit("join-queue", map[string]any{"variant": "standard"})
		bob := dialWS(t, ts.URL, "p2", "bob")
		bob.waitFor("session")
		bob.emit("join-queue", map[string]any{"variant": "standard"})
		alice.waitFor("room-filled")

		alice.emit("start", nil)
		alice.waitFor("match-started")
		bob.waitFor("countdown")

		bob.conn.Close()
		alice.conn.Close()

		// wait for the room to tear down before re-queueing the same ids
		deadline := time.Now().Add(5 * time.Second)
		for liveRooms(t, ts) > 0 {
			if time.Now().After(deadline) {
				t.Fatalf("round %d: room never tore down", i)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	// the server is still alive and matches still run
	carol := dialWS(t, ts.URL, "p3", "carol")
	carol.waitFor("session")
	carol.emit("join-queue", map[string]any{"variant": "standard"})
	carol.waitFor("assigned-room")
}

func liveRooms(t *testing.T, ts *httptest.Server) int {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("listing rooms: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Rooms []arena.RoomInfo `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode room listing: %v", err)
	}
	return len(body.Rooms)
}

func TestGatewayRejectsDoubleQueueing(t *testing.T) {
	ts := newWSTestServer(t)

	alice := dialWS(t, ts.URL, "p1", "alice")
	alice.waitFor("session")
	alice.emit("join-queue", map[string]any{"variant": "standard"})
	alice.waitFor("assigned-room")

	alice.emit("join-queue", map[string]any{"variant": "random"})
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(alice.waitFor("error"), &e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(e.Message, "already in a match") {
		t.Errorf("error = %q", e.Message)
	}
}

func TestGatewayUnknownEventGetsError(t *testing.T) {
	ts := newWSTestServer(t)

	c := dialWS(t, ts.URL, "p1", "alice")
	c.waitFor("session")
	c.emit("no-such-event", nil)

	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(c.waitFor("error"), &e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(e.Message, "unknown event") {
		t.Errorf("error = %q", e.Message)
	}
}
