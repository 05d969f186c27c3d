package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pong-arena/internal/arena"
	"pong-arena/internal/config"
	"pong-arena/internal/game"
)

// newTestRouter wires a real registry and matchmaker behind the router, with
// rate limits high enough to never trip in tests.
func newTestRouter(t *testing.T) (http.Handler, *arena.Registry, *arena.Matchmaker) {
	t.Helper()
	registry := arena.NewRegistry()
	matchmaker := arena.NewMatchmaker(arena.MatchmakerConfig{
		Registry:     registry,
		TickInterval: time.Millisecond,
	})
	limiter := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 10000, Burst: 10000})
	t.Cleanup(limiter.Stop)

	gateway := NewGateway(GatewayConfig{Matchmaker: matchmaker})
	router := NewRouter(RouterConfig{
		Gateway:        gateway,
		Registry:       registry,
		Matchmaker:     matchmaker,
		RateLimiter:    limiter,
		DisableLogging: true,
	})
	return router, registry, matchmaker
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	stats, ok := body["rate_limit"].(map[string]any)
	if !ok {
		t.Fatalf("rate_limit field = %v, want allowed/rejected counters", body["rate_limit"])
	}
	// this request itself passed through the limiter
	if allowed := stats["allowed"].(float64); allowed < 1 {
		t.Errorf("allowed = %v, want at least 1", allowed)
	}
}

func TestCreateDuelAndListRooms(t *testing.T) {
	router, _, _ := newTestRouter(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	payload := bytes.NewBufferString(`{"variant":"random"}`)
	resp, err := http.Post(ts.URL+"/api/duels", "application/json", payload)
	if err != nil {
		t.Fatalf("POST /api/duels: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var created struct {
		Room    string       `json:"room"`
		Variant game.Variant `json:"variant"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(created.Room) != arena.DuelRoomIDLength {
		t.Errorf("room id %q has length %d, want %d", created.Room, len(created.Room), arena.DuelRoomIDLength)
	}
	if created.Variant != game.VariantRandom {
		t.Errorf("variant = %q, want random", created.Variant)
	}

	listResp, err := http.Get(ts.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("GET /api/rooms: %v", err)
	}
	defer listResp.Body.Close()

	var listing struct {
		Rooms []arena.RoomInfo `json:"rooms"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Rooms) != 1 {
		t.Fatalf("rooms = %d, want 1", len(listing.Rooms))
	}
	if listing.Rooms[0].ID != created.Room || !listing.Rooms[0].Duel {
		t.Errorf("listed room = %+v", listing.Rooms[0])
	}
}

func TestCreateDuelRejectsUnknownVariant(t *testing.T) {
	router, _, _ := newTestRouter(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/duels", "application/json",
		bytes.NewBufferString(`{"variant":"bogus"}`))
	if err != nil {
		t.Fatalf("POST /api/duels: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRateLimiterRejectsFloods(t *testing.T) {
	registry := arena.NewRegistry()
	matchmaker := arena.NewMatchmaker(arena.MatchmakerConfig{Registry: registry})
	limiter := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	defer limiter.Stop()

	router := NewRouter(RouterConfig{
		Gateway:        NewGateway(GatewayConfig{Matchmaker: matchmaker}),
		Registry:       registry,
		Matchmaker:     matchmaker,
		RateLimiter:    limiter,
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	limited := false
	for i := 0; i < 10; i++ {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("flood of requests was never rate limited")
	}
}

func TestHeaderIdentityResolver(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("X-Player-Id", "p1")
	r.Header.Set("X-Player-Name", "alice")

	id, err := HeaderIdentityResolver{}.Resolve(r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.ID != "p1" || id.Name != "alice" {
		t.Errorf("identity = %+v", id)
	}

	// query fallback
	r2 := httptest.NewRequest(http.MethodGet, "/ws?playerId=p2&playerName=bob", nil)
	id2, err := HeaderIdentityResolver{}.Resolve(r2)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id2.ID != "p2" || id2.Name != "bob" {
		t.Errorf("identity = %+v", id2)
	}

	// anonymous connections get a guest identity
	r3 := httptest.NewRequest(http.MethodGet, "/ws", nil)
	id3, err := HeaderIdentityResolver{}.Resolve(r3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id3.ID == "" || id3.Name == "" {
		t.Errorf("guest identity = %+v", id3)
	}

	// strict mode rejects anonymous connections
	if _, err := (HeaderIdentityResolver{RequireID: true}).Resolve(r3); err == nil {
		t.Error("strict resolver accepted an anonymous connection")
	}
}
