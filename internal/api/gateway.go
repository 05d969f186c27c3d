package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"pong-arena/internal/arena"
	"pong-arena/internal/game"
)

// Connection-level event names. Match-level events live in the game package;
// these exist only between the gateway and one client.
const (
	eventSession = "session"
	eventError   = "error"
)

// Inbound events the gateway understands.
const (
	cmdJoinQueue      = "join-queue"
	cmdLeaveQueue     = "leave-queue"
	cmdJoinDuel       = "join-duel"
	cmdLeaveMatch     = "leave-match"
	cmdStart          = "start"
	cmdPaddleMove     = "paddle-move"
	cmdPaddleMoveStop = "paddle-move-stop"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser client; identity checks still apply.
			return true
		}
		if IsAllowedOrigin(origin) {
			return true
		}

		// Log rejected origin for security monitoring
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// envelope is the wire format in both directions: a named event plus its
// payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Payloads for inbound events.
type joinQueuePayload struct {
	Variant game.Variant `json:"variant"`
}

type joinDuelPayload struct {
	Room string `json:"room"`
}

type movePayload struct {
	Direction game.Direction `json:"direction"`
}

type sessionPayload struct {
	Session string              `json:"session"`
	Player  game.PlayerIdentity `json:"player"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// GatewayConfig wires the gateway's collaborators and connection caps.
type GatewayConfig struct {
	Matchmaker *arena.Matchmaker
	Resolver   IdentityResolver

	// MaxConnections caps total concurrent sockets; MaxConnsPerIP caps one
	// source. Zero means the production defaults.
	MaxConnections int
	MaxConnsPerIP  int
}

// Gateway owns every WebSocket connection: upgrade, identity resolution,
// event decode, and the write pump each match broadcasts through. It holds
// no game state; everything game-shaped is forwarded to the player's match
// through the matchmaker.
type Gateway struct {
	matchmaker *arena.Matchmaker
	resolver   IdentityResolver
	wsLimiter  *WebSocketRateLimiter
	maxConns   int

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewGateway(cfg GatewayConfig) *Gateway {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 500
	}
	maxPerIP := cfg.MaxConnsPerIP
	if maxPerIP <= 0 {
		maxPerIP = 10
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = HeaderIdentityResolver{}
	}
	return &Gateway{
		matchmaker: cfg.Matchmaker,
		resolver:   resolver,
		wsLimiter:  NewWebSocketRateLimiter(maxPerIP),
		maxConns:   maxConns,
		clients:    make(map[*client]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (g *Gateway) ClientCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if g.ClientCount() >= g.maxConns {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", g.maxConns)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !g.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached (%d active)",
			ip, g.wsLimiter.GetConnectionCount(ip))
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	player, err := g.resolver.Resolve(r)
	if err != nil {
		g.wsLimiter.Release(ip)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		g.wsLimiter.Release(ip)
		return
	}

	c := &client{
		gateway: g,
		conn:    conn,
		ip:      ip,
		player:  player,
		session: NewSessionID(),
		send:    make(chan []byte, 256),
	}

	g.mu.Lock()
	g.clients[c] = struct{}{}
	count := len(g.clients)
	g.mu.Unlock()
	log.Printf("📱 %s connected from %s (%d total)", player.Name, ip, count)
	UpdateWSConnections(count)

	go c.writePump()
	go c.readPump()

	c.Send(eventSession, sessionPayload{Session: c.session, Player: player})
}

// drop unregisters a client and routes the disconnect through matchmaking:
// an in-match player forfeits, a queued player abandons.
func (g *Gateway) drop(c *client) {
	g.mu.Lock()
	if _, ok := g.clients[c]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c)
	count := len(g.clients)
	g.mu.Unlock()

	g.wsLimiter.Release(c.ip)
	g.matchmaker.Leave(c.player.ID, c.session)
	c.close()

	log.Printf("📱 %s disconnected (%d remaining)", c.player.Name, count)
	UpdateWSConnections(count)
}

// client is one WebSocket connection. It satisfies game.Conn: matches write
// through Send, which never blocks the tick loop.
type client struct {
	gateway *Gateway
	conn    *websocket.Conn
	ip      string
	player  game.PlayerIdentity
	session string
	send    chan []byte

	mu     sync.Mutex
	closed bool
	match  *game.Match
	side   game.Side
}

// Send marshals one event and queues it for the write pump. A slow client's
// full buffer drops the message rather than stall the sender, and a send
// after disconnect is a no-op: the match actor may still broadcast to this
// participant until its leave command is processed.
func (c *client) Send(event string, data any) {
	raw, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
		IncrementWSMessages()
	default:
	}
}

// close stops the write pump. Sends observe the closed flag under the same
// mutex, so nothing can hit the channel after it is closed.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readPump() {
	defer c.gateway.drop(c)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.Send(eventError, errorPayload{Message: "malformed message"})
			continue
		}
		c.dispatch(env)
	}
}

// dispatch routes one decoded event. Unknown events get an error reply so a
// misbehaving client is visible, not silently ignored.
func (c *client) dispatch(env envelope) {
	switch env.Event {
	case cmdJoinQueue:
		var p joinQueuePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.Send(eventError, errorPayload{Message: "malformed join-queue payload"})
			return
		}
		m, side, err := c.gateway.matchmaker.JoinQueue(c.player, c.session, c, p.Variant)
		if err != nil {
			c.Send(eventError, errorPayload{Message: err.Error()})
			return
		}
		c.setMatch(m, side)

	case cmdJoinDuel:
		var p joinDuelPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.Send(eventError, errorPayload{Message: "malformed join-duel payload"})
			return
		}
		m, side, err := c.gateway.matchmaker.JoinDuel(c.player, c.session, c, p.Room)
		if err != nil {
			c.Send(eventError, errorPayload{Message: err.Error()})
			return
		}
		c.setMatch(m, side)

	case cmdStart:
		if m, _ := c.currentMatch(); m != nil {
			m.Start()
		}

	case cmdPaddleMove, cmdPaddleMoveStop:
		var p movePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.Send(eventError, errorPayload{Message: "malformed move payload"})
			return
		}
		if p.Direction != game.DirLeft && p.Direction != game.DirRight {
			c.Send(eventError, errorPayload{Message: "unknown direction"})
			return
		}
		if m, side := c.currentMatch(); m != nil {
			m.Input(c.session, side, p.Direction, env.Event == cmdPaddleMove)
		}

	case cmdLeaveQueue:
		if err := c.gateway.matchmaker.LeaveQueue(c.player.ID, c.session); err != nil {
			c.Send(eventError, errorPayload{Message: err.Error()})
			return
		}
		c.clearMatch()

	case cmdLeaveMatch:
		c.gateway.matchmaker.Leave(c.player.ID, c.session)
		c.clearMatch()

	default:
		c.Send(eventError, errorPayload{Message: "unknown event: " + env.Event})
	}
}

func (c *client) setMatch(m *game.Match, side game.Side) {
	c.mu.Lock()
	c.match, c.side = m, side
	c.mu.Unlock()
}

func (c *client) clearMatch() {
	c.mu.Lock()
	c.match, c.side = nil, ""
	c.mu.Unlock()
}

func (c *client) currentMatch() (*game.Match, game.Side) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.match, c.side
}
