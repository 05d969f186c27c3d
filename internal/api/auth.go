package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"pong-arena/internal/game"
)

// IdentityResolver turns an incoming connection request into the player
// identity that will appear on snapshots and match results. Authentication
// proper lives in a fronting gateway; the arena only needs a stable id and a
// display name per player.
type IdentityResolver interface {
	Resolve(r *http.Request) (game.PlayerIdentity, error)
}

// HeaderIdentityResolver trusts identity headers set by the fronting gateway
// (X-Player-Id, X-Player-Name), falling back to query parameters for
// development against a bare browser client. Connections with no identity at
// all get a generated guest identity.
type HeaderIdentityResolver struct {
	// RequireID rejects connections without an explicit player id instead
	// of minting a guest. Production deployments behind a gateway set this.
	RequireID bool
}

func (h HeaderIdentityResolver) Resolve(r *http.Request) (game.PlayerIdentity, error) {
	id := strings.TrimSpace(r.Header.Get("X-Player-Id"))
	name := strings.TrimSpace(r.Header.Get("X-Player-Name"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("playerId"))
	}
	if name == "" {
		name = strings.TrimSpace(r.URL.Query().Get("playerName"))
	}

	if id == "" {
		if h.RequireID {
			return game.PlayerIdentity{}, fmt.Errorf("missing player identity")
		}
		id = uuid.NewString()
	}
	if name == "" {
		name = "guest-" + shortID(id)
	}
	return game.PlayerIdentity{ID: id, Name: name}, nil
}

// NewSessionID mints the per-connection session token inputs are checked
// against. Regenerated on every connection, so a reconnecting player can
// never replay a stale socket.
func NewSessionID() string {
	return uuid.NewString()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
