// Package presence publishes player availability transitions over NATS so
// sibling services (friend lists, invite UIs) can gray out players who are
// already in a match. Publishing is best-effort: presence is a courtesy
// signal, never a correctness dependency.
package presence

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"pong-arena/internal/config"
)

// Update is the wire format for one availability transition.
type Update struct {
	PlayerID  string    `json:"playerId"`
	Available bool      `json:"available"`
	At        time.Time `json:"at"`
}

// NATSNotifier publishes availability transitions to a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier connects to the NATS server.
func NewNATSNotifier(cfg config.PresenceConfig) (*NATSNotifier, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("pong-arena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", cfg.URL, err)
	}
	return &NATSNotifier{conn: conn, subject: cfg.Subject}, nil
}

// AvailabilityChanged publishes one transition. Errors are logged, not
// returned: a presence outage must not affect matchmaking.
func (n *NATSNotifier) AvailabilityChanged(playerID string, available bool) {
	payload, err := json.Marshal(Update{
		PlayerID:  playerID,
		Available: available,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		log.Printf("⚠️ presence publish failed for %s: %v", playerID, err)
	}
}

// Close drains pending publishes and releases the connection.
func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}
