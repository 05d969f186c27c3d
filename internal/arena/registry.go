// Package arena owns the live-room table and matchmaking: queue pairing,
// duel room allocation, and player availability. Matches themselves run as
// independent actors in the game package; the arena only creates, indexes,
// and tears them down.
package arena

import (
	"crypto/rand"
	"fmt"
	"sync"

	"pong-arena/internal/game"
)

const (
	// QueueRoomIDLength and DuelRoomIDLength keep the two allocation paths
	// distinguishable in logs and URLs.
	QueueRoomIDLength = 10
	DuelRoomIDLength  = 20
)

const roomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomRoomID draws n alphanumeric characters from the system entropy
// source.
func RandomRoomID(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading room id entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = roomAlphabet[int(b)%len(roomAlphabet)]
	}
	return string(buf), nil
}

// RoomInfo is a point-in-time view of one live room, for listings only.
type RoomInfo struct {
	ID        string       `json:"id"`
	Variant   game.Variant `json:"variant"`
	Duel      bool         `json:"duel"`
	Occupants int          `json:"occupants"`
	Running   bool         `json:"running"`
}

// Registry indexes live matches by room id. The table is a sync.Map rather
// than a mutex-guarded map: the access pattern is lookup-heavy with disjoint
// key sets per connection, so unrelated rooms never contend.
type Registry struct {
	rooms sync.Map // room id -> *game.Match
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Put registers a match under its room id.
func (r *Registry) Put(m *game.Match) {
	r.rooms.Store(m.ID(), m)
}

// Get returns the match for a room id.
func (r *Registry) Get(id string) (*game.Match, bool) {
	v, ok := r.rooms.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*game.Match), true
}

// Delete removes a room. Safe to call for ids already gone.
func (r *Registry) Delete(id string) {
	r.rooms.Delete(id)
}

// Has reports whether a room id is taken.
func (r *Registry) Has(id string) bool {
	_, ok := r.rooms.Load(id)
	return ok
}

// Len counts live rooms. O(n); used for listings and gauges only.
func (r *Registry) Len() int {
	n := 0
	r.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// List snapshots every live room.
func (r *Registry) List() []RoomInfo {
	out := make([]RoomInfo, 0, 8)
	r.rooms.Range(func(_, v any) bool {
		m := v.(*game.Match)
		out = append(out, RoomInfo{
			ID:        m.ID(),
			Variant:   m.Variant(),
			Duel:      m.PreArmed(),
			Occupants: m.Occupants(),
			Running:   m.Running(),
		})
		return true
	})
	return out
}

// NewRoomID allocates an unused room id of the given length, retrying on the
// (astronomically unlikely) collision.
func (r *Registry) NewRoomID(n int) (string, error) {
	for {
		id, err := RandomRoomID(n)
		if err != nil {
			return "", err
		}
		if !r.Has(id) {
			return id, nil
		}
	}
}
