package arena

import (
	"errors"
	"log"
	"sync"
	"time"

	"pong-arena/internal/game"
)

var (
	// ErrPlayerBusy means the player is already in a room and cannot enter
	// another until that match resolves.
	ErrPlayerBusy = errors.New("player already in a match")

	// ErrRoomNotFound means the requested duel room does not exist (or is
	// not a duel room).
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull means both duel seats are already taken.
	ErrRoomFull = errors.New("room is full")

	// ErrUnknownVariant rejects queue requests for a variant the arena does
	// not run.
	ErrUnknownVariant = errors.New("unknown game variant")

	// ErrNotWaiting means the player has no seat in a not-yet-full room, so
	// there is no queue entry to withdraw.
	ErrNotWaiting = errors.New("player is not waiting for an opponent")
)

// Notifier publishes player availability transitions so other services can
// gray out busy players. Implementations must not block.
type Notifier interface {
	AvailabilityChanged(playerID string, available bool)
}

// NopNotifier discards availability transitions.
type NopNotifier struct{}

func (NopNotifier) AvailabilityChanged(string, bool) {}

// Matchmaker pairs players into rooms. It is the only component that attaches
// participants, so all pairing races resolve under its lock; once a room is
// full, everything else goes through the match actor.
type Matchmaker struct {
	registry *Registry
	recorder game.ResultRecorder
	observer game.Observer
	notifier Notifier
	interval time.Duration

	mu      sync.Mutex
	open    map[game.Variant]string // variant -> queue room waiting for a second player
	busy    map[string]string       // player id -> room id
	pending map[string]*pendingRoom // room id -> pre-start occupancy
}

// pendingRoom tracks seat counts from the matchmaker's side. Cleared by the
// completion callback when the room dies.
type pendingRoom struct {
	duel      bool
	occupants int
}

// MatchmakerConfig wires the matchmaker's collaborators. Registry is
// required; nil Recorder, Observer, and Notifier degrade to no-ops.
type MatchmakerConfig struct {
	Registry *Registry
	Recorder game.ResultRecorder
	Observer game.Observer
	Notifier Notifier

	// TickInterval overrides the simulation interval for matches this
	// matchmaker creates; zero means the standard rate.
	TickInterval time.Duration
}

func NewMatchmaker(cfg MatchmakerConfig) *Matchmaker {
	observer := cfg.Observer
	if observer == nil {
		observer = game.NopObserver{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Matchmaker{
		registry: cfg.Registry,
		recorder: cfg.Recorder,
		observer: observer,
		notifier: notifier,
		interval: cfg.TickInterval,
		open:     make(map[game.Variant]string),
		busy:     make(map[string]string),
		pending:  make(map[string]*pendingRoom),
	}
}

// JoinQueue places a player into the waiting room for the variant, creating
// one if nobody is waiting. The first joiner takes the bottom side, the
// second the top; a full pair leaves the open index atomically, so a third
// concurrent joiner always lands in a fresh room.
func (mm *Matchmaker) JoinQueue(player game.PlayerIdentity, session string, conn game.Conn, variant game.Variant) (*game.Match, game.Side, error) {
	if !variant.Valid() {
		return nil, "", ErrUnknownVariant
	}

	mm.mu.Lock()
	if !mm.admit(player.ID) {
		mm.mu.Unlock()
		return nil, "", ErrPlayerBusy
	}

	if roomID, ok := mm.open[variant]; ok {
		m, live := mm.registry.Get(roomID)
		if !live {
			// The waiting room died between ticks; fall through and
			// allocate a fresh one.
			delete(mm.open, variant)
		} else {
			mm.pending[roomID].occupants++
			delete(mm.open, variant)
			mm.busy[player.ID] = roomID
			mm.mu.Unlock()

			mm.notifier.AvailabilityChanged(player.ID, false)
			m.Attach(&game.Participant{Player: player, Session: session, Conn: conn}, game.SideTop)
			log.Printf("queue: %s paired into room %s (%s)", player.Name, roomID, variant)
			return m, game.SideTop, nil
		}
	}

	roomID, err := mm.registry.NewRoomID(QueueRoomIDLength)
	if err != nil {
		mm.mu.Unlock()
		return nil, "", err
	}
	m := mm.spawn(roomID, variant, false)
	mm.open[variant] = roomID
	mm.pending[roomID] = &pendingRoom{occupants: 1}
	mm.busy[player.ID] = roomID
	mm.mu.Unlock()

	mm.notifier.AvailabilityChanged(player.ID, false)
	m.Attach(&game.Participant{Player: player, Session: session, Conn: conn}, game.SideBottom)
	log.Printf("queue: %s waiting in new room %s (%s)", player.Name, roomID, variant)
	return m, game.SideBottom, nil
}

// CreateDuel allocates a private room for an arranged match. The room is
// created with zero occupants but is never offered to the queue: both seats
// belong to the invited pair.
func (mm *Matchmaker) CreateDuel(variant game.Variant) (string, error) {
	if !variant.Valid() {
		return "", ErrUnknownVariant
	}
	mm.mu.Lock()
	roomID, err := mm.registry.NewRoomID(DuelRoomIDLength)
	if err != nil {
		mm.mu.Unlock()
		return "", err
	}
	mm.spawn(roomID, variant, true)
	mm.pending[roomID] = &pendingRoom{duel: true}
	mm.mu.Unlock()

	log.Printf("duel: allocated room %s (%s)", roomID, variant)
	return roomID, nil
}

// JoinDuel seats a player in an arranged room by id.
func (mm *Matchmaker) JoinDuel(player game.PlayerIdentity, session string, conn game.Conn, roomID string) (*game.Match, game.Side, error) {
	mm.mu.Lock()
	if !mm.admit(player.ID) {
		mm.mu.Unlock()
		return nil, "", ErrPlayerBusy
	}
	pend, pok := mm.pending[roomID]
	m, live := mm.registry.Get(roomID)
	if !pok || !live || !pend.duel {
		mm.mu.Unlock()
		return nil, "", ErrRoomNotFound
	}
	if pend.occupants >= 2 {
		mm.mu.Unlock()
		return nil, "", ErrRoomFull
	}
	side := game.SideBottom
	if pend.occupants == 1 {
		side = game.SideTop
	}
	pend.occupants++
	mm.busy[player.ID] = roomID
	mm.mu.Unlock()

	mm.notifier.AvailabilityChanged(player.ID, false)
	m.Attach(&game.Participant{Player: player, Session: session, Conn: conn}, side)
	log.Printf("duel: %s joined room %s as %s", player.Name, roomID, side)
	return m, side, nil
}

// LeaveQueue withdraws a player who is still alone in their room. Once a
// second player has taken the other seat the entry cannot be withdrawn; the
// player must leave the match (and forfeit) instead.
func (mm *Matchmaker) LeaveQueue(playerID, session string) error {
	mm.mu.Lock()
	roomID, ok := mm.busy[playerID]
	if !ok {
		mm.mu.Unlock()
		return ErrNotWaiting
	}
	if pend := mm.pending[roomID]; pend != nil && pend.occupants >= 2 {
		mm.mu.Unlock()
		return ErrNotWaiting
	}
	mm.mu.Unlock()

	m, live := mm.registry.Get(roomID)
	if !live {
		mm.mu.Lock()
		if mm.busy[playerID] == roomID {
			delete(mm.busy, playerID)
		}
		mm.mu.Unlock()
		mm.notifier.AvailabilityChanged(playerID, true)
		return nil
	}
	m.Leave(session)
	return nil
}

// Leave routes a leave or disconnect to the player's current room, if any.
// The match actor decides between a silent abandon and a forfeit; cleanup
// happens in the completion callback either way.
func (mm *Matchmaker) Leave(playerID, session string) {
	mm.mu.Lock()
	roomID, ok := mm.busy[playerID]
	mm.mu.Unlock()
	if !ok {
		return
	}
	m, live := mm.registry.Get(roomID)
	if !live {
		// Stale seat from a room that died mid-join.
		mm.mu.Lock()
		if mm.busy[playerID] == roomID {
			delete(mm.busy, playerID)
		}
		mm.mu.Unlock()
		mm.notifier.AvailabilityChanged(playerID, true)
		return
	}
	m.Leave(session)
}

// admit reports whether a player may take a seat, clearing any stale seat
// whose room is already gone. Caller holds mm.mu.
func (mm *Matchmaker) admit(playerID string) bool {
	roomID, taken := mm.busy[playerID]
	if !taken {
		return true
	}
	if mm.registry.Has(roomID) {
		return false
	}
	delete(mm.busy, playerID)
	return true
}

// IsBusy reports whether the player currently holds a seat.
func (mm *Matchmaker) IsBusy(playerID string) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	_, ok := mm.busy[playerID]
	return ok
}

// Close abandons every live room. Used on server shutdown; no results are
// produced for interrupted matches.
func (mm *Matchmaker) Close() {
	for _, info := range mm.registry.List() {
		if m, ok := mm.registry.Get(info.ID); ok {
			m.Stop()
		}
	}
}

// spawn creates and starts a match actor. Caller holds mm.mu.
func (mm *Matchmaker) spawn(roomID string, variant game.Variant, duel bool) *game.Match {
	m := game.NewMatch(game.MatchConfig{
		ID:           roomID,
		Variant:      variant,
		PreArmedFull: duel,
		Recorder:     mm.recorder,
		Observer:     mm.observer,
		OnDone:       mm.onMatchDone,
		TickInterval: mm.interval,
	})
	mm.registry.Put(m)
	go m.Run()
	mm.observer.MatchCreated(roomID)
	return m
}

// onMatchDone runs when a match terminates, for any reason: win, forfeit, or
// pre-start abandon. It frees the registry slot, clears the open-queue index
// if the room was still waiting, and restores the players' availability.
func (mm *Matchmaker) onMatchDone(roomID string, players []game.PlayerIdentity) {
	mm.mu.Lock()
	mm.registry.Delete(roomID)
	for variant, id := range mm.open {
		if id == roomID {
			delete(mm.open, variant)
		}
	}
	delete(mm.pending, roomID)
	freed := make([]string, 0, len(players))
	for _, p := range players {
		if mm.busy[p.ID] == roomID {
			delete(mm.busy, p.ID)
			freed = append(freed, p.ID)
		}
	}
	mm.mu.Unlock()

	for _, id := range freed {
		mm.notifier.AvailabilityChanged(id, true)
	}
}
