package arena

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pong-arena/internal/game"
)

type nullConn struct{}

func (nullConn) Send(string, any) {}

type memNotifier struct {
	mu          sync.Mutex
	transitions []string
}

func (n *memNotifier) AvailabilityChanged(playerID string, available bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	state := "busy"
	if available {
		state = "free"
	}
	n.transitions = append(n.transitions, playerID+":"+state)
}

func (n *memNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.transitions...)
}

type memRecorder struct {
	mu      sync.Mutex
	results []game.Result
}

func (r *memRecorder) Record(_ context.Context, res game.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

func (r *memRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func ident(id string) game.PlayerIdentity {
	return game.PlayerIdentity{ID: id, Name: "player-" + id}
}

func newTestMatchmaker(notifier Notifier, recorder game.ResultRecorder) (*Matchmaker, *Registry) {
	reg := NewRegistry()
	return NewMatchmaker(MatchmakerConfig{
		Registry: reg,
		Recorder: recorder,
		Notifier: notifier,
	}), reg
}

func waitDone(t *testing.T, m *game.Match) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("match did not terminate")
	}
}

func TestRandomRoomID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := RandomRoomID(QueueRoomIDLength)
		require.NoError(t, err)
		assert.Len(t, id, QueueRoomIDLength)
		for _, r := range id {
			assert.Contains(t, roomAlphabet, string(r))
		}
		seen[id] = true
	}
	// 100 draws from a 62^10 space must not collide
	assert.Len(t, seen, 100)
}

func TestJoinQueuePairsTwoPlayers(t *testing.T) {
	mm, reg := newTestMatchmaker(nil, nil)

	m1, side1, err := mm.JoinQueue(ident("a"), "sa", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	assert.Equal(t, game.SideBottom, side1)
	assert.Len(t, m1.ID(), QueueRoomIDLength)
	assert.Equal(t, 1, reg.Len())

	m2, side2, err := mm.JoinQueue(ident("b"), "sb", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	assert.Equal(t, game.SideTop, side2)
	assert.Equal(t, m1.ID(), m2.ID(), "second joiner must land in the waiting room")
	assert.Equal(t, 1, reg.Len())

	// the pair left the queue: a third joiner gets a fresh room
	m3, side3, err := mm.JoinQueue(ident("c"), "sc", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	assert.Equal(t, game.SideBottom, side3)
	assert.NotEqual(t, m1.ID(), m3.ID())
	assert.Equal(t, 2, reg.Len())
}

func TestJoinQueueVariantsAreIsolated(t *testing.T) {
	mm, _ := newTestMatchmaker(nil, nil)

	m1, _, err := mm.JoinQueue(ident("a"), "sa", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	m2, _, err := mm.JoinQueue(ident("b"), "sb", nullConn{}, game.VariantRandom)
	require.NoError(t, err)

	assert.NotEqual(t, m1.ID(), m2.ID(), "different variants must never share a room")
}

func TestJoinQueueRejections(t *testing.T) {
	mm, _ := newTestMatchmaker(nil, nil)

	_, _, err := mm.JoinQueue(ident("a"), "sa", nullConn{}, game.Variant("bogus"))
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, _, err = mm.JoinQueue(ident("a"), "sa", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	_, _, err = mm.JoinQueue(ident("a"), "sa2", nullConn{}, game.VariantRandom)
	assert.ErrorIs(t, err, ErrPlayerBusy)
}

func TestDuelFlow(t *testing.T) {
	mm, reg := newTestMatchmaker(nil, nil)

	roomID, err := mm.CreateDuel(game.VariantRandom)
	require.NoError(t, err)
	assert.Len(t, roomID, DuelRoomIDLength)
	require.Equal(t, 1, reg.Len())

	// a duel room is never offered to the queue
	mQueue, _, err := mm.JoinQueue(ident("x"), "sx", nullConn{}, game.VariantRandom)
	require.NoError(t, err)
	assert.NotEqual(t, roomID, mQueue.ID())

	m1, side1, err := mm.JoinDuel(ident("a"), "sa", nullConn{}, roomID)
	require.NoError(t, err)
	assert.Equal(t, game.SideBottom, side1)
	assert.True(t, m1.PreArmed())

	m2, side2, err := mm.JoinDuel(ident("b"), "sb", nullConn{}, roomID)
	require.NoError(t, err)
	assert.Equal(t, game.SideTop, side2)
	assert.Equal(t, m1, m2)

	_, _, err = mm.JoinDuel(ident("c"), "sc", nullConn{}, roomID)
	assert.ErrorIs(t, err, ErrRoomFull)

	_, _, err = mm.JoinDuel(ident("d"), "sd", nullConn{}, "no-such-room")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeaveQueueAbandonsAndFreesPlayer(t *testing.T) {
	notifier := &memNotifier{}
	recorder := &memRecorder{}
	mm, reg := newTestMatchmaker(notifier, recorder)

	m, _, err := mm.JoinQueue(ident("a"), "sa", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	require.True(t, mm.IsBusy("a"))

	mm.Leave("a", "sa")
	waitDone(t, m)

	assert.Equal(t, 0, reg.Len(), "abandoned room must leave the registry")
	assert.False(t, mm.IsBusy("a"))
	assert.Equal(t, 0, recorder.len(), "a pre-pair abandon produces no result")
	assert.Equal(t, []string{"a:busy", "a:free"}, notifier.all())

	// the freed player can queue again, into a fresh room
	m2, _, err := mm.JoinQueue(ident("a"), "sa2", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	assert.NotEqual(t, m.ID(), m2.ID())
}

func TestLeaveQueueRejectedOncePaired(t *testing.T) {
	mm, _ := newTestMatchmaker(nil, nil)

	_, _, err := mm.JoinQueue(ident("a"), "sa", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	_, _, err = mm.JoinQueue(ident("b"), "sb", nullConn{}, game.VariantStandard)
	require.NoError(t, err)

	assert.ErrorIs(t, mm.LeaveQueue("a", "sa"), ErrNotWaiting)
	assert.ErrorIs(t, mm.LeaveQueue("nobody", "sx"), ErrNotWaiting)
	assert.True(t, mm.IsBusy("a"), "a rejected withdrawal must keep the seat")
}

func TestLeaveQueueWithdrawsSoleOccupant(t *testing.T) {
	notifier := &memNotifier{}
	mm, reg := newTestMatchmaker(notifier, nil)

	m, _, err := mm.JoinQueue(ident("a"), "sa", nullConn{}, game.VariantStandard)
	require.NoError(t, err)

	require.NoError(t, mm.LeaveQueue("a", "sa"))
	waitDone(t, m)

	assert.Equal(t, 0, reg.Len())
	assert.False(t, mm.IsBusy("a"))
	assert.Equal(t, []string{"a:busy", "a:free"}, notifier.all())
}

func TestLeaveAfterPairingForfeits(t *testing.T) {
	notifier := &memNotifier{}
	recorder := &memRecorder{}
	mm, reg := newTestMatchmaker(notifier, recorder)

	m, _, err := mm.JoinQueue(ident("a"), "sa", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	_, _, err = mm.JoinQueue(ident("b"), "sb", nullConn{}, game.VariantStandard)
	require.NoError(t, err)

	mm.Leave("a", "sa")
	waitDone(t, m)

	assert.Equal(t, 0, reg.Len())
	assert.False(t, mm.IsBusy("a"))
	assert.False(t, mm.IsBusy("b"))

	// the result handoff is fire-and-forget; give it a beat
	require.Eventually(t, func() bool { return recorder.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	recorder.mu.Lock()
	res := recorder.results[0]
	recorder.mu.Unlock()
	assert.True(t, res.Forfeit)
	assert.Equal(t, "b", res.Winner.ID)
	assert.Equal(t, "a", res.Loser.ID)
}

func TestRegistryListing(t *testing.T) {
	mm, reg := newTestMatchmaker(nil, nil)

	_, _, err := mm.JoinQueue(ident("a"), "sa", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	duelID, err := mm.CreateDuel(game.VariantRandom)
	require.NoError(t, err)

	infos := reg.List()
	require.Len(t, infos, 2)
	byID := make(map[string]RoomInfo, 2)
	for _, info := range infos {
		byID[info.ID] = info
	}
	duel := byID[duelID]
	assert.True(t, duel.Duel)
	assert.Equal(t, game.VariantRandom, duel.Variant)
	assert.Equal(t, 0, duel.Occupants)
	assert.False(t, duel.Running)
}

func TestCloseAbandonsEverything(t *testing.T) {
	mm, reg := newTestMatchmaker(nil, nil)

	m1, _, err := mm.JoinQueue(ident("a"), "sa", nullConn{}, game.VariantStandard)
	require.NoError(t, err)
	m2, _, err := mm.JoinQueue(ident("b"), "sb", nullConn{}, game.VariantRandom)
	require.NoError(t, err)

	mm.Close()
	waitDone(t, m1)
	waitDone(t, m2)
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRoomIDAlphabetIsAlnumOnly(t *testing.T) {
	assert.Len(t, roomAlphabet, 62)
	assert.NotContains(t, roomAlphabet, "-")
	assert.False(t, strings.ContainsAny(roomAlphabet, " _/+="))
}
