package game

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Participant is one player attached to a match: identity, transport handle,
// and the connection session the input events must come from.
type Participant struct {
	Player  PlayerIdentity
	Session string
	Conn    Conn

	attached bool
}

// Match is one live room. All mutable state is owned by the Run goroutine;
// the outside world talks to it exclusively through commands on the inbox, so
// input application and ticks for a room are serialized while unrelated rooms
// never coordinate.
type Match struct {
	id       string
	variant  Variant
	prearmed bool

	inbox     chan command
	done      chan struct{}
	closeOnce sync.Once

	// state below is touched only by the run goroutine
	bottom, top *Paddle
	ball        *Ball
	players     map[Side]*Participant
	scores      map[Side]int
	started     bool
	over        bool
	pauseTicks  int
	ticker      *time.Ticker

	rng      *rand.Rand
	interval time.Duration

	recorder ResultRecorder
	observer Observer
	onDone   func(room string, players []PlayerIdentity)

	// read-only observational counters for listings
	occupants atomic.Int32
	running   atomic.Bool
}

// MatchConfig parameterizes the single match constructor shared by the queue
// and duel paths.
type MatchConfig struct {
	ID      string
	Variant Variant

	// PreArmedFull marks a duel room: created with one occupant but treated
	// as full by matchmaking, since the second arrival is guaranteed.
	PreArmedFull bool

	Recorder ResultRecorder
	Observer Observer

	// OnDone runs after the match reaches a terminal state, before the run
	// goroutine exits. Used to remove the room from the registry and restore
	// player availability.
	OnDone func(room string, players []PlayerIdentity)

	// TickInterval overrides the simulation interval; tests use short ones.
	TickInterval time.Duration

	// Seed fixes the RNG for deterministic tests. Zero means time-seeded.
	Seed int64
}

// NewMatch builds an idle match. Call Run in its own goroutine; the room does
// not tick until both sides are attached and a start signal arrives.
func NewMatch(cfg MatchConfig) *Match {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = TickInterval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	rng := rand.New(rand.NewSource(seed))

	ball := NewBall()
	ball.Angle = RandomAngle(rng)
	ball.Speed = BallSpeed

	return &Match{
		id:       cfg.ID,
		variant:  cfg.Variant,
		prearmed: cfg.PreArmedFull,
		inbox:    make(chan command, 64),
		done:     make(chan struct{}),
		bottom:   NewPaddle(SideBottom, cfg.Variant),
		top:      NewPaddle(SideTop, cfg.Variant),
		ball:     ball,
		players:  make(map[Side]*Participant, 2),
		scores:   map[Side]int{SideBottom: 0, SideTop: 0},
		rng:      rng,
		interval: interval,
		recorder: cfg.Recorder,
		observer: observer,
		onDone:   cfg.OnDone,
	}
}

func (m *Match) ID() string       { return m.id }
func (m *Match) Variant() Variant { return m.variant }
func (m *Match) PreArmed() bool   { return m.prearmed }

// Occupants reports the currently attached participant count. Safe from any
// goroutine; used only for listings, never for matchmaking decisions.
func (m *Match) Occupants() int { return int(m.occupants.Load()) }

// Running reports whether the tick loop is live.
func (m *Match) Running() bool { return m.running.Load() }

// Done is closed once the match has terminated and its timer is cancelled.
func (m *Match) Done() <-chan struct{} { return m.done }

type command interface{}

type joinCmd struct {
	p    *Participant
	side Side
}

type startCmd struct{}

type inputCmd struct {
	session string
	side    Side
	dir     Direction
	moving  bool
}

type leaveCmd struct {
	session string
}

type stopCmd struct{}

// Attach adds a participant on the given side.
func (m *Match) Attach(p *Participant, side Side) {
	m.enqueue(joinCmd{p: p, side: side})
}

// Start begins ticking once both sides are present. A second start signal for
// a live match is ignored.
func (m *Match) Start() { m.enqueue(startCmd{}) }

// Input records a paddle movement intent, consumed on the next tick.
func (m *Match) Input(session string, side Side, dir Direction, moving bool) {
	m.enqueue(inputCmd{session: session, side: side, dir: dir, moving: moving})
}

// Leave signals an explicit leave or a disconnect for the participant owning
// the session. For a full room this resolves the other side as winner.
func (m *Match) Leave(session string) {
	m.enqueue(leaveCmd{session: session})
}

// Stop abandons a match silently, without producing a result. Used when the
// sole occupant withdraws from the queue.
func (m *Match) Stop() { m.enqueue(stopCmd{}) }

// enqueue never blocks: a terminated room ignores everything, and a full
// inbox drops the command rather than stall the caller.
func (m *Match) enqueue(c command) {
	select {
	case <-m.done:
	case m.inbox <- c:
	default:
		log.Printf("room %s: inbox full, dropping %T", m.id, c)
	}
}

// Run is the room's only goroutine: commands and ticks interleave through one
// select, so nothing else ever touches match state.
func (m *Match) Run() {
	var tickC <-chan time.Time
	for {
		select {
		case <-m.done:
			return
		case cmd := <-m.inbox:
			m.handle(cmd)
			if m.ticker != nil && tickC == nil {
				tickC = m.ticker.C
			}
		case <-tickC:
			start := time.Now()
			m.step()
			m.observer.TickDone(time.Since(start))
		}
	}
}

func (m *Match) handle(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		m.handleJoin(c)
	case startCmd:
		m.handleStart()
	case inputCmd:
		m.handleInput(c)
	case leaveCmd:
		m.handleLeave(c)
	case stopCmd:
		m.shutdown()
	}
}

func (m *Match) handleJoin(c joinCmd) {
	if m.over {
		return
	}
	if m.players[c.side] != nil {
		log.Printf("room %s: side %s already taken, join dropped", m.id, c.side)
		return
	}
	c.p.attached = true
	m.players[c.side] = c.p
	m.occupants.Add(1)

	c.p.Conn.Send(EventAssignedSide, SidePayload{Side: c.side})
	c.p.Conn.Send(EventAssignedRoom, RoomPayload{Room: m.id})

	if m.full() {
		m.broadcast(EventRoomFilled, FilledPayload{Variant: m.variant})
	}
}

func (m *Match) handleStart() {
	if m.over || m.started {
		return
	}
	if !m.full() {
		log.Printf("room %s: start ignored, room not full", m.id)
		return
	}
	m.started = true
	m.running.Store(true)

	for side, p := range m.players {
		other := m.players[side.Opposite()]
		p.Conn.Send(EventMatchStarted, StartedPayload{
			PlayerNear: p.Player,
			PlayerFar:  other.Player,
		})
	}

	// The first rally gets the same countdown as every later point.
	ResetBall(m.ball)
	m.pauseTicks = (CountdownSeconds + 2) * TicksPerSecond

	m.ticker = time.NewTicker(m.interval)
	m.observer.MatchStarted(m.id)
	log.Printf("room %s: match started (%s vs %s)", m.id,
		m.players[SideBottom].Player.Name, m.players[SideTop].Player.Name)
}

func (m *Match) handleInput(c inputCmd) {
	if m.over {
		return
	}
	p := m.players[c.side]
	if p == nil || p.Session != c.session {
		// Stale or spoofed: input claiming a side it does not own.
		return
	}
	paddle := m.paddleFor(c.side)
	switch c.dir {
	case DirLeft:
		paddle.MovingLeft = c.moving
	case DirRight:
		paddle.MovingRight = c.moving
	}
}

func (m *Match) handleLeave(c leaveCmd) {
	if m.over {
		return
	}
	var side Side
	var p *Participant
	for s, cand := range m.players {
		if cand.Session == c.session {
			side, p = s, cand
			break
		}
	}
	if p == nil {
		log.Printf("room %s: leave for unknown session ignored", m.id)
		return
	}
	if !p.attached {
		return
	}
	p.attached = false
	m.occupants.Add(-1)

	if !m.full() {
		// Sole occupant withdrew before a second player ever arrived.
		m.shutdown()
		return
	}
	m.finish(side.Opposite(), true)
}

// step advances the match one tick: forfeit check, physics or countdown,
// paddle intents, then the outcome branch.
func (m *Match) step() {
	if m.over {
		return
	}
	if remaining, n := m.soleAttached(); n < 2 {
		// A connection dropped without a leave command reaching us first.
		if n == 1 {
			m.finish(remaining, true)
		} else {
			m.shutdown()
		}
		return
	}

	outcome := OutcomeMoved
	if m.pauseTicks > 0 {
		m.pauseTicks--
		if m.pauseTicks%TicksPerSecond == 0 {
			if m.pauseTicks == 0 {
				Relaunch(m.ball, m.rng)
				m.broadcast(EventCountdownEnd, nil)
			} else {
				m.broadcast(EventCountdown, CountdownPayload{N: m.pauseTicks/TicksPerSecond - 1})
			}
		}
	} else {
		outcome = StepBall(m.ball, m.bottom, m.top, m.variant, m.rng)
	}

	m.bottom.Advance()
	m.top.Advance()

	switch outcome {
	case OutcomeGoalBottom:
		m.scoreGoal(SideTop)
	case OutcomeGoalTop:
		m.scoreGoal(SideBottom)
	default:
		m.broadcastSnapshots()
	}
}

func (m *Match) scoreGoal(side Side) {
	m.scores[side]++
	m.observer.GoalScored(m.id)
	m.broadcast(EventPointScored, ScorePayload{Side: side, Score: m.scores[side]})

	if m.scores[side] >= WinScore {
		m.finish(side, false)
		return
	}
	ResetBall(m.ball)
	m.pauseTicks = (CountdownSeconds + 2) * TicksPerSecond
}

// finish resolves the match for the given winner. Idempotent: only the first
// call emits events, records the result, and cancels the timer.
func (m *Match) finish(winner Side, forfeit bool) {
	if m.over {
		return
	}
	m.over = true
	m.running.Store(false)

	w := m.players[winner]
	l := m.players[winner.Opposite()]
	m.broadcast(EventMatchOver, OverPayload{Winner: w.Player})

	res := Result{
		RoomID:      m.id,
		Winner:      w.Player,
		Loser:       l.Player,
		WinnerScore: m.scores[winner],
		LoserScore:  m.scores[winner.Opposite()],
		Forfeit:     forfeit,
	}
	m.observer.MatchFinished(m.id, forfeit)
	log.Printf("room %s: match over, %s beat %s %d-%d (forfeit=%v)",
		m.id, w.Player.Name, l.Player.Name, res.WinnerScore, res.LoserScore, forfeit)

	// Fire-and-forget: the room is freed whether or not the history service
	// accepts the result.
	if rec := m.recorder; rec != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rec.Record(ctx, res); err != nil {
				log.Printf("room %s: result handoff failed: %v", res.RoomID, err)
			}
		}()
	}

	if m.onDone != nil {
		m.onDone(m.id, []PlayerIdentity{w.Player, l.Player})
	}
	m.shutdown()
}

// shutdown cancels the tick timer and closes done, exactly once.
func (m *Match) shutdown() {
	m.closeOnce.Do(func() {
		if m.ticker != nil {
			m.ticker.Stop()
		}
		if !m.over {
			// Abandoned pre-start: still free the registry slot, no result.
			m.observer.MatchAbandoned(m.id)
			if m.onDone != nil {
				ids := make([]PlayerIdentity, 0, 2)
				for _, p := range m.players {
					ids = append(ids, p.Player)
				}
				m.onDone(m.id, ids)
			}
		}
		m.over = true
		m.running.Store(false)
		close(m.done)
	})
}

func (m *Match) full() bool {
	return m.players[SideBottom] != nil && m.players[SideTop] != nil
}

// soleAttached returns the remaining attached side (if exactly one) and the
// attached count.
func (m *Match) soleAttached() (Side, int) {
	var last Side
	n := 0
	for side, p := range m.players {
		if p.attached {
			last = side
			n++
		}
	}
	return last, n
}

func (m *Match) paddleFor(side Side) *Paddle {
	if side == SideBottom {
		return m.bottom
	}
	return m.top
}

func (m *Match) broadcast(event string, data any) {
	for _, p := range m.players {
		if p.attached {
			p.Conn.Send(event, data)
		}
	}
}

// broadcastSnapshots relabels paddle roles per recipient so each client sees
// its own paddle as the near one.
func (m *Match) broadcastSnapshots() {
	if p := m.players[SideBottom]; p != nil && p.attached {
		p.Conn.Send(EventTickSnapshot, Snapshot{PaddleNear: *m.bottom, PaddleFar: *m.top, Ball: *m.ball})
	}
	if p := m.players[SideTop]; p != nil && p.attached {
		p.Conn.Send(EventTickSnapshot, Snapshot{PaddleNear: *m.top, PaddleFar: *m.bottom, Ball: *m.ball})
	}
}
