package game

import (
	"context"
	"time"
)

// Outbound event names. Every payload is sent per recipient so paddle roles
// can be relabeled: each client always sees itself as the near paddle.
const (
	EventAssignedSide = "assigned-side"
	EventAssignedRoom = "assigned-room"
	EventRoomFilled   = "room-filled"
	EventMatchStarted = "match-started"
	EventTickSnapshot = "tick-snapshot"
	EventPointScored  = "point-scored"
	EventCountdown    = "countdown"
	EventCountdownEnd = "countdown-end"
	EventMatchOver    = "match-over"
)

// Conn is the transport handle for one participant. Send is fire-and-forget:
// a dead or slow connection must never block the tick loop.
type Conn interface {
	Send(event string, data any)
}

// Snapshot is the per-tick state broadcast while a match runs. Near is the
// recipient's own paddle.
type Snapshot struct {
	PaddleNear Paddle `json:"paddleNear"`
	PaddleFar  Paddle `json:"paddleFar"`
	Ball       Ball   `json:"ball"`
}

// SidePayload assigns the recipient's paddle row.
type SidePayload struct {
	Side Side `json:"side"`
}

// RoomPayload assigns the recipient's room.
type RoomPayload struct {
	Room string `json:"room"`
}

// FilledPayload announces that the second participant arrived.
type FilledPayload struct {
	Variant Variant `json:"variant"`
}

// StartedPayload carries both display identities; PlayerNear is the
// recipient.
type StartedPayload struct {
	PlayerNear PlayerIdentity `json:"playerNear"`
	PlayerFar  PlayerIdentity `json:"playerFar"`
}

// ScorePayload announces a point for one side.
type ScorePayload struct {
	Side  Side `json:"side"`
	Score int  `json:"score"`
}

// CountdownPayload carries the seconds remaining before relaunch.
type CountdownPayload struct {
	N int `json:"n"`
}

// OverPayload announces the match winner.
type OverPayload struct {
	Winner PlayerIdentity `json:"winner"`
}

// ResultRecorder hands a finished match to the external history service.
// Called at most once per match and never retried here; retry policy belongs
// to the collaborator.
type ResultRecorder interface {
	Record(ctx context.Context, res Result) error
}

// Observer receives match lifecycle signals, used for metrics. All methods
// must be cheap and non-blocking.
type Observer interface {
	MatchCreated(room string)
	MatchStarted(room string)
	GoalScored(room string)
	MatchFinished(room string, forfeit bool)
	MatchAbandoned(room string)
	TickDone(d time.Duration)
}

// NopObserver ignores every signal.
type NopObserver struct{}

func (NopObserver) MatchCreated(string)        {}
func (NopObserver) MatchStarted(string)        {}
func (NopObserver) GoalScored(string)          {}
func (NopObserver) MatchFinished(string, bool) {}
func (NopObserver) MatchAbandoned(string)      {}
func (NopObserver) TickDone(time.Duration)     {}
