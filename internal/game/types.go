package game

// Variant selects the game mode for a match.
type Variant string

const (
	// VariantStandard is plain pong with fixed paddle widths.
	VariantStandard Variant = "standard"

	// VariantRandom starts with double-width paddles and re-randomizes a
	// paddle's width on every ball contact.
	VariantRandom Variant = "random"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v == VariantStandard || v == VariantRandom
}

// Side identifies one of the two paddle rows.
type Side string

const (
	SideBottom Side = "bottom"
	SideTop    Side = "top"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBottom {
		return SideTop
	}
	return SideBottom
}

// Direction is a paddle movement axis along x.
type Direction string

const (
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

// Paddle is one player's paddle. Movement intents are flags consumed on the
// next tick, never applied mid-tick.
type Paddle struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Speed       float64 `json:"speed"`
	MovingLeft  bool    `json:"movingLeft"`
	MovingRight bool    `json:"movingRight"`
	HitCount    int     `json:"hitCount"`
}

// NewPaddle returns a centered paddle for the given side and variant.
func NewPaddle(side Side, variant Variant) *Paddle {
	width := PaddleWidth
	if variant == VariantRandom {
		width = PaddleWidth * 2
	}
	y := 0.0
	if side == SideBottom {
		y = 1 - PaddleHeight
	}
	return &Paddle{
		X:      0.5 - width/2,
		Y:      y,
		Width:  width,
		Height: PaddleHeight,
		Speed:  PaddleSpeed,
	}
}

// Advance applies the paddle's movement intent for one tick and clamps the
// result to the board. Left wins when both intents are somehow set.
func (p *Paddle) Advance() {
	if p.MovingLeft {
		p.X -= p.Speed
	} else if p.MovingRight {
		p.X += p.Speed
	}
	if p.X > 1-p.Width {
		p.X = 1 - p.Width
	}
	if p.X < 0 {
		p.X = 0
	}
}

// Ball is the match ball. Velocity is polar: a scalar speed plus an angle in
// radians on [0, 2π).
type Ball struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Angle  float64 `json:"angle"`
	Speed  float64 `json:"speed"`
}

// NewBall returns a stationary ball at the board center.
func NewBall() *Ball {
	return &Ball{X: 0.5, Y: 0.5, Radius: BallRadius}
}

// PlayerIdentity is the already-authenticated identity attached to a
// participant; resolving it is the session collaborator's job.
type PlayerIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Result is the final outcome of a match, handed off exactly once to the
// external history service.
type Result struct {
	RoomID      string
	Winner      PlayerIdentity
	Loser       PlayerIdentity
	WinnerScore int
	LoserScore  int
	Forfeit     bool
}
