package game

import "time"

// All gameplay constants are compile-time parameters. The playfield is a unit
// square: x and y run from 0 to 1, with the bottom paddle at y=1 and the top
// paddle at y=0. Speeds are expressed in board units per tick.
const (
	// TicksPerSecond is the simulation rate, chosen as a smooth-animation
	// tradeoff against bandwidth.
	TicksPerSecond = 36

	// TickInterval is the fixed simulation step (~27.8ms).
	TickInterval = time.Second / TicksPerSecond

	// BallSpeed is the base ball speed; a ball at base speed crosses 60% of
	// the board per second.
	BallSpeed = 0.6 / TicksPerSecond

	// BallSpeedIncrement is added on every bounce, up to MaxBallSpeed.
	BallSpeedIncrement = BallSpeed / 10

	// MaxBallSpeed caps the rally speed ramp at twice the base speed.
	MaxBallSpeed = BallSpeed * 2

	BallRadius = 0.015

	PaddleSpeed  = 1.0 / TicksPerSecond
	PaddleWidth  = 0.2
	PaddleHeight = 0.02

	// WinScore ends the match when either side reaches it.
	WinScore = 10

	// CountdownSeconds is the pause between a point and the next relaunch.
	CountdownSeconds = 3

	// wallEpsilon keeps a bounced ball strictly inside the boundary so the
	// same wall cannot re-trigger on the next tick.
	wallEpsilon = 0.001

	// maxFaceBounce clamps the paddle-face bounce angle to 95% of a quarter
	// turn; a perfectly horizontal ball could never reach a goal row.
	maxFaceBounce = 0.95

	// minShrinkFactor is the smallest fraction of the maximum width a
	// randomized paddle can shrink to.
	minShrinkFactor = 0.1
)
