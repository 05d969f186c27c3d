package game

import (
	"math"
	"math/rand"
)

// Outcome is what happened to the ball during one tick. Exactly one outcome
// occurs per tick.
type Outcome int

const (
	// OutcomeMoved means the ball advanced freely.
	OutcomeMoved Outcome = iota
	// OutcomeBounced means the ball reflected off a wall or paddle.
	OutcomeBounced
	// OutcomeGoalBottom means the ball crossed the bottom row; the top
	// player scores.
	OutcomeGoalBottom
	// OutcomeGoalTop means the ball crossed the top row; the bottom player
	// scores.
	OutcomeGoalTop
)

// RandomAngle draws a launch angle that always heads toward a goal row.
// Angles within ±45° of horizontal are rejected so a rally cannot stall
// sliding along one wall.
func RandomAngle(rng *rand.Rand) float64 {
	angle := 0.0
	for angle < 0.25*math.Pi ||
		(angle > 0.75*math.Pi && angle < 1.25*math.Pi) ||
		angle > 1.75*math.Pi {
		angle = float64(rng.Intn(360)) * math.Pi / 180
	}
	return angle
}

// Relaunch gives the ball a fresh random angle at base speed for a new point.
func Relaunch(b *Ball, rng *rand.Rand) {
	b.Angle = RandomAngle(rng)
	b.Speed = BallSpeed
}

// ResetBall parks the ball at the board center with zero velocity, pending
// the next relaunch.
func ResetBall(b *Ball) {
	b.X = 0.5
	b.Y = 0.5
	b.Angle = 0
	b.Speed = 0
}

// StepBall advances the ball one tick against both paddles and the side
// walls. Collision checks run against the projected position in priority
// order: bottom paddle, top paddle, side wall. The first hit wins; any bounce
// ramps the speed toward MaxBallSpeed. Goal detection runs first, on the
// committed position from the previous tick.
func StepBall(b *Ball, bottom, top *Paddle, variant Variant, rng *rand.Rand) Outcome {
	if b.Y+b.Radius >= 1 {
		return OutcomeGoalBottom
	}
	if b.Y-b.Radius <= 0 {
		return OutcomeGoalTop
	}

	vx := b.Speed * math.Cos(b.Angle)
	vy := b.Speed * math.Sin(b.Angle)

	if collideBottomPaddle(b, bottom, vx, vy, variant, rng) ||
		collideTopPaddle(b, top, vx, vy, variant, rng) ||
		collideWall(b, vx) {
		b.Speed += BallSpeedIncrement
		if b.Speed > MaxBallSpeed {
			b.Speed = MaxBallSpeed
		}
		return OutcomeBounced
	}

	b.X += vx
	b.Y += vy
	return OutcomeMoved
}

// collideWall bounces the ball off the side walls, clamping it just inside
// the boundary so the bounce cannot re-trigger.
func collideWall(b *Ball, vx float64) bool {
	fx := b.X + vx
	if fx+b.Radius < 1 && fx-b.Radius > 0 {
		return false
	}
	if fx+b.Radius >= 1 {
		b.X = 1 - b.Radius - wallEpsilon
	} else {
		b.X = b.Radius + wallEpsilon
	}
	reflectVertical(b)
	return true
}

// collideBottomPaddle checks the projected ball position against the bottom
// paddle: first the short left/right edges (hit while approaching from the
// side, reflected like a wall), then the long top face.
func collideBottomPaddle(b *Ball, p *Paddle, vx, vy float64, variant Variant, rng *rand.Rand) bool {
	fx := b.X + vx
	fy := b.Y + vy

	switch {
	case fy+b.Radius >= p.Y && fx+b.Radius >= p.X && fx+b.Radius <= p.X+vx:
		b.X = p.X - b.Radius
		touchPaddle(p, variant, rng)
		reflectVertical(b)
		return true
	case fy+b.Radius >= p.Y && fx-b.Radius <= p.X+p.Width && fx-b.Radius >= p.X+p.Width-vx:
		b.X = p.X + p.Width + b.Radius
		touchPaddle(p, variant, rng)
		reflectVertical(b)
		return true
	case (fx-b.Radius > p.X && fx-b.Radius < p.X+p.Width) ||
		(fx+b.Radius > p.X && fx+b.Radius < p.X+p.Width):
		if fy+b.Radius > p.Y {
			b.Y = p.Y - b.Radius
			touchPaddle(p, variant, rng)
			reflectOffFace(b, p)
			return true
		}
	}
	return false
}

// collideTopPaddle mirrors collideBottomPaddle for the top paddle.
func collideTopPaddle(b *Ball, p *Paddle, vx, vy float64, variant Variant, rng *rand.Rand) bool {
	fx := b.X + vx
	fy := b.Y + vy

	switch {
	case fy-b.Radius <= p.Y+p.Height && fx+b.Radius >= p.X && fx+b.Radius <= p.X+vx:
		b.X = p.X - b.Radius
		touchPaddle(p, variant, rng)
		reflectVertical(b)
		return true
	case fy-b.Radius <= p.Y+p.Height && fx-b.Radius <= p.X+p.Width && fx-b.Radius >= p.X+p.Width-vx:
		b.X = p.X + p.Width + b.Radius
		touchPaddle(p, variant, rng)
		reflectVertical(b)
		return true
	case (fx-b.Radius > p.X && fx-b.Radius < p.X+p.Width) ||
		(fx+b.Radius > p.X && fx+b.Radius < p.X+p.Width):
		if fy-b.Radius <= p.Y+p.Height {
			b.Y = p.Y + p.Height + b.Radius
			touchPaddle(p, variant, rng)
			reflectOffFace(b, p)
			return true
		}
	}
	return false
}

// reflectVertical reflects the ball angle off a vertical surface by rotating
// it a quarter turn into the adjacent quadrant.
func reflectVertical(b *Ball) {
	switch {
	case b.Angle <= 0.5*math.Pi:
		b.Angle += 0.5 * math.Pi
	case b.Angle <= math.Pi:
		b.Angle -= 0.5 * math.Pi
	case b.Angle <= 1.5*math.Pi:
		b.Angle += 0.5 * math.Pi
	default:
		b.Angle -= 0.5 * math.Pi
	}
}

// reflectOffFace reflects the ball off a paddle's long face. The bounce angle
// grows with distance from the paddle center: straight back at the center,
// approaching (but clamped below) a quarter turn at the edge.
func reflectOffFace(b *Ball, p *Paddle) {
	distToCenter := math.Abs(b.X - (p.X + p.Width/2))
	bounce := 0.5 * math.Pi * (distToCenter / (p.Width / 2))
	if bounce > maxFaceBounce*0.5*math.Pi {
		bounce = maxFaceBounce * 0.5 * math.Pi
	}

	switch {
	case b.Angle <= 0.5*math.Pi:
		b.Angle = 1.5*math.Pi + bounce
	case b.Angle <= math.Pi:
		b.Angle = 1.5*math.Pi - bounce
	case b.Angle <= 1.5*math.Pi:
		b.Angle = 0.5*math.Pi + bounce
	default:
		b.Angle = 0.5*math.Pi - bounce
	}
}

// touchPaddle applies the contact side effect for the match variant: in
// VariantRandom every contact re-randomizes the paddle width to a fraction
// of its maximum, never below minShrinkFactor.
func touchPaddle(p *Paddle, variant Variant, rng *rand.Rand) {
	if variant != VariantRandom {
		return
	}
	p.HitCount++
	factor := rng.Float64()
	for factor < minShrinkFactor {
		factor = rng.Float64()
	}
	p.Width = PaddleWidth * 2 * factor
}
