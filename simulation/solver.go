// Package simulation provides a minimal kinematic movement solver. It exists
// so the scheduler is runnable end to end out of the box; engines with their
// own movement model inject that instead.
package simulation

import (
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"

	physics "github.com/embervale/physics"
	"github.com/embervale/physics/game"
	"github.com/embervale/physics/world"
)

const (
	// DefaultGravity is the downward acceleration in units per second².
	DefaultGravity = float32(9.81)

	// groundProbe is how far below the new position the solver looks for
	// ground to snap to.
	groundProbe = float32(0.25)

	// slopeNormalY is the minimum upward component of a ground normal that
	// still counts as standable; anything shallower is a slope.
	slopeNormalY = float32(0.707)

	// unstuckNudge is the vertical correction applied per frame while an
	// actor overlaps world geometry.
	unstuckNudge = float32(0.05)

	// swimDrag scales movement intent while underwater.
	swimDrag = float32(0.6)
)

// Solver integrates actor movement with gravity, a downward ground probe and
// simple overlap correction. It only issues queries against the collision
// index; the scheduler owns the locking.
type Solver struct {
	// Gravity is the downward acceleration. Zero means DefaultGravity.
	Gravity float32
}

func (s *Solver) gravity() float32 {
	if s.Gravity == 0 {
		return DefaultGravity
	}
	return s.Gravity
}

// Move advances the actor's position by one step of dt seconds.
func (s *Solver) Move(d *physics.ActorFrameData, dt float32, index world.Index, worldData *physics.WorldFrameData) {
	if d.Flying {
		d.Position = d.Position.Add(d.Velocity.Mul(dt))
		d.IsOnGround = false
		d.StandingOn = nil
		d.Inertia = mgl32.Vec3{}
		return
	}

	if d.Position.Y() < d.SwimLevel {
		if d.WalkingOnWater {
			d.Position[1] = d.SwimLevel
		} else {
			d.Position = d.Position.Add(d.Velocity.Mul(dt * swimDrag))
			d.IsOnGround = false
			d.StandingOn = nil
			d.Inertia = mgl32.Vec3{}
			return
		}
	}

	oldY := d.Position.Y()

	d.Position[0] += d.Velocity.X() * dt
	d.Position[2] += d.Velocity.Z() * dt

	vertical := d.Velocity.Y() + d.Inertia.Y() - s.gravity()*dt
	newY := oldY + vertical*dt

	from := mgl32.Vec3{d.Position.X(), oldY + d.HalfExtents.Y(), d.Position.Z()}
	to := mgl32.Vec3{d.Position.X(), newY - groundProbe, d.Position.Z()}

	hit, ok := index.RayTest(from, to, world.Filter{
		Group: game.ColActor,
		Mask:  game.ColWorld | game.ColHeightMap,
	})
	if ok && hit.Point.Y() >= newY {
		d.Position[1] = hit.Point.Y()
		d.IsOnGround = hit.Normal.Y() >= slopeNormalY
		d.IsOnSlope = !d.IsOnGround
		d.StandingOn = hit.Object
		d.Inertia = mgl32.Vec3{}
		worldData.Touch(hit.Object)
		return
	}

	d.Position[1] = newY
	d.IsOnGround = false
	d.IsOnSlope = false
	d.StandingOn = nil
	d.Inertia = mgl32.Vec3{0, vertical, 0}
}

// Unstuck nudges an actor upwards while its collision box overlaps world
// geometry, tracking how long it has been stuck.
func (s *Solver) Unstuck(d *physics.ActorFrameData, index world.Index) {
	box := cube.Box(
		-d.HalfExtents.X(), 0, -d.HalfExtents.Z(),
		d.HalfExtents.X(), d.HalfExtents.Y()*2, d.HalfExtents.Z(),
	).Translate(d.Position)

	stuck := false
	index.AabbTest(box.Min(), box.Max(), func(obj *world.Object) bool {
		if obj.Filter().Group&(game.ColWorld|game.ColHeightMap) == 0 {
			return true
		}
		if !obj.Bounds().IntersectsWith(box) {
			return true
		}
		stuck = true
		return false
	})

	if !stuck {
		d.StuckFrames = 0
		return
	}

	if d.StuckFrames == 0 {
		d.LastStuckPosition = d.Position
	}
	d.StuckFrames++
	d.Position[1] += unstuckNudge
}
