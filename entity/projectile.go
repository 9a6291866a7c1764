package entity

import (
	"sync"

	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/embervale/physics/game"
	"github.com/embervale/physics/world"
)

// Projectile is a small fast-moving body. Like Prop, position changes are
// queued until the scheduler commits them; unlike actors, projectiles are
// integrated by their owning subsystem and only participate in the collision
// index here.
type Projectile struct {
	// mu protects all the following fields.
	mu       sync.Mutex
	position mgl32.Vec3
	queued   mgl32.Vec3
	dirty    bool
	// active is cleared once the projectile hit something.
	active bool

	collisionObject *world.Object
}

// NewProjectile creates a projectile with a cubic collision box of the given
// radius.
func NewProjectile(position mgl32.Vec3, radius float32) *Projectile {
	p := &Projectile{position: position, active: true}
	p.collisionObject = world.NewObject(cube.Box(
		-radius, -radius, -radius,
		radius, radius, radius,
	), world.Filter{Group: game.ColProjectile, Mask: game.ColDefault})
	p.collisionObject.SetPosition(position)
	return p
}

// Position returns the last committed position.
func (p *Projectile) Position() mgl32.Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.position
}

// SetPosition queues a position change to be committed by the scheduler.
func (p *Projectile) SetPosition(pos mgl32.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queued = pos
	p.dirty = true
}

// Active reports whether the projectile is still in flight.
func (p *Projectile) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active
}

// Deactivate marks the projectile as spent after a hit.
func (p *Projectile) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = false
}

// CollisionObject returns the projectile's handle in the collision index.
func (p *Projectile) CollisionObject() *world.Object {
	return p.collisionObject
}

// CommitPosition applies the queued position change, if any.
func (p *Projectile) CommitPosition() {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	p.position = p.queued
	p.dirty = false
	pos := p.position
	p.mu.Unlock()

	p.collisionObject.SetPosition(pos)
}
