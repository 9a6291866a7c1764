package entity

import (
	"sync"

	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/embervale/physics/game"
	"github.com/embervale/physics/world"
)

// Prop is a movable piece of scenery, such as a door or a platform. Position
// changes are queued and only written into the collision index when the
// scheduler commits them, so animation code can move props at any time
// without touching the index.
type Prop struct {
	// mu protects all the following fields.
	mu sync.Mutex
	// position is the committed position.
	position mgl32.Vec3
	// queued is the pending position, valid while dirty is set.
	queued mgl32.Vec3
	dirty  bool

	collisionObject *world.Object
}

// NewProp creates a prop with the given local-space bounds, registered in the
// world geometry category.
func NewProp(position mgl32.Vec3, box cube.BBox) *Prop {
	p := &Prop{position: position}
	p.collisionObject = world.NewObject(box, world.Filter{Group: game.ColWorld, Mask: game.ColDefault})
	p.collisionObject.SetPosition(position)
	return p
}

// Position returns the last committed position.
func (p *Prop) Position() mgl32.Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.position
}

// SetPosition queues a position change to be committed by the scheduler.
func (p *Prop) SetPosition(pos mgl32.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queued = pos
	p.dirty = true
}

// CollisionObject returns the prop's handle in the collision index.
func (p *Prop) CollisionObject() *world.Object {
	return p.collisionObject
}

// CommitPosition applies the queued position change, if any.
func (p *Prop) CommitPosition() {
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
