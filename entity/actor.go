package entity

import (
	"sync"
	"sync/atomic"

	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/embervale/physics/game"
	"github.com/embervale/physics/world"
)

var actorIDs atomic.Uint64

// Actor is a simulated physical body capable of independent movement. Its
// state is shared between the scheduler, which mutates it while a frame is
// being drained, and the owning subsystem, which reads interpolated positions
// for rendering.
type Actor struct {
	// mu protects all the following fields.
	mu sync.Mutex
	// position is the authoritative, fully-integrated position.
	position mgl32.Vec3
	// previousPosition is the position before the most recent integration
	// step, kept for rendering interpolation.
	previousPosition mgl32.Vec3
	// simulationPosition is the interpolated position published to the
	// renderer each frame.
	simulationPosition mgl32.Vec3
	// halfExtents is half the actor's collision box size on each axis.
	halfExtents mgl32.Vec3
	// inertia is the force carried between frames while airborne.
	inertia mgl32.Vec3
	// standingOn is the physical object the actor currently stands on, if any.
	standingOn Holder
	// onGround, onSlope and walkingOnWater mirror the last integrated state.
	onGround       bool
	onSlope        bool
	walkingOnWater bool
	// stuckFrames counts consecutive frames the actor spent overlapping
	// geometry; lastStuckPosition is where that started.
	stuckFrames       uint32
	lastStuckPosition mgl32.Vec3

	collisionObject *world.Object
	id              uint64
}

// NewActor creates an actor at the given position. halfExtents is half the
// collision box size on each axis; the box is centered on the origin
// horizontally and extends upwards from it.
func NewActor(position, halfExtents mgl32.Vec3) *Actor {
	a := &Actor{
		position:           position,
		previousPosition:   position,
		simulationPosition: position,
		halfExtents:        halfExtents,
		id:                 actorIDs.Add(1),
	}
	a.collisionObject = world.NewObject(cube.Box(
		-halfExtents.X(), 0, -halfExtents.Z(),
		halfExtents.X(), halfExtents.Y()*2, halfExtents.Z(),
	), world.Filter{Group: game.ColActor, Mask: game.ColDefault})
	a.collisionObject.SetPosition(position)
	return a
}

// ID returns the actor's process-unique identifier.
func (a *Actor) ID() uint64 {
	return a.id
}

// Position returns the authoritative position.
func (a *Actor) Position() mgl32.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.position
}

// SetPosition teleports the actor, resetting interpolation so the renderer
// does not blend across the jump.
func (a *Actor) SetPosition(pos mgl32.Vec3) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.position = pos
	a.previousPosition = pos
	a.simulationPosition = pos
}

// ApplyIntegratedPosition rotates the previous position and stores pos as the
// current one, reporting whether the position actually changed.
func (a *Actor) ApplyIntegratedPosition(pos mgl32.Vec3) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	moved := a.position != pos
	a.previousPosition = a.position
	a.position = pos
	return moved
}

// PreviousPosition returns the position before the most recent step.
func (a *Actor) PreviousPosition() mgl32.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.previousPosition
}

// SimulationPosition returns the interpolated position for rendering.
func (a *Actor) SimulationPosition() mgl32.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.simulationPosition
}

// SetSimulationPosition publishes the interpolated position for this frame.
func (a *Actor) SetSimulationPosition(pos mgl32.Vec3) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.simulationPosition = pos
}

// HalfExtents returns half the collision box size on each axis.
func (a *Actor) HalfExtents() mgl32.Vec3 {
	return a.halfExtents
}

// EyePosition returns the point line-of-sight rays originate from and target.
func (a *Actor) EyePosition() mgl32.Vec3 {
	pos := a.Position()
	return pos.Add(mgl32.Vec3{0, a.halfExtents.Y() * game.EyeHeightFactor, 0})
}

// OnGround reports whether the actor stood on solid ground after the last
// integrated step.
func (a *Actor) OnGround() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.onGround
}

func (a *Actor) SetOnGround(onGround bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.onGround = onGround
}

// OnSlope reports whether the actor's ground contact was too steep to stand on.
func (a *Actor) OnSlope() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.onSlope
}

func (a *Actor) SetOnSlope(onSlope bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.onSlope = onSlope
}

// WalkingOnWater reports whether the actor is held on the water surface.
func (a *Actor) WalkingOnWater() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.walkingOnWater
}

func (a *Actor) SetWalkingOnWater(walking bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.walkingOnWater = walking
}

// Inertia returns the force carried between frames while airborne.
func (a *Actor) Inertia() mgl32.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.inertia
}

func (a *Actor) SetInertia(inertia mgl32.Vec3) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.inertia = inertia
}

// StandingOn returns the physical object the actor stands on, or nil.
func (a *Actor) StandingOn() Holder {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.standingOn
}

func (a *Actor) SetStandingOn(holder Holder) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.standingOn = holder
}

// StuckFrames returns how many consecutive frames the actor spent overlapping
// world geometry.
func (a *Actor) StuckFrames() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stuckFrames
}

func (a *Actor) SetStuckFrames(frames uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stuckFrames = frames
}

// LastStuckPosition returns where the current stuck streak started.
func (a *Actor) LastStuckPosition() mgl32.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastStuckPosition
}

func (a *Actor) SetLastStuckPosition(pos mgl32.Vec3) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastStuckPosition = pos
}

// ResetInterpolation snaps the interpolation state to the current position.
// Used on level transitions so the first frame does not blend across one.
func (a *Actor) ResetInterpolation() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.previousPosition = a.position
	a.simulationPosition = a.position
}

// CollisionObject returns the actor's handle in the collision index.
func (a *Actor) CollisionObject() *world.Object {
	return a.collisionObject
}

// CommitPosition writes the authoritative position into the collision object.
func (a *Actor) CommitPosition() {
	a.collisionObject.SetPosition(a.Position())
}
