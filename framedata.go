package physics

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/embervale/physics/entity"
	"github.com/embervale/physics/world"
)

// ActorFrameData is the per-actor snapshot handed to the movement solver for
// one frame. The caller fills in the intent fields before submission; the
// scheduler seeds the state fields from the actor, workers mutate the data
// during integration, and the whole batch is replaced on the next frame.
type ActorFrameData struct {
	// Position is the integrated position, seeded from the actor at frame
	// start and advanced by the solver each step.
	Position mgl32.Vec3
	// Velocity is the movement intent for this frame, decided upstream.
	Velocity mgl32.Vec3
	// HalfExtents is half the actor's collision box size on each axis.
	HalfExtents mgl32.Vec3
	// SwimLevel is the height below which the actor counts as underwater.
	SwimLevel float32
	// SlowFall scales fall damage accumulation; values below 1 suppress it.
	SlowFall float32
	// Flying disables gravity and fall bookkeeping for this frame.
	Flying bool

	// WasOnGround is the actor's ground state at frame start; IsOnGround is
	// the state after the last integrated step.
	WasOnGround bool
	IsOnGround  bool
	// IsOnSlope reports a ground contact too steep to stand on.
	IsOnSlope bool
	// WalkingOnWater reports the actor being held on the water surface.
	WalkingOnWater bool
	// FallHeight accumulates downward travel while airborne.
	FallHeight float32
	// Inertia is the force carried between steps while airborne.
	Inertia mgl32.Vec3
	// StandingOn is the collision object the actor ended the frame standing
	// on; the scheduler resolves it to its owning holder during the drain.
	StandingOn *world.Object
	// LastStuckPosition and StuckFrames carry stuck-detection state between
	// frames.
	LastStuckPosition mgl32.Vec3
	StuckFrames       uint32
	// NeedLand is set when the actor should report a landing instead of
	// accumulating fall height.
	NeedLand bool

	// oldHeight is the actor's height at frame start, for fall accounting.
	oldHeight float32
}

// capture seeds the snapshot from the actor's current state and recommits its
// collision position so every step starts from a consistent index.
func (d *ActorFrameData) capture(a *entity.Actor, g *world.Guard) {
	d.Position = a.Position()
	d.oldHeight = d.Position.Y()
	d.HalfExtents = a.HalfExtents()
	d.WasOnGround = a.OnGround()
	d.IsOnGround = a.OnGround()
	d.IsOnSlope = a.OnSlope()
	d.WalkingOnWater = a.WalkingOnWater()
	d.Inertia = a.Inertia()
	d.LastStuckPosition = a.LastStuckPosition()
	d.StuckFrames = a.StuckFrames()
	d.StandingOn = nil
	d.NeedLand = false
	d.FallHeight = 0

	g.Write(func(index world.Index) {
		a.CommitPosition()
		index.UpdateAabb(a.CollisionObject())
	})
}

func isUnderWater(d *ActorFrameData) bool {
	return d.Position.Y() < d.SwimLevel
}

// handleFall runs once per actor after the final step of a frame. Landing
// conditions set NeedLand; otherwise downward travel accumulates so the drain
// can report it upward.
func handleFall(d *ActorFrameData, simulationPerformed bool) {
	heightDiff := d.Position.Y() - d.oldHeight

	isStillOnGround := simulationPerformed && d.WasOnGround && d.IsOnGround

	if isStillOnGround || d.Flying || isUnderWater(d) || d.SlowFall < 1 {
		d.NeedLand = true
	} else if heightDiff < 0 {
		d.FallHeight += heightDiff
	}
}

// WorldFrameData aggregates world-level bookkeeping produced while actors
// integrate in parallel. One instance exists per advancing frame.
type WorldFrameData struct {
	// mu protects touched.
	mu      sync.Mutex
	touched map[*world.Object]int
}

func NewWorldFrameData() *WorldFrameData {
	return &WorldFrameData{touched: make(map[*world.Object]int)}
}

// Touch records a contact between an integrating actor and obj. Safe to call
// from any worker.
func (w *WorldFrameData) Touch(obj *world.Object) {
	if obj == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.touched[obj]++
}

// Contacts returns how many actor contacts obj received this frame.
func (w *WorldFrameData) Contacts(obj *world.Object) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.touched[obj]
}
