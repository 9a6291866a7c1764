package world

import (
	"sync"

	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
)

// Filter is the collision filter attached to an object or a query. Group is
// the category the object belongs to, Mask the set of categories it interacts
// with.
type Filter struct {
	Group uint32
	Mask  uint32
}

// RayHit is the result of a ray test.
type RayHit struct {
	// Object is the collision object the ray hit.
	Object *Object
	// Point is the world-space hit position.
	Point mgl32.Vec3
	// Normal is the surface normal at the hit position.
	Normal mgl32.Vec3
	// Fraction is the hit distance as a fraction of the ray length.
	Fraction float32
}

// SweepHit is the result of a convex sweep test.
type SweepHit struct {
	Object   *Object
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	Fraction float32
}

// Contact describes a single overlap reported by a contact test.
type Contact struct {
	Object *Object
	Point  mgl32.Vec3
	Normal mgl32.Vec3
	Depth  float32
}

// Index is the spatial index the scheduler arbitrates access to. The
// implementation is free to organize storage however it wants; the scheduler
// treats it as an opaque shared resource and guarantees that mutating calls
// never run concurrently with anything else.
type Index interface {
	// AddObject inserts a collision object with the given filter.
	AddObject(obj *Object, filter Filter)
	// RemoveObject removes a previously added collision object.
	RemoveObject(obj *Object)
	// UpdateAabb recommits the object's bounds after its position changed.
	UpdateAabb(obj *Object)
	// SetFilterMask replaces the collision mask of an object in place.
	SetFilterMask(obj *Object, mask uint32)

	// RayTest casts a ray and reports the closest hit among objects matching
	// the filter. ok is false when nothing was hit.
	RayTest(from, to mgl32.Vec3, filter Filter) (hit RayHit, ok bool)
	// RayTestTarget casts a ray from the given point towards the center of
	// target, testing only against target. ok is false when the ray misses,
	// which can happen when from is already inside the target's bounds.
	RayTestTarget(from mgl32.Vec3, target *Object) (hit RayHit, ok bool)
	// ConvexSweepTest sweeps a box from one position to another and reports
	// the first hit along the way.
	ConvexSweepTest(shape cube.BBox, from, to mgl32.Vec3, filter Filter) (hit SweepHit, ok bool)
	// AabbTest visits every object whose bounds overlap the given box until
	// visit returns false.
	AabbTest(min, max mgl32.Vec3, visit func(obj *Object) bool)
	// ContactTest visits every contact between obj and the rest of the index
	// until visit returns false.
	ContactTest(obj *Object, visit func(contact Contact) bool)

	// ConcurrentReads reports whether the index tolerates concurrent
	// read-only queries. Probed once at scheduler construction.
	ConcurrentReads() bool
}

// Object is the collision-index handle of a single physical body. The
// scheduler commits positions into it; index implementations read its bounds
// when queried.
type Object struct {
	// mu protects all the following fields.
	mu sync.Mutex
	// position is the world-space origin of the object.
	position mgl32.Vec3
	// box is the object's bounds relative to its origin.
	box cube.BBox
	// filter is the group/mask pair the object was registered with.
	filter Filter
}

// NewObject creates a collision object with the given local-space bounds.
func NewObject(box cube.BBox, filter Filter) *Object {
	return &Object{box: box, filter: filter}
}

// Position returns the world-space origin of the object.
func (o *Object) Position() mgl32.Vec3 {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.position
}

// SetPosition moves the object's origin. The index is not notified; callers
// commit the move through Index.UpdateAabb.
func (o *Object) SetPosition(pos mgl32.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.position = pos
}

// Bounds returns the object's world-space bounding box.
func (o *Object) Bounds() cube.BBox {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.box.Translate(o.position)
}

// Filter returns the object's current collision filter.
func (o *Object) Filter() Filter {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.filter
}

// SetMask replaces the object's collision mask. Index implementations call
// this from SetFilterMask to keep the handle in sync.
func (o *Object) SetMask(mask uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.filter.Mask = mask
}
