package entity

import "github.com/embervale/physics/world"

// Holder is implemented by every simulated kind that owns a collision object.
// CommitPosition writes the kind's authoritative position into the collision
// object; the scheduler calls it before recommitting the object's bounds, so
// no kind ever needs to be identified by runtime type inspection.
type Holder interface {
	CollisionObject() *world.Object
	CommitPosition()
}
