package entity

import (
	"testing"

	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
)

func TestActorApplyIntegratedPosition(t *testing.T) {
	a := NewActor(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})

	if a.ApplyIntegratedPosition(mgl32.Vec3{0, 0, 0}) {
		t.Fatal("unchanged position reported as moved")
	}
	if !a.ApplyIntegratedPosition(mgl32.Vec3{1, 0, 0}) {
		t.Fatal("changed position not reported as moved")
	}
	if a.PreviousPosition() != (mgl32.Vec3{0, 0, 0}) {
		t.Fatalf("previous position not rotated, got %v", a.PreviousPosition())
	}
	if a.Position() != (mgl32.Vec3{1, 0, 0}) {
		t.Fatalf("position not applied, got %v", a.Position())
	}
}

func TestActorSetPositionResetsInterpolation(t *testing.T) {
	a := NewActor(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})
	a.ApplyIntegratedPosition(mgl32.Vec3{1, 0, 0})

	a.SetPosition(mgl32.Vec3{50, 0, 0})
	if a.PreviousPosition() != (mgl32.Vec3{50, 0, 0}) {
		t.Fatal("teleport must not leave a stale interpolation origin")
	}
	if a.SimulationPosition() != (mgl32.Vec3{50, 0, 0}) {
		t.Fatal("teleport must snap the render position")
	}
}

func TestActorEyePosition(t *testing.T) {
	a := NewActor(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{0.5, 2, 0.5})

	eye := a.EyePosition()
	if eye.Y() <= 10 || eye.Y() >= 12 {
		t.Fatalf("eye height %v outside the actor's upper body", eye.Y())
	}
}

func TestActorCommitPosition(t *testing.T) {
	a := NewActor(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.5, 1, 0.5})
	a.ApplyIntegratedPosition(mgl32.Vec3{3, 4, 5})

	a.CommitPosition()
	if a.CollisionObject().Position() != (mgl32.Vec3{3, 4, 5}) {
		t.Fatalf("collision object not moved, at %v", a.CollisionObject().Position())
	}
}

func TestPropQueuesPositionChanges(t *testing.T) {
	p := NewProp(mgl32.Vec3{0, 0, 0}, cube.Box(-1, 0, -1, 1, 2, 1))

	p.SetPosition(mgl32.Vec3{5, 0, 0})
	if p.CollisionObject().Position() != (mgl32.Vec3{0, 0, 0}) {
		t.Fatal("queued move leaked into the collision object before commit")
	}

	p.CommitPosition()
	if p.Position() != (mgl32.Vec3{5, 0, 0}) {
		t.Fatalf("commit did not apply the queued position, got %v", p.Position())
	}
	if p.CollisionObject().Position() != (mgl32.Vec3{5, 0, 0}) {
		t.Fatal("commit did not reach the collision object")
	}
}

func TestProjectileDeactivate(t *testing.T) {
	p := NewProjectile(mgl32.Vec3{0, 0, 0}, 0.1)
	if !p.Active() {
		t.Fatal("new projectile must be active")
	}
	p.Deactivate()
	if p.Active() {
		t.Fatal("projectile still active after a hit")
	}
}

func TestActorIDsUnique(t *testing.T) {
	a := NewActor(mgl32.Vec3{}, mgl32.Vec3{0.5, 1, 0.5})
	b := NewActor(mgl32.Vec3{}, mgl32.Vec3{0.5, 1, 0.5})
	if a.ID() == b.ID() {
		t.Fatal("actor identifiers must be unique")
	}
}
