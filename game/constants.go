package game

// Collision filter categories. Every collision object belongs to exactly one
// category and carries a mask of the categories it collides with.
const (
	ColWorld = uint32(1) << iota
	ColDoor
	ColHeightMap
	ColActor
	ColProjectile
	ColWater
)

// ColDefault is the mask used by objects that collide with everything solid.
const ColDefault = ColWorld | ColDoor | ColHeightMap | ColActor

// ColSight is the mask used for line-of-sight rays: only terrain, world
// geometry and doors block vision.
const ColSight = ColWorld | ColHeightMap | ColDoor

const (
	// DefaultStepDuration is the fixed simulation step size in seconds.
	DefaultStepDuration = float32(1.0 / 60.0)

	// MaxSimulationSteps caps the number of steps simulated in one frame.
	MaxSimulationSteps = 10

	// BudgetBusyRatio is the measured-cost/step-size ratio above which the
	// scheduler runs a single step per frame.
	BudgetBusyRatio = float32(0.95)

	// BudgetIdleRatio is the ratio below which the step cap scales with the
	// inverse of the measured cost.
	BudgetIdleRatio = float32(0.5)

	// MinBudgetRatio keeps the budget ratio away from zero before dividing.
	MinBudgetRatio = float32(0.00001)

	// EyeHeightFactor positions line-of-sight ray endpoints as a fraction of
	// an actor's half height above its origin.
	EyeHeightFactor = float32(0.9)
)
