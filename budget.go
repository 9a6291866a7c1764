package physics

import "github.com/chewxy/math32"

// budgetSmoothing weights the most recent frames so the estimate tracks
// roughly the last ten of them.
const budgetSmoothing = float32(0.1)

// TimeBudget tracks the smoothed wall-clock cost of a single simulation step.
// The scheduler keeps two: one for synchronous execution and one for the
// background workers.
type TimeBudget struct {
	value  float32
	base   float32
	sample float32
	cursor uint64
}

// NewTimeBudget returns a budget seeded with the given initial estimate.
func NewTimeBudget(initial float32) TimeBudget {
	return TimeBudget{value: initial, base: initial}
}

// Update folds a measurement of stepCount steps taking measured seconds into
// the estimate. The cursor identifies the simulation frame the measurement
// belongs to: updates sharing a cursor are partial measurements of the same
// frame and accumulate into one sample instead of advancing the average twice.
func (b *TimeBudget) Update(measured float32, stepCount int, cursor uint64) {
	if stepCount <= 0 || measured < 0 {
		return
	}

	perStep := measured / float32(stepCount)
	if cursor != b.cursor {
		b.cursor = cursor
		b.base = b.value
		b.sample = 0
	}
	b.sample += perStep
	b.value = math32.Max(0, b.base*(1-budgetSmoothing)+b.sample*budgetSmoothing)
}

// Get returns the current smoothed cost-per-step estimate in seconds.
func (b *TimeBudget) Get() float32 {
	return b.value
}

// Reset discards all history and seeds the estimate with initial.
func (b *TimeBudget) Reset(initial float32) {
	b.value = initial
	b.base = initial
	b.sample = 0
}
