// Package physics implements a frame-synchronized, multi-threaded physics
// simulation scheduler. Each rendered frame it advances a set of actors
// through zero or more fixed-size simulation steps on a pool of worker
// goroutines, sized adaptively from a measured time budget, while keeping the
// shared collision index safely queryable from the owning thread in between.
package physics

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sasha-s/go-deadlock"

	"github.com/embervale/physics/assert"
	"github.com/embervale/physics/barrier"
	"github.com/embervale/physics/entity"
	"github.com/embervale/physics/game"
	"github.com/embervale/physics/world"
)

// MovementSolver integrates a single actor's movement for one step. Move and
// Unstuck are called with the collision index already locked by the
// scheduler; implementations only issue queries against it.
type MovementSolver interface {
	// Move advances data.Position by one step of dt seconds.
	Move(data *ActorFrameData, dt float32, index world.Index, worldData *WorldFrameData)
	// Unstuck nudges an actor out of geometry it ended up overlapping.
	Unstuck(data *ActorFrameData, index world.Index)
}

// MechanicsSink receives fall and landing results once a frame's simulation
// finished. A nil sink discards them.
type MechanicsSink interface {
	// Land reports that the actor finished a fall; inLiquid is true when it
	// ended up flying or underwater rather than on solid ground.
	Land(a *entity.Actor, inLiquid bool)
	// AddFallHeight reports accumulated downward travel, always positive.
	AddFallHeight(a *entity.Actor, height float32)
}

// Options configures a TaskScheduler.
type Options struct {
	// StepDuration is the fixed simulation step size in seconds. Defaults to
	// game.DefaultStepDuration.
	StepDuration float32
	// NumThreads is the worker pool size; 0 runs the simulation on the
	// submitting goroutine. Clamped to 1 when the collision index does not
	// support concurrent reads.
	NumThreads int
	// LOSCacheExpiry is how many frames a line-of-sight result may go
	// without a hit before it is evicted. Forced to 0 when running
	// synchronously.
	LOSCacheExpiry int
	// Solver integrates actor movement. Required.
	Solver MovementSolver
	// Mechanics receives fall/landing results. May be nil.
	Mechanics MechanicsSink
	// Logger receives lifecycle and degradation warnings. May be nil.
	Logger *slog.Logger
}

// FrameStats is the background-computation timing of one completed frame,
// relative to the frame's submission.
type FrameStats struct {
	Frame     uint64
	TimeBegin time.Duration
	TimeTaken time.Duration
	TimeEnd   time.Duration
}

// TaskScheduler owns the worker pool, the per-frame job batch, the adaptive
// step calculator and the public query surface over the collision index.
//
// The simulation mutex is held shared by every worker for the whole
// processing region of a frame, so SubmitFrame, which locks it exclusively,
// naturally blocks until the previous batch fully completed.
type TaskScheduler struct {
	defaultStep float32

	guard     *world.Guard
	solver    MovementSolver
	mechanics MechanicsSink
	log       *slog.Logger

	numThreads int

	// simMutex guards all the frame state below. Workers hold it shared
	// while processing; the owning thread holds it exclusively while
	// publishing a batch.
	simMutex deadlock.RWMutex
	hasJob   *sync.Cond

	quit              bool
	newFrame          bool
	advanceSimulation bool

	stepDt    float32
	timeAccum float32

	actors    []*entity.Actor
	frameData []ActorFrameData
	worldData *WorldFrameData

	// numJobs and remainingSteps are written only while the batch is gated:
	// by the owning thread under the exclusive lock, or by a single worker
	// inside a barrier callback with every other worker rendezvoused.
	numJobs        int
	remainingSteps int
	nextJob        atomic.Int32
	prevStepCount  int

	preStepBarrier  *barrier.Barrier
	postStepBarrier *barrier.Barrier
	postSimBarrier  *barrier.Barrier
	wg              sync.WaitGroup

	// wake counts workers that still have to re-acquire the shared lock after
	// a broadcast. The owning thread waits for it to drain before requesting
	// the exclusive lock again: a queued writer blocks any late worker's read
	// lock while its siblings hold theirs waiting for it at the pre-step
	// barrier, and the three would deadlock.
	wake sync.WaitGroup

	budget       TimeBudget
	asyncBudget  TimeBudget
	budgetCursor uint64

	losCache *losCache

	// registry resolves collision objects back to their owning holders.
	// Mutated and read from the owning thread only.
	registry *orderedmap.OrderedMap[*world.Object, entity.Holder]

	// aabbMutex guards updateAabb, the set of holders with deferred bounds
	// commits.
	aabbMutex  deadlock.Mutex
	updateAabb map[entity.Holder]struct{}

	frameStart     time.Time
	timeBegin      time.Time
	timeEnd        time.Time
	asyncStartTime time.Time
	frameNumber    uint64
	lastStats      FrameStats
	statsValid     bool
}

// New creates a scheduler over the given collision index and starts its
// worker pool. The index's concurrent-read capability is probed once here; if
// it is absent and more than one worker was requested, the scheduler logs a
// warning and clamps to a single worker.
func New(index world.Index, opts Options) *TaskScheduler {
	assert.IsTrue(index != nil, "physics: nil collision index")
	assert.IsTrue(opts.Solver != nil, "physics: nil movement solver")

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	step := opts.StepDuration
	if step <= 0 {
		step = game.DefaultStepDuration
	}

	guard := world.NewGuard(index)

	numThreads := opts.NumThreads
	if numThreads < 0 {
		numThreads = 0
	}
	if !guard.Concurrent() && numThreads > 1 {
		log.Warn("collision index does not support concurrent reads, using a single simulation thread",
			"requested", numThreads)
		numThreads = 1
	}

	losExpiry := opts.LOSCacheExpiry
	if numThreads < 1 {
		losExpiry = 0
	}

	s := &TaskScheduler{
		defaultStep:   step,
		stepDt:        step,
		guard:         guard,
		solver:        opts.Solver,
		mechanics:     opts.Mechanics,
		log:           log,
		numThreads:    numThreads,
		prevStepCount: 1,
		budget:        NewTimeBudget(step),
		asyncBudget:   NewTimeBudget(0),
		losCache:      newLOSCache(losExpiry),
		registry:      orderedmap.NewOrderedMap[*world.Object, entity.Holder](),
		updateAabb:    make(map[entity.Holder]struct{}),
	}
	s.hasJob = sync.NewCond(s.simMutex.RLocker())
	s.preStepBarrier = barrier.New(numThreads)
	s.postStepBarrier = barrier.New(numThreads)
	s.postSimBarrier = barrier.New(numThreads)

	for i := 0; i < numThreads; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Close signals all workers to exit and joins them. In-flight work is not
// cancelled; the current batch drains with its counters zeroed.
func (s *TaskScheduler) Close() {
	s.wake.Wait()

	s.simMutex.Lock()
	s.quit = true
	s.numJobs = 0
	s.remainingSteps = 0
	s.wake.Add(s.numThreads)
	s.simMutex.Unlock()

	s.hasJob.Broadcast()
	s.wg.Wait()
}

// calculateStepConfig decides how many steps to run this frame and at what
// size, from the accumulated unsimulated time and the measured budgets.
func (s *TaskScheduler) calculateStepConfig(timeAccum float32) (int, float32) {
	// Adjust the step cap based on whether we are likely physics
	// bottlenecked or not. With a fixed cap we would render unnecessarily
	// slowly when only physics is expensive, and fall back to delta time
	// unnecessarily when only rendering is.
	maxAllowedSteps := 2
	numSteps := int(timeAccum / s.defaultStep)

	// Measured cost per step in terms of the intended step size.
	budgetMeasurement := math32.Max(s.budget.Get(), s.asyncBudget.Get())
	budgetMeasurement /= s.defaultStep
	budgetMeasurement = math32.Max(game.MinBudgetRatio, budgetMeasurement)

	// Spending almost or more than realtime per step: limit to a single one.
	if budgetMeasurement > game.BudgetBusyRatio {
		maxAllowedSteps = 1
	}
	// Physics is cheap: limit based on expense instead.
	if budgetMeasurement < game.BudgetIdleRatio {
		maxAllowedSteps = int(math32.Ceil(1.0 / budgetMeasurement))
	}
	if maxAllowedSteps > game.MaxSimulationSteps {
		maxAllowedSteps = game.MaxSimulationSteps
	}

	// Fall back to delta time for this frame if fixed-step simulation would
	// fall behind real time.
	actualDelta := s.defaultStep
	if numSteps > maxAllowedSteps {
		numSteps = maxAllowedSteps
		// Simulate up to exactly the timestamp being rendered, never ahead
		// of it; interpolation then uses the most recent result outright.
		actualDelta = timeAccum / float32(numSteps+1)
		// A per-step delta below the target step would overrun the elapsed
		// time, so clamp it.
		actualDelta = math32.Max(actualDelta, s.defaultStep)
	}

	return numSteps, actualDelta
}

// SubmitFrame hands the scheduler the actor set and per-actor inputs for one
// rendered frame. It first drains the previous frame's background results,
// then publishes the new batch to the workers, or runs it synchronously when
// the pool is empty. Called at most once per rendered frame from the owning
// thread; it blocks only while the previous batch is still simulating.
//
// len(actors) must equal len(frameData); a mismatch is a caller bug and
// panics.
func (s *TaskScheduler) SubmitFrame(actors []*entity.Actor, frameData []ActorFrameData, dt float32, frameNumber uint64) {
	assert.IsTrue(len(actors) == len(frameData),
		"physics: %d actors submitted with %d frame data entries", len(actors), len(frameData))

	// Every worker must hold its read lock again before we may queue for the
	// exclusive one; see the wake field.
	s.wake.Wait()

	// While the simulation mutex is held exclusively, no worker can run.
	s.simMutex.Lock()

	timeStart := time.Now()

	// Finish the previous background computation first.
	if s.numThreads != 0 {
		for i := range s.actors {
			s.updateMechanics(s.actors[i], &s.frameData[i])
			s.updateActor(s.actors[i], &s.frameData[i], s.advanceSimulation, s.timeAccum, s.stepDt)
		}
		if s.advanceSimulation {
			s.asyncBudget.Update(float32(s.timeEnd.Sub(s.asyncStartTime).Seconds()), s.prevStepCount, s.budgetCursor)
		}
		s.updateStats(frameNumber, timeStart)
	}

	s.timeAccum += dt
	numSteps, newDelta := s.calculateStepConfig(s.timeAccum)
	s.timeAccum -= float32(numSteps) * newDelta

	for i := range frameData {
		frameData[i].capture(actors[i], s.guard)
	}

	s.prevStepCount = numSteps
	s.remainingSteps = numSteps
	s.stepDt = newDelta
	s.actors = actors
	s.frameData = frameData
	s.advanceSimulation = numSteps != 0
	s.newFrame = true
	s.numJobs = len(frameData)
	s.losCache.nextJob.Store(0)
	s.nextJob.Store(0)

	if s.advanceSimulation {
		s.worldData = NewWorldFrameData()
		s.budgetCursor++
	}

	if s.numThreads == 0 {
		s.syncComputation()
		if s.advanceSimulation {
			s.budget.Update(float32(time.Since(timeStart).Seconds()), numSteps, s.budgetCursor)
		}
		s.simMutex.Unlock()
		return
	}

	s.asyncStartTime = time.Now()
	s.timeBegin = s.asyncStartTime
	s.wake.Add(s.numThreads)
	s.simMutex.Unlock()
	s.hasJob.Broadcast()

	if s.advanceSimulation {
		s.budget.Update(float32(time.Since(timeStart).Seconds()), 1, s.budgetCursor)
	}
}

// ResetSimulation clears all in-flight per-actor frame data, resets both
// budgets to the default step duration, empties the line-of-sight cache and
// recommits every passed actor's collision position. Used on level
// transitions.
func (s *TaskScheduler) ResetSimulation(actors []*entity.Actor) {
	s.wake.Wait()

	s.simMutex.Lock()
	defer s.simMutex.Unlock()

	s.budget.Reset(s.defaultStep)
	s.asyncBudget.Reset(s.defaultStep)
	s.timeAccum = 0
	s.stepDt = s.defaultStep
	s.actors = nil
	s.frameData = nil
	s.losCache.clear()

	for _, a := range actors {
		a.ResetInterpolation()
		s.guard.Write(func(index world.Index) {
			a.CommitPosition()
			index.UpdateAabb(a.CollisionObject())
		})
	}
}

// RayTest casts a ray through the collision index. ok is false when nothing
// was hit. Safe to call at any time from the owning thread, concurrently with
// ongoing simulation.
func (s *TaskScheduler) RayTest(from, to mgl32.Vec3, filter world.Filter) (world.RayHit, bool) {
	var (
		hit world.RayHit
		ok  bool
	)
	s.guard.Read(func(index world.Index) {
		hit, ok = index.RayTest(from, to, filter)
	})
	return hit, ok
}

// ConvexSweepTest sweeps a box through the collision index and reports the
// first hit along the way.
func (s *TaskScheduler) ConvexSweepTest(shape cube.BBox, from, to mgl32.Vec3, filter world.Filter) (world.SweepHit, bool) {
	var (
		hit world.SweepHit
		ok  bool
	)
	s.guard.Read(func(index world.Index) {
		hit, ok = index.ConvexSweepTest(shape, from, to, filter)
	})
	return hit, ok
}

// ContactTest visits every contact between obj and the rest of the index.
func (s *TaskScheduler) ContactTest(obj *world.Object, visit func(contact world.Contact) bool) {
	s.guard.Read(func(index world.Index) {
		index.ContactTest(obj, visit)
	})
}

// AabbTest visits every collision object overlapping the given box.
func (s *TaskScheduler) AabbTest(min, max mgl32.Vec3, visit func(obj *world.Object) bool) {
	s.guard.Read(func(index world.Index) {
		index.AabbTest(min, max, visit)
	})
}

// GetAabb returns the current world-space bounds of a collision object.
func (s *TaskScheduler) GetAabb(obj *world.Object) cube.BBox {
	var box cube.BBox
	s.guard.Read(func(world.Index) {
		box = obj.Bounds()
	})
	return box
}

// GetHitPoint casts a ray from the given point towards the center of target.
// ok is false when the ray misses, which can happen when from is already
// inside the target's collision box; that is a normal outcome, not an error.
func (s *TaskScheduler) GetHitPoint(from mgl32.Vec3, target *world.Object) (mgl32.Vec3, bool) {
	var (
		hit world.RayHit
		ok  bool
	)
	s.guard.Read(func(index world.Index) {
		hit, ok = index.RayTestTarget(from, target)
	})
	if !ok {
		return mgl32.Vec3{}, false
	}
	return hit.Point, true
}

// AddCollisionObject registers a holder's collision object with the index.
// Owning thread only.
func (s *TaskScheduler) AddCollisionObject(holder entity.Holder, filter world.Filter) {
	obj := holder.CollisionObject()
	s.registry.Set(obj, holder)
	s.guard.Write(func(index world.Index) {
		index.AddObject(obj, filter)
	})
}

// RemoveCollisionObject removes a holder's collision object from the index.
// Owning thread only.
func (s *TaskScheduler) RemoveCollisionObject(holder entity.Holder) {
	obj := holder.CollisionObject()
	s.registry.Delete(obj)
	s.guard.Write(func(index world.Index) {
		index.RemoveObject(obj)
	})
}

// SetCollisionFilterMask replaces the collision mask of an object in place.
func (s *TaskScheduler) SetCollisionFilterMask(obj *world.Object, mask uint32) {
	s.guard.Write(func(index world.Index) {
		index.SetFilterMask(obj, mask)
	})
}

// UpdateSingleAabb commits a holder's position change into the index. When
// workers exist and immediate is false, the commit is deferred to the next
// pre-step barrier so it cannot interleave with in-flight integration.
func (s *TaskScheduler) UpdateSingleAabb(holder entity.Holder, immediate bool) {
	if immediate || s.numThreads == 0 {
		s.updateHolderAabb(holder)
		return
	}

	s.aabbMutex.Lock()
	defer s.aabbMutex.Unlock()

	s.updateAabb[holder] = struct{}{}
}

// HolderOf resolves a collision object back to its owning holder, or nil.
// Owning thread only.
func (s *TaskScheduler) HolderOf(obj *world.Object) entity.Holder {
	holder, ok := s.registry.Get(obj)
	if !ok {
		return nil
	}
	return holder
}

// FrameStats reports the background timing of the most recently completed
// frame. ok is false until two consecutive frames have been submitted.
func (s *TaskScheduler) FrameStats() (FrameStats, bool) {
	s.simMutex.RLock()
	defer s.simMutex.RUnlock()

	return s.lastStats, s.statsValid
}

func (s *TaskScheduler) updateHolderAabb(holder entity.Holder) {
	s.guard.Write(func(index world.Index) {
		holder.CommitPosition()
		index.UpdateAabb(holder.CollisionObject())
	})
}

// updateAabbs flushes the deferred bounds commits. Runs in the pre-step
// barrier callback.
func (s *TaskScheduler) updateAabbs() {
	s.aabbMutex.Lock()
	defer s.aabbMutex.Unlock()

	for holder := range s.updateAabb {
		s.updateHolderAabb(holder)
	}
	clear(s.updateAabb)
}

// updateActorsPositions applies each actor's integrated position after a
// step. If the position coming back from the actor differs from what was
// integrated, an external mover changed it mid-frame; the frame data is
// re-read so the next step starts from the externally chosen position.
func (s *TaskScheduler) updateActorsPositions() {
	for i := range s.actors {
		a := s.actors[i]
		d := &s.frameData[i]
		if a.ApplyIntegratedPosition(d.Position) {
			s.guard.Write(func(index world.Index) {
				d.Position = a.Position()
				a.CommitPosition()
				index.UpdateAabb(a.CollisionObject())
			})
		}
	}
}

// updateMechanics reports a frame's fall/landing outcome upward.
func (s *TaskScheduler) updateMechanics(a *entity.Actor, d *ActorFrameData) {
	if s.mechanics == nil {
		return
	}

	if d.NeedLand {
		s.mechanics.Land(a, d.Flying || isUnderWater(d))
	} else if d.FallHeight < 0 {
		s.mechanics.AddFallHeight(a, -d.FallHeight)
	}
}

// interpolateMovements blends the integrated position with the previous one
// by the fraction of a step left unsimulated, producing the position the
// renderer should draw this frame.
func interpolateMovements(a *entity.Actor, d *ActorFrameData, timeAccum, stepDt float32) mgl32.Vec3 {
	factor := mgl32.Clamp(timeAccum/stepDt, 0, 1)
	return d.Position.Mul(factor).Add(a.PreviousPosition().Mul(1 - factor))
}

// updateActor pushes a frame's results back into the actor during the drain.
func (s *TaskScheduler) updateActor(a *entity.Actor, d *ActorFrameData, simulationPerformed bool, timeAccum, dt float32) {
	a.SetSimulationPosition(interpolateMovements(a, d, timeAccum, dt))
	a.SetLastStuckPosition(d.LastStuckPosition)
	a.SetStuckFrames(d.StuckFrames)

	if simulationPerformed {
		var standingOn entity.Holder
		if d.StandingOn != nil {
			standingOn = s.HolderOf(d.StandingOn)
		}
		a.SetStandingOn(standingOn)
		// A trace-down may have updated the actor's ground state since the
		// frame was captured; don't overwrite that change.
		if a.OnGround() == d.WasOnGround {
			a.SetOnGround(d.IsOnGround)
		}
		a.SetOnSlope(d.IsOnSlope)
		a.SetWalkingOnWater(d.WalkingOnWater)
		a.SetInertia(d.Inertia)
	}
}

// syncComputation runs the whole batch on the submitting goroutine. Used when
// the worker pool is empty.
func (s *TaskScheduler) syncComputation() {
	for s.remainingSteps > 0 {
		s.remainingSteps--

		for i := range s.frameData {
			s.guard.Write(func(index world.Index) {
				s.solver.Unstuck(&s.frameData[i], index)
			})
			s.guard.Read(func(index world.Index) {
				s.solver.Move(&s.frameData[i], s.stepDt, index, s.worldData)
			})
		}

		s.updateActorsPositions()
	}

	for i := range s.actors {
		handleFall(&s.frameData[i], s.advanceSimulation)
		s.updateMechanics(s.actors[i], &s.frameData[i])
		s.updateActor(s.actors[i], &s.frameData[i], s.advanceSimulation, s.timeAccum, s.stepDt)
	}

	s.refreshLOSCache()
	s.losCache.removeStale()
}

// updateStats attributes the background timing of frame N-1 once frame N is
// being submitted. frameStart is the submission timestamp of the new frame;
// timeBegin is recorded separately when the batch is published, so TimeBegin
// covers the drain and capture work done on the owning thread in between.
func (s *TaskScheduler) updateStats(frameNumber uint64, frameStart time.Time) {
	if s.frameNumber == frameNumber-1 && !s.frameStart.IsZero() {
		s.lastStats = FrameStats{
			Frame:     s.frameNumber,
			TimeBegin: s.timeBegin.Sub(s.frameStart),
			TimeTaken: s.timeEnd.Sub(s.timeBegin),
			TimeEnd:   s.timeEnd.Sub(s.frameStart),
		}
		s.statsValid = true
	}
	s.frameStart = frameStart
	s.frameNumber = frameNumber
}

// afterPreStep runs in the pre-step barrier callback, before any actor job of
// the step is handed out.
func (s *TaskScheduler) afterPreStep() {
	s.updateAabbs()

	if s.remainingSteps <= 0 {
		return
	}
	for i := range s.frameData {
		s.guard.Write(func(index world.Index) {
			s.solver.Unstuck(&s.frameData[i], index)
		})
	}
}

// afterPostStep runs in the post-step barrier callback, after every actor job
// of the step completed.
func (s *TaskScheduler) afterPostStep() {
	if s.remainingSteps > 0 {
		s.remainingSteps--
		s.updateActorsPositions()
	}
	s.nextJob.Store(0)
}

// afterPostSim runs in the post-simulation barrier callback, once per frame
// after fall bookkeeping and the LOS refresh finished.
func (s *TaskScheduler) afterPostSim() {
	s.newFrame = false
	s.losCache.removeStale()
	s.timeEnd = time.Now()
}
