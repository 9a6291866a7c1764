package physics

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/embervale/physics/world"
)

// worker is the body of each pool goroutine. It holds the simulation mutex
// shared for the whole processing region of a frame and rendezvouses with its
// siblings at the three barriers; actor jobs are pulled through an atomic
// cursor so no actor is processed twice and no ordering across actors is
// implied.
//
// A panic during integration is reported and then re-raised: movement solvers
// are assumed panic-free, and a worker dying silently would deadlock the
// barriers.
func (s *TaskScheduler) worker() {
	defer s.wg.Done()
	defer func() {
		if err := recover(); err != nil {
			sentry.CurrentHub().Recover(err)
			sentry.Flush(2 * time.Second)
			panic(err)
		}
	}()

	s.simMutex.RLock()
	defer s.simMutex.RUnlock()

	for !s.quit {
		for !s.newFrame && !s.quit {
			s.hasJob.Wait()
		}
		// Acknowledge the wake-up now that the read lock is held again; the
		// owning thread waits for every acknowledgment before it may request
		// the exclusive lock. One acknowledgment per broadcast, whether the
		// worker slept through it or arrived after the batch was published.
		s.wake.Done()

		for s.newFrame && !s.quit {
			s.preStepBarrier.Wait(s.afterPreStep)

			for s.remainingSteps > 0 {
				job := int(s.nextJob.Add(1)) - 1
				if job >= s.numJobs {
					break
				}

				s.guard.Read(func(index world.Index) {
					s.solver.Move(&s.frameData[job], s.stepDt, index, s.worldData)
				})
			}

			s.postStepBarrier.Wait(s.afterPostStep)

			if s.remainingSteps <= 0 {
				for {
					job := int(s.nextJob.Add(1)) - 1
					if job >= s.numJobs {
						break
					}
					handleFall(&s.frameData[job], s.advanceSimulation)
				}

				s.refreshLOSCache()
				s.postSimBarrier.Wait(s.afterPostSim)
			}
		}
	}
}
