package world

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethaniccc/float32-cube/cube"
	"github.com/go-gl/mathgl/mgl32"
)

type fakeIndex struct {
	concurrent bool
}

func (fakeIndex) AddObject(*Object, Filter)    {}
func (fakeIndex) RemoveObject(*Object)         {}
func (fakeIndex) UpdateAabb(*Object)           {}
func (fakeIndex) SetFilterMask(*Object, uint32) {}
func (fakeIndex) RayTest(mgl32.Vec3, mgl32.Vec3, Filter) (RayHit, bool) {
	return RayHit{}, false
}
func (fakeIndex) RayTestTarget(mgl32.Vec3, *Object) (RayHit, bool) {
	return RayHit{}, false
}
func (fakeIndex) ConvexSweepTest(cube.BBox, mgl32.Vec3, mgl32.Vec3, Filter) (SweepHit, bool) {
	return SweepHit{}, false
}
func (fakeIndex) AabbTest(mgl32.Vec3, mgl32.Vec3, func(*Object) bool) {}
func (fakeIndex) ContactTest(*Object, func(Contact) bool)             {}
func (f fakeIndex) ConcurrentReads() bool                             { return f.concurrent }

func TestGuardProbesCapabilityOnce(t *testing.T) {
	if !NewGuard(fakeIndex{concurrent: true}).Concurrent() {
		t.Fatal("expected concurrent guard")
	}
	if NewGuard(fakeIndex{concurrent: false}).Concurrent() {
		t.Fatal("expected exclusive guard")
	}
}

func TestGuardSharedReaders(t *testing.T) {
	g := NewGuard(fakeIndex{concurrent: true})

	// A reader blocks inside the guard; a second reader must still get in.
	entered := make(chan struct{})
	release := make(chan struct{})
	go g.Read(func(Index) {
		close(entered)
		<-release
	})

	<-entered
	done := make(chan struct{})
	go g.Read(func(Index) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second reader blocked behind the first on a concurrent index")
	}
	close(release)
}

func TestGuardWritersExclusive(t *testing.T) {
	g := NewGuard(fakeIndex{concurrent: true})

	var active atomic.Int32
	var wg sync.WaitGroup
	fail := make(chan int32, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g.Write(func(Index) {
					if n := active.Add(1); n != 1 {
						fail <- n
					}
					active.Add(-1)
				})
			}
		}()
	}
	wg.Wait()
	close(fail)

	for n := range fail {
		t.Fatalf("observed %d concurrent writers", n)
	}
}

func TestGuardExclusiveModeSerializesReaders(t *testing.T) {
	g := NewGuard(fakeIndex{concurrent: false})

	var active atomic.Int32
	var wg sync.WaitGroup
	fail := make(chan int32, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g.Read(func(Index) {
					if n := active.Add(1); n != 1 {
						fail <- n
					}
					active.Add(-1)
				})
			}
		}()
	}
	wg.Wait()
	close(fail)

	for n := range fail {
		t.Fatalf("observed %d concurrent accesses on a non-concurrent index", n)
	}
}
