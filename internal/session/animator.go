package session

import (
	"sync"
	"time"

	"github.com/skydrop/server/internal/domain/object"
)

// FallAnimator drives one object's vertical position from above the
// viewport to below it over the object's fall duration. The completion
// callback fires exactly once if and only if the fall ran to the end
// uninterrupted; Cancel suppresses it. This exactly-once-or-never guarantee
// is what keeps a tap and a natural completion from both resolving the
// same object.
type FallAnimator struct {
	obj       object.Falling
	startedAt time.Time
	cancel    chan struct{}
	once      sync.Once
}

// StartFall begins a fall animation for obj and returns its handle.
// onComplete must return quickly.
func StartFall(obj object.Falling, onComplete func()) *FallAnimator {
	a := &FallAnimator{
		obj:       obj,
		startedAt: time.Now(),
		cancel:    make(chan struct{}),
	}

	go func() {
		timer := time.NewTimer(obj.FallDuration)
		defer timer.Stop()

		select {
		case <-a.cancel:
			return
		case <-timer.C:
			onComplete()
		}
	}()

	return a
}

// Cancel stops the animation early. The completion callback will not fire.
// Safe to call more than once.
func (a *FallAnimator) Cancel() {
	a.once.Do(func() {
		close(a.cancel)
	})
}

// Position returns the object's vertical position at the given instant:
// monotone from StartY to EndY, clamped at both ends, no overshoot.
func (a *FallAnimator) Position(at time.Time) float64 {
	progress := float64(at.Sub(a.startedAt)) / float64(a.obj.FallDuration)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return a.obj.StartY() + progress*(a.obj.EndY()-a.obj.StartY())
}
