package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/skydrop/server/internal/domain/object"
)

func testObject(d time.Duration) object.Falling {
	return object.Falling{
		ID:           "obj",
		X:            120,
		Size:         60,
		FallDuration: d,
		CreatedAt:    time.Now(),
	}
}

func TestCompletionFiresExactlyOnce(t *testing.T) {
	var completions atomic.Int64
	a := StartFall(testObject(30*time.Millisecond), func() {
		completions.Add(1)
	})
	defer a.Cancel()

	time.Sleep(150 * time.Millisecond)

	if got := completions.Load(); got != 1 {
		t.Errorf("Expected exactly one completion for an uninterrupted fall, got %d", got)
	}
}

func TestCancelSuppressesCompletion(t *testing.T) {
	var completions atomic.Int64
	a := StartFall(testObject(50*time.Millisecond), func() {
		completions.Add(1)
	})

	a.Cancel()
	a.Cancel() // safe to call twice

	time.Sleep(150 * time.Millisecond)

	if got := completions.Load(); got != 0 {
		t.Errorf("Expected no completion after cancel, got %d", got)
	}
}

func TestPositionIsMonotoneAndClamped(t *testing.T) {
	obj := testObject(100 * time.Millisecond)
	a := StartFall(obj, func() {})
	defer a.Cancel()

	// Before the start: clamped at the entry position, no overshoot upward.
	if got := a.Position(a.startedAt.Add(-10 * time.Millisecond)); got != obj.StartY() {
		t.Errorf("Expected start position %f before launch, got %f", obj.StartY(), got)
	}

	// Strictly increasing through the fall.
	prev := obj.StartY() - 1
	for _, frac := range []float64{0, 0.25, 0.5, 0.75, 1} {
		at := a.startedAt.Add(time.Duration(frac * float64(obj.FallDuration)))
		got := a.Position(at)
		if got < prev {
			t.Errorf("Position decreased: %f after %f at fraction %f", got, prev, frac)
		}
		prev = got
	}

	// After the end: clamped at the exit position, no overshoot downward.
	if got := a.Position(a.startedAt.Add(obj.FallDuration + time.Second)); got != obj.EndY() {
		t.Errorf("Expected end position %f after completion, got %f", obj.EndY(), got)
	}
}
