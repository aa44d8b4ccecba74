package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/skydrop/server/internal/domain/object"
)

func insertObject(r *Registry, id string, completions *atomic.Int64) object.Falling {
	obj := object.Falling{
		ID:           id,
		X:            100,
		Size:         50,
		FallDuration: 40 * time.Millisecond,
		CreatedAt:    time.Now(),
	}
	anim := StartFall(obj, func() {
		if completions != nil {
			completions.Add(1)
		}
	})
	r.Insert(obj, anim)
	return obj
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	insertObject(r, "a", nil)

	if !r.Remove("a") {
		t.Errorf("Expected first removal to report true")
	}
	if r.Remove("a") {
		t.Errorf("Expected second removal to be a no-op reporting false")
	}
	if r.Remove("never-inserted") {
		t.Errorf("Expected removal of unknown id to report false")
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", r.Len())
	}
}

func TestClearCancelsEveryAnimator(t *testing.T) {
	r := NewRegistry()
	var completions atomic.Int64
	insertObject(r, "a", &completions)
	insertObject(r, "b", &completions)
	insertObject(r, "c", &completions)

	if n := r.Clear(); n != 3 {
		t.Errorf("Expected Clear to report 3 entries, got %d", n)
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty registry after Clear, got %d", r.Len())
	}

	// No orphaned timer may fire after Clear.
	time.Sleep(120 * time.Millisecond)
	if got := completions.Load(); got != 0 {
		t.Errorf("Expected no completions after Clear, got %d", got)
	}
}

func TestViewsKeepInsertionOrder(t *testing.T) {
	r := NewRegistry()
	insertObject(r, "a", nil)
	insertObject(r, "b", nil)
	insertObject(r, "c", nil)
	defer r.Clear()

	views := r.Views(time.Now())
	if len(views) != 3 || views[0].ID != "a" || views[1].ID != "b" || views[2].ID != "c" {
		t.Fatalf("Expected views in insertion order a,b,c, got %+v", views)
	}

	r.Remove("b")
	views = r.Views(time.Now())
	if len(views) != 2 || views[0].ID != "a" || views[1].ID != "c" {
		t.Fatalf("Expected views a,c after removing b, got %+v", views)
	}
}

func TestDuplicateInsertIgnored(t *testing.T) {
	r := NewRegistry()
	obj := insertObject(r, "a", nil)
	defer r.Clear()

	anim := StartFall(obj, func() {})
	defer anim.Cancel()
	r.Insert(obj, anim)

	if r.Len() != 1 {
		t.Errorf("Expected duplicate insert to be ignored, got %d entries", r.Len())
	}
	if views := r.Views(time.Now()); len(views) != 1 {
		t.Errorf("Expected one view, got %d", len(views))
	}
}
